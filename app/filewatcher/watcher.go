package filewatcher

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"vidnote/app/logger"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监控笔记输出目录
// 状态/结果文件由后台工作协程写入，列表缓存通过这里感知变化并失效
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	onChange func()
	logger   *logger.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// New 创建目录监控器，onChange 在目录内容变化后回调（带去抖）
func New(dir string, onChange func(), log *logger.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	return &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		onChange: onChange,
		logger:   log,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start 启动监控
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("监控目录失败: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()

	w.logger.Infof("文件监控已启动: %s", w.dir)
	return nil
}

// Stop 停止监控
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)
	w.wg.Wait()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("关闭文件监控器失败: %w", err)
	}

	w.logger.Info("文件监控已停止")
	return nil
}

// loop 事件循环，连续写入合并为一次回调
func (w *Watcher) loop() {
	defer w.wg.Done()

	var debounce *time.Timer
	debounceCh := make(chan struct{}, 1)

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !interesting(event) {
				continue
			}
			// 500ms 内的连续变化只触发一次
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				select {
				case debounceCh <- struct{}{}:
				default:
				}
			})
		case <-debounceCh:
			w.logger.Debugf("输出目录发生变化，触发回调")
			w.onChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("文件监控错误: %v", err)
		}
	}
}

// interesting 只关心记录文件的创建、写入和删除
func interesting(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".json") {
		return false
	}
	// 临时文件的写入事件不关心，重命名落地时会有一次 Create
	if strings.Contains(event.Name, ".tmp-") {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
