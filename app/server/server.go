package server

import (
	"context"
	"net/http"

	"vidnote/app/config"
	"vidnote/app/database"
	"vidnote/app/filewatcher"
	"vidnote/app/handler"
	"vidnote/app/logger"
	"vidnote/app/notestore"
	"vidnote/app/service"
	"vidnote/app/utils/urlparser"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器
type Server struct {
	Config  *config.Config
	Logger  *logger.Logger
	gin     *gin.Engine
	http    *http.Server
	tasks   *service.TaskService
	cleanup *service.CleanupService
	watcher *filewatcher.Watcher
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	router := gin.Default()

	store, err := notestore.NewFileStore(cfg.Note.OutputDir)
	if err != nil {
		return nil, err
	}

	db := database.GetDB()
	parser := urlparser.New(cfg.Note.ResolveTimeout, log)
	generator := service.NewLLMGenerator(db, cfg.Note.ProviderTimeout, log)
	covers := service.NewCoverService(cfg.Note.OutputDir, log)
	tasks := service.NewTaskService(db, store, generator, covers, cfg.Note.ProviderTimeout, log)
	history := service.NewHistoryService(db, store, log)
	cleanup := service.NewCleanupService(db, cfg.Note.OutputDir, cfg.Note.UploadDir, log)

	// 输出目录变化时让历史列表缓存失效
	watcher, err := filewatcher.New(store.Dir(), history.InvalidateCache, log)
	if err != nil {
		return nil, err
	}

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:  cfg,
		Logger:  log,
		tasks:   tasks,
		cleanup: cleanup,
		watcher: watcher,
	}

	// 设置路由
	s.setupRoutes(store, parser, generator, tasks, history)

	return s, nil
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.watcher.Start(); err != nil {
		return err
	}
	if err := s.cleanup.Start(); err != nil {
		return err
	}

	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// 停止后台服务
	s.cleanup.Stop()
	if err := s.watcher.Stop(); err != nil {
		s.Logger.Errorf("停止文件监控失败: %v", err)
	}

	// 等待在途任务落盘，避免留下 RUNNING 状态
	s.tasks.Wait()

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes(store notestore.Store, parser *urlparser.Parser,
	generator *service.LLMGenerator, tasks *service.TaskService, history *service.HistoryService) {
	noteHandler := handler.NewNoteHandler(s.Config, s.Logger, tasks, history, store, parser)
	mediaHandler := handler.NewMediaHandler(s.Config, s.Logger)
	providerHandler := handler.NewProviderHandler(s.Logger, generator)

	// 上传文件静态目录
	s.gin.Static("/uploads", s.Config.Note.UploadDir)

	// API路由组
	api := s.gin.Group("/api")
	{
		api.POST("/generate_note", noteHandler.GenerateNote)
		api.GET("/task_status/:task_id", noteHandler.GetTaskStatus)
		api.GET("/history", noteHandler.GetHistory)
		api.POST("/delete_task", noteHandler.DeleteTask)

		api.POST("/upload", mediaHandler.Upload)
		api.GET("/image_proxy", mediaHandler.ImageProxy)

		// 模型提供商管理
		providers := api.Group("/providers")
		{
			providers.GET("/", providerHandler.GetProviders)
			providers.POST("/", providerHandler.CreateProvider)
			providers.POST("/:provider_id/test", providerHandler.TestProvider)
		}
	}
}
