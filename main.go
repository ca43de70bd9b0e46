package main

import "vidnote/cmd"

func main() {
	cmd.Execute()
}
