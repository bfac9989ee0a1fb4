package main

import "transcode-orchestrator/app"

func main() {
	app.Run()
}
