package main

import (
	"github.com/hapcam/hapcam/internal/api"
	"github.com/hapcam/hapcam/internal/app"
	"github.com/hapcam/hapcam/internal/homekit"
	"github.com/hapcam/hapcam/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init() // init HTTP API server

	homekit.Init() // camera stream controllers with the ffmpeg source

	sig := shell.RunUntilSignal()
	app.Logger.Info().Msgf("exit with signal: %s", sig)
}
