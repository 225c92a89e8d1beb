package homekit

import (
	"github.com/hapcam/hapcam/internal/api"
	"github.com/hapcam/hapcam/internal/app"
	"github.com/hapcam/hapcam/pkg/hap/camera"
	"github.com/rs/zerolog"
)

type Config struct {
	Name    string `yaml:"name"`
	Streams int    `yaml:"streams"`

	camera.Options `yaml:",inline"`

	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
}

type FFmpegConfig struct {
	Bin    string `yaml:"bin"`
	Global string `yaml:"global"`
	Input  string `yaml:"input"`
}

func defaultConfig() Config {
	return Config{
		Name:    "hapcam",
		Streams: 2,
		Options: *camera.DefaultOptions(),
		FFmpeg: FFmpegConfig{
			Bin:    "ffmpeg",
			Global: "-hide_banner",
			Input:  "-re -f lavfi -i testsrc=size=1920x1080:rate=30",
		},
	}
}

func Init() {
	var cfg struct {
		Mod Config `yaml:"homekit"`
		Log struct {
			Level string `yaml:"ffmpeg"`
		} `yaml:"log"`
	}

	cfg.Mod = defaultConfig()
	cfg.Log.Level = "error"

	app.LoadConfig(&cfg)

	log = app.GetLogger("homekit")

	// zerolog levels: trace debug         info warn    error fatal panic disabled
	// FFmpeg  levels: trace debug verbose info warning error fatal panic quiet
	if cfg.Log.Level == "warn" {
		cfg.Log.Level = "warning"
	}
	cfg.Mod.FFmpeg.Global += " -v " + cfg.Log.Level

	var err error
	if cam, err = newCamera(cfg.Mod, log); err != nil {
		log.Error().Err(err).Msg("[homekit] init")
		return
	}

	config = cfg.Mod

	api.HandleFunc("api/homekit", apiHandler)
	api.HandleFunc("api/homekit/config", configHandler)
	api.HandleFunc("api/homekit/accessories", accessoriesHandler)

	log.Info().Msgf("[homekit] camera with %d streams proxy=%t srtp=%t", cfg.Mod.Streams, cfg.Mod.Proxy, cfg.Mod.SRTP)
}

var log zerolog.Logger

var cam *camera.Camera
var config Config

func newCamera(cfg Config, log zerolog.Logger) (*camera.Camera, error) {
	src := newSource(cfg.FFmpeg, cfg.Proxy, log)

	c, err := camera.NewCamera(&cfg.Options, src, cfg.Streams, log)
	if err != nil {
		return nil, err
	}

	for _, stream := range c.Streams() {
		id := stream.ID()
		stream.OnStatus = func(value []byte) {
			log.Debug().Msgf("[homekit] stream=%d status=%x", id, value)
		}
	}

	return c, nil
}
