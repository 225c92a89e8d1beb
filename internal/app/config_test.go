package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseConfString(t *testing.T) {
	require.Equal(t, "{homekit: {relay_port: 20000}}", string(parseConfString("homekit.relay_port=20000")))
	require.Equal(t, "{log: {level: trace}}", string(parseConfString("log.level=trace")))
	require.Nil(t, parseConfString("hapcam.yaml"))
	require.Nil(t, parseConfString("level=trace"))
}

func TestInitConfig(t *testing.T) {
	prevConfigs, prevPath := configs, ConfigPath
	t.Cleanup(func() {
		configs, ConfigPath = prevConfigs, prevPath
	})
	configs, ConfigPath = nil, ""

	require.Nil(t, os.Setenv("HAPCAM_TEST_STREAMS", "3"))
	defer os.Unsetenv("HAPCAM_TEST_STREAMS")

	path := filepath.Join(t.TempDir(), "hapcam.yaml")
	data := "homekit:\n  streams: ${HAPCAM_TEST_STREAMS}\n  proxy: false\n"
	require.Nil(t, os.WriteFile(path, []byte(data), 0644))

	initConfig(flagConfig{path, "{homekit: {proxy: true}}", "homekit.relay_port=20000", ""})
	require.Equal(t, path, ConfigPath)
	require.Len(t, configs, 3)

	var cfg struct {
		Mod struct {
			Streams   int  `yaml:"streams"`
			Proxy     bool `yaml:"proxy"`
			RelayPort int  `yaml:"relay_port"`
		} `yaml:"homekit"`
	}
	LoadConfig(&cfg)

	require.Equal(t, 3, cfg.Mod.Streams)
	require.True(t, cfg.Mod.Proxy)
	require.Equal(t, 20000, cfg.Mod.RelayPort)
}
