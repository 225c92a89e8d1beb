package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnmarshalDefaults(t *testing.T) {
	var cfg struct {
		Mod struct {
			Streams int    `yaml:"streams"`
			Address string `yaml:"address"`
		} `yaml:"homekit"`
	}
	cfg.Mod.Streams = 2

	require.Nil(t, Unmarshal([]byte("homekit:\n  address: 192.168.1.2\n"), &cfg))
	require.Equal(t, 2, cfg.Mod.Streams)
	require.Equal(t, "192.168.1.2", cfg.Mod.Address)

	require.NotNil(t, Unmarshal([]byte("homekit: [1"), &cfg))
}

func TestEncode(t *testing.T) {
	b, err := Encode(map[string]any{"homekit": map[string]any{"resolution": []int{1920, 1080, 30}}}, 2)
	require.Nil(t, err)
	require.Equal(t, `homekit:
  resolution:
    - 1920
    - 1080
    - 30
`, string(b))
}
