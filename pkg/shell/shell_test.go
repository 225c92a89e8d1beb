package shell

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuoteSplit(t *testing.T) {
	s := `
ffmpeg "-i" 'udp://127.0.0.1:1234?pkt_size=1316'
`
	require.Equal(t, []string{"ffmpeg", "-i", "udp://127.0.0.1:1234?pkt_size=1316"}, QuoteSplit(s))

	s = `ffmpeg -f lavfi -i "testsrc=size=1280x720:rate=30" -srtp_out_params ""`
	require.Equal(t, []string{"ffmpeg", "-f", "lavfi", "-i", "testsrc=size=1280x720:rate=30", "-srtp_out_params", ""}, QuoteSplit(s))

	require.Nil(t, QuoteSplit(`ffmpeg -i "unclosed`))
}

func TestReplaceEnvVars(t *testing.T) {
	require.Nil(t, os.Setenv("HAPCAM_TEST_BIN", "/usr/bin/ffmpeg"))
	defer os.Unsetenv("HAPCAM_TEST_BIN")

	require.Equal(t, "bin: /usr/bin/ffmpeg", ReplaceEnvVars("bin: ${HAPCAM_TEST_BIN}"))
	require.Equal(t, "port: 10000", ReplaceEnvVars("port: ${HAPCAM_TEST_PORT:10000}"))
	require.Equal(t, "key: ${HAPCAM_TEST_KEY}", ReplaceEnvVars("key: ${HAPCAM_TEST_KEY}"))
}

func TestCommand(t *testing.T) {
	_, err := NewCommand(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyCommand)

	cmd, err := NewCommand(context.Background(), "sleep 10")
	require.Nil(t, err)
	require.Nil(t, cmd.Start())

	require.Nil(t, cmd.Close())
	require.Nil(t, cmd.Close())

	select {
	case <-cmd.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("command not stopped")
	}
}
