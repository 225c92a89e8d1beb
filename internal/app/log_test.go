package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	_, err := buf.Write([]byte("hello"))
	require.Nil(t, err)
	_, err = buf.Write([]byte("world"))
	require.Nil(t, err)
	require.Equal(t, "helloworld", string(buf.Bytes()))

	w := bytes.NewBuffer(nil)
	_, err = buf.WriteTo(w)
	require.Nil(t, err)
	require.Equal(t, "helloworld", w.String())

	buf.Reset()
	require.Empty(t, buf.Bytes())
}

func TestCircularBufferOverflow(t *testing.T) {
	buf := newBuffer(2)

	a := strings.Repeat("a", chunkSize)
	b := strings.Repeat("b", chunkSize)
	c := strings.Repeat("c", 10)

	_, _ = buf.Write([]byte(a))
	_, _ = buf.Write([]byte(b))
	_, _ = buf.Write([]byte(c))

	// first chunk is dropped
	require.Equal(t, b+c, string(buf.Bytes()))
}

func TestNewLogger(t *testing.T) {
	memory := bytes.NewBuffer(nil)

	logger := newLogger(map[string]string{"level": "debug", "output": "", "time": ""}, memory)
	require.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Debug().Msg("[homekit] test")
	require.Equal(t, `{"level":"debug","message":"[homekit] test"}`+"\n", memory.String())

	logger = newLogger(map[string]string{"level": "wrong"}, memory)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestGetLogger(t *testing.T) {
	prev := modules
	t.Cleanup(func() { modules = prev })

	modules = map[string]string{
		"homekit": "trace",
		"relay":   "warn",
		"api":     "wrong",
	}

	require.Equal(t, zerolog.TraceLevel, GetLogger("homekit").GetLevel())
	require.Equal(t, zerolog.WarnLevel, GetLogger("relay").GetLevel())
	require.Equal(t, Logger.GetLevel(), GetLogger("api").GetLevel())
	require.Equal(t, Logger.GetLevel(), GetLogger("other").GetLevel())
}
