package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hapcam/hapcam/internal/app"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	prev := basePath
	t.Cleanup(func() { basePath = prev })

	basePath = ""
	require.Equal(t, "/api/homekit", Path("api/homekit"))

	basePath = "/cam"
	require.Equal(t, "/cam/api/homekit", Path("api/homekit"))
	require.Equal(t, "/homekit", Path("/homekit"))
}

func TestMiddlewareAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Response(w, "OK", MimeText)
	})
	handler := middlewareAuth("admin", "secret", ok)

	r := httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "192.168.1.5:4000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	r.SetBasicAuth("admin", "secret")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest("GET", "/api", nil)
	r.RemoteAddr = "127.0.0.1:4000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, "OK", w.Body.String())
}

func TestLogHandler(t *testing.T) {
	_, _ = app.MemoryLog.Write([]byte(`{"level":"info","message":"[homekit] test"}` + "\n"))

	w := httptest.NewRecorder()
	logHandler(w, httptest.NewRequest("GET", "/api/log", nil))
	require.Contains(t, w.Body.String(), "[homekit] test")

	w = httptest.NewRecorder()
	logHandler(w, httptest.NewRequest("DELETE", "/api/log", nil))
	require.Equal(t, "OK", w.Body.String())
	require.Empty(t, app.MemoryLog.Bytes())

	w = httptest.NewRecorder()
	logHandler(w, httptest.NewRequest("POST", "/api/log", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPIHandler(t *testing.T) {
	w := httptest.NewRecorder()
	apiHandler(w, httptest.NewRequest("GET", "http://camera.local/api", nil))
	require.Equal(t, MimeJSON, w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), `"version":"`+app.Version+`"`)
	require.Contains(t, w.Body.String(), `"host":"camera.local"`)
}
