package liveness_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/entrhq/extkeeper/pkg/liveness"
	"github.com/entrhq/extkeeper/pkg/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		body   string
	}{
		{name: "root", method: http.MethodGet, path: "/", status: http.StatusOK, body: liveness.Body},
		{name: "unknown path", method: http.MethodGet, path: "/health", status: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/", status: http.StatusMethodNotAllowed},
	}

	router := liveness.Router()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestServerRunServesUntilCancelled(t *testing.T) {
	srv := liveness.NewServer("127.0.0.1:0", liveness.Router(), logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, liveness.Body, string(body))
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerRunListenError(t *testing.T) {
	srv := liveness.NewServer("127.0.0.1:-1", liveness.Router(), logging.Nop())
	err := srv.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "127.0.0.1:-1", srv.Addr())
}
