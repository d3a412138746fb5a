package smoketest

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contagionhttp "github.com/aukilabs/contagion/http"
	"github.com/aukilabs/contagion/simulation"
	"github.com/aukilabs/contagion/websocket"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	ctx, cancel := context.WithCancel(context.Background())

	sim, err := simulation.New(simulation.DefaultConfig(), rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	runner := &simulation.Runner{
		Simulation:    sim,
		FrameDuration: time.Millisecond * 5,
	}
	observers := &websocket.Observers{RunID: "run-1"}
	runner.HandleReport(observers.HandleReport)

	var mux http.ServeMux
	mux.HandleFunc("/health", contagionhttp.HandleHealthCheck)
	mux.Handle("/version", contagionhttp.HandleVersion("v1.2.3"))
	mux.Handle("/status", contagionhttp.HandleStatus(contagionhttp.StatusOptions{
		RunID:     "run-1",
		Version:   "v1.2.3",
		Runner:    runner,
		Observers: observers.Len,
	}))
	mux.Handle("/observe", observers.Handler(ctx))

	server := httptest.NewServer(&mux)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		observers.Close()
		server.Close()
	})
	return server, "run-1"
}

func TestRun(t *testing.T) {
	t.Run("healthy server", func(t *testing.T) {
		server, runID := newTestServer(t)

		res, err := Run(context.Background(), Options{UserAgent: "smoke"}, Request{
			Endpoint: server.URL + "/",
			Timeout:  time.Second * 5,
		})
		require.NoError(t, err)
		require.True(t, res.Success)
		require.Equal(t, server.URL, res.Endpoint)
		require.Equal(t, "v1.2.3", res.Version)
		require.Equal(t, runID, res.RunID)
		require.Len(t, res.Steps, 4)
		for _, s := range res.Steps {
			require.Empty(t, s.Error)
		}
	})

	t.Run("unhealthy server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		res, err := Run(context.Background(), Options{}, Request{Endpoint: server.URL})
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeSmokeTestFailed))
		require.False(t, res.Success)
		require.Len(t, res.Steps, 1)
		require.Equal(t, "health", res.Steps[0].Name)
		require.NotEmpty(t, res.Steps[0].Error)
	})

	t.Run("server without observer stream", func(t *testing.T) {
		var mux http.ServeMux
		mux.HandleFunc("/health", contagionhttp.HandleHealthCheck)
		mux.Handle("/version", contagionhttp.HandleVersion("v1.2.3"))
		mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"run_id":"run-2"}`))
		})
		server := httptest.NewServer(&mux)
		defer server.Close()

		res, err := Run(context.Background(), Options{}, Request{
			Endpoint: server.URL,
			Timeout:  time.Second,
		})
		require.Error(t, err)
		require.Equal(t, "run-2", res.RunID)
		require.Len(t, res.Steps, 4)
		require.Equal(t, "observe", res.Steps[3].Name)
		require.NotEmpty(t, res.Steps[3].Error)
	})
}

func TestHandleSmokeTest(t *testing.T) {
	server, _ := newTestServer(t)
	h := HandleSmokeTest(context.Background(), Options{})

	t.Run("success", func(t *testing.T) {
		body, err := json.Marshal(Request{Endpoint: server.URL, Timeout: time.Second * 5})
		require.NoError(t, err)

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader(body)))
		require.Equal(t, http.StatusOK, w.Code)

		var res Results
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.True(t, res.Success)
	})

	t.Run("bad request", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{"))))
		require.Equal(t, http.StatusBadRequest, w.Code)

		w = httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/smoke-test", bytes.NewReader([]byte("{}"))))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/smoke-test", nil))
		require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}
