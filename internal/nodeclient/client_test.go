package nodeclient

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode spins up an httptest server standing in for a compute node and
// returns the client-facing ip/port pair it listens on.
func fakeNode(t *testing.T, handler http.Handler) (ip, port string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	host, p, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	return host, p
}

func TestCheckAlive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/alive", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AliveStatus{Running: true})
	})
	ip, port := fakeNode(t, mux)

	status, err := New(2*time.Second).CheckAlive(context.Background(), ip, port)
	require.NoError(t, err)
	assert.True(t, status.Running)
}

func TestCheckAliveNotRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/alive", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(AliveStatus{Running: false, Detail: "docker daemon is down"})
	})
	ip, port := fakeNode(t, mux)

	status, err := New(2*time.Second).CheckAlive(context.Background(), ip, port)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, "docker daemon is down", status.Detail)
}

func TestCheckAliveUnreachable(t *testing.T) {
	// Nothing listens on this port.
	_, err := New(500*time.Millisecond).CheckAlive(context.Background(), "127.0.0.1", "1")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestCreateContainer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/image", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(ContainerInfo{
			TargetIPAddress: "10.0.0.5",
			TargetPort:      "2222",
			ContainerID:     "abc123",
			RegionLocation:  "whatever-the-node-thinks",
		})
	})
	ip, port := fakeNode(t, mux)

	info, err := New(2*time.Second).CreateContainer(context.Background(), ip, port)
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.ContainerID)
	assert.Equal(t, "10.0.0.5", info.TargetIPAddress)
}

func TestCreateContainerServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/image", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	ip, port := fakeNode(t, mux)

	_, err := New(2*time.Second).CreateContainer(context.Background(), ip, port)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestRestartContainer(t *testing.T) {
	var gotID string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/restart", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotID = body["containerId"]
		// Empty body means success in the node protocol.
	})
	ip, port := fakeNode(t, mux)

	err := New(2*time.Second).RestartContainer(context.Background(), ip, port, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", gotID)
}

func TestRestartContainerNodeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/restart", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("no such container"))
	})
	ip, port := fakeNode(t, mux)

	err := New(2*time.Second).RestartContainer(context.Background(), ip, port, "ghost")
	var restartErr *RestartError
	require.ErrorAs(t, err, &restartErr)
	assert.Equal(t, "no such container", restartErr.Detail)
}

func TestReportLoad(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/node/load", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("12.5%\n"))
	})
	ip, port := fakeNode(t, mux)

	load, err := New(2*time.Second).ReportLoad(context.Background(), ip, port)
	require.NoError(t, err)
	assert.Equal(t, "12.5%", load)
}
