package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkgrid/waplane/internal/domain"
)

func newTestForwarder(t *testing.T, handler http.Handler) (*Forwarder, *domain.Node) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fwd := New()
	fwd.Scheme = "http"
	node := &domain.Node{
		ID:         1,
		Name:       "node-a",
		PublicHost: strings.TrimPrefix(srv.URL, "http://"),
	}
	return fwd, node
}

func TestForwardGetPassthrough(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	fwd, node := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/7/qr", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))

	res, err := fwd.Forward(context.Background(), node, 7, "qr", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "image/png", res.ContentType)
	assert.Equal(t, png, res.Body)
}

func TestForwardPostBody(t *testing.T) {
	fwd, node := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instances/7/send", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		var msg map[string]string
		require.NoError(t, json.Unmarshal(body, &msg))
		assert.Equal(t, "hello", msg["text"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"queued":true}`))
	}))

	res, err := fwd.Forward(context.Background(), node, 7, "send",
		http.MethodPost, []byte(`{"to":"111","text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, res.Status)
	assert.JSONEq(t, `{"queued":true}`, string(res.Body))
}

// Connector errors pass through as results, not proxy errors.
func TestForwardUpstreamErrorPassthrough(t *testing.T) {
	fwd, node := newTestForwarder(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not paired"}`, http.StatusConflict)
	}))

	res, err := fwd.Forward(context.Background(), node, 7, "qr", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.Status)
}

func TestForwardUnreachable(t *testing.T) {
	fwd := New()
	fwd.Scheme = "http"
	node := &domain.Node{ID: 1, Name: "node-a", PublicHost: "127.0.0.1:1"}

	_, err := fwd.Forward(context.Background(), node, 7, "qr", http.MethodGet, nil)
	assert.ErrorIs(t, err, ErrUpstreamUnreachable)
}

func TestForwardUnsupportedMethod(t *testing.T) {
	fwd := New()
	node := &domain.Node{ID: 1, PublicHost: "example.com"}
	_, err := fwd.Forward(context.Background(), node, 7, "qr", http.MethodPut, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstreamUnreachable)
}
