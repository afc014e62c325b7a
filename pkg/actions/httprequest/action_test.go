package httprequest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dukex/workgraph/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Execute_PostsJSON(t *testing.T) {
	var got map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))

		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	out, err := NewAction(nil).Execute(context.Background(), protocol.Invocation{
		Inputs: map[string]any{
			"url":     server.URL + "/contacts",
			"method":  "post",
			"headers": map[string]any{"X-Token": "secret"},
			"body":    map[string]any{"email": "ada@example.com"},
		},
	}, slog.Default())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, http.StatusOK, result["status_code"])
	assert.Equal(t, map[string]any{"ok": true}, result["body"])
	assert.Equal(t, "ada@example.com", got["email"])
}

func TestAction_Execute_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte("done"))
	}))
	defer server.Close()

	action := NewAction(map[string]any{"retry_attempts": float64(3)})

	out, err := action.Execute(context.Background(), protocol.Invocation{
		Inputs: map[string]any{"url": server.URL},
	}, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, "done", out.(map[string]any)["body"])
	assert.Equal(t, int32(3), calls.Load())
}

func TestAction_Execute_GivesUpAfterAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewAction(map[string]any{"retry_attempts": 2}).Execute(context.Background(), protocol.Invocation{
		Inputs: map[string]any{"url": server.URL},
	}, slog.Default())
	assert.ErrorIs(t, err, ErrHTTPServerError)
}

func TestAction_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "not a url", "/relative"} {
		_, err := NewAction(nil).Execute(context.Background(), protocol.Invocation{
			Inputs: map[string]any{"url": u},
		}, slog.Default())
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", u)
	}
}

func TestAction_Simulate_DoesNotSend(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	out, err := NewAction(nil).Simulate(context.Background(), protocol.Invocation{
		Inputs: map[string]any{"url": server.URL, "method": "delete", "body": "x"},
	}, slog.Default())
	require.NoError(t, err)

	result := out.(map[string]any)
	assert.Equal(t, true, result["simulated"])

	req := result["request"].(*request)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "x", req.Body)
	assert.Zero(t, calls.Load())
}
