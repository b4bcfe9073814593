package vlm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func newTestRuntime(url, attentionImpl string) *Runtime {
	return NewRuntime(testLogger(), url, "test-model", "int4", attentionImpl)
}

func TestLoad_MarksRuntimeLoaded(t *testing.T) {
	var gotReq loadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/load", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "sdpa")
	require.False(t, rt.Loaded())

	require.NoError(t, rt.Load(context.Background()))

	assert.True(t, rt.Loaded())
	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, "int4", gotReq.Quantization)
	assert.Equal(t, "sdpa", gotReq.AttentionImpl)
}

func TestLoad_FlashAttentionFallsBackToEager(t *testing.T) {
	var attempts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req loadRequest
		json.NewDecoder(r.Body).Decode(&req)
		attempts = append(attempts, req.AttentionImpl)
		if req.AttentionImpl == "flash_attention_2" {
			http.Error(w, "kernel unavailable", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "flash_attention_2")

	require.NoError(t, rt.Load(context.Background()))

	assert.Equal(t, []string{"flash_attention_2", "eager"}, attempts)
	assert.True(t, rt.Loaded())
}

func TestLoad_NoFallbackForOtherImpls(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "eager")

	err := rt.Load(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, rt.Loaded())
}

func TestGenerate_ReturnsCaption(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(generateResponse{Caption: "a cat on a keyboard"})
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "sdpa")

	caption, err := rt.Generate(context.Background(), "/tmp/v.mp4", "Describe this video.", 256)

	require.NoError(t, err)
	assert.Equal(t, "a cat on a keyboard", caption)
	assert.Equal(t, "/tmp/v.mp4", gotReq.VideoPath)
	assert.Equal(t, "Describe this video.", gotReq.Prompt)
	assert.Equal(t, 256, gotReq.MaxTokens)
}

func TestGenerate_RuntimeErrorSurfacesDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "CUDA out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "sdpa")

	_, err := rt.Generate(context.Background(), "/tmp/v.mp4", "p", 64)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestUnload_ClearsLoadedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/unload", r.URL.Path)
	}))
	defer srv.Close()

	rt := newTestRuntime(srv.URL, "sdpa")
	require.NoError(t, rt.Load(context.Background()))
	require.True(t, rt.Loaded())

	require.NoError(t, rt.Unload(context.Background()))
	assert.False(t, rt.Loaded())
}
