package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"name":"Acme"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	client := NewClient(5 * time.Second)
	resp, err := client.SendJSON(context.Background(), http.MethodPost, server.URL,
		map[string]string{"Authorization": "Bearer abc"}, map[string]string{"name": "Acme"})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.DecodeJSON(&out))
	assert.Equal(t, "42", out.ID)
}

func TestClient_NonSuccessIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	resp, err := NewClient(time.Second).Send(context.Background(), http.MethodGet, server.URL, nil, nil)
	require.NoError(t, err)
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Error(t, resp.DecodeJSON(&struct{}{}))
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "value", r.PostForm.Get("key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := NewClient(time.Second).PostForm(context.Background(), server.URL, url.Values{"key": {"value"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(0).Send(ctx, http.MethodGet, server.URL, nil, nil)
	assert.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://a.example/x/y", JoinURL("https://a.example/x/", "/y"))
	assert.Equal(t, "https://a.example/y", JoinURL("https://a.example", "y"))
}
