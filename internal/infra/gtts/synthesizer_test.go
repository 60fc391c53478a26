package gtts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSynthesizeHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tw-ob", r.URL.Query().Get("client"))
		assert.Equal(t, "vi", r.URL.Query().Get("tl"))
		assert.Equal(t, "xin chào", r.URL.Query().Get("q"))
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	s := NewSynthesizer(srv.URL, srv.Client(), zap.NewNop())
	audio, err := s.Synthesize(context.Background(), "xin chào", "vi")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestSynthesizeNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSynthesizer(srv.URL, srv.Client(), zap.NewNop())
	_, err := s.Synthesize(context.Background(), "xin chào", "vi")
	assert.Error(t, err)
}

func TestSynthesizeEmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSynthesizer(srv.URL, srv.Client(), zap.NewNop())
	_, err := s.Synthesize(context.Background(), "xin chào", "vi")
	assert.Error(t, err)
}
