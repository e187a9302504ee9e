package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProber(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"playlist", http.StatusOK, "#EXTM3U\n#EXT-X-VERSION:3\n", nil},
		{"playlist with bom", http.StatusOK, "\ufeff#EXTM3U\r\n", nil},
		{"not found", http.StatusNotFound, "", ErrManifestUnavailable},
		{"html error page", http.StatusOK, "<html></html>", ErrInvalidManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewHTTPProber(srv.Client()).Probe(context.Background(), srv.URL+"/manifest/video.m3u8")
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type blockingProber struct {
	release chan struct{}
}

func (p blockingProber) Probe(ctx context.Context, manifestURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestPipelineReplacesSource(t *testing.T) {
	release := make(chan struct{})
	p := NewPipeline(newTestResolver(), blockingProber{release: release}, time.Second, zerolog.Nop())

	var mu sync.Mutex
	results := map[uint64]error{}
	done := func(gen uint64, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[gen] = err
	}

	first, err := p.Load("one", done)
	require.NoError(t, err)
	second, err := p.Load("two", done)
	require.NoError(t, err)

	assert.False(t, p.IsCurrent(first))
	assert.True(t, p.IsCurrent(second))
	assert.Contains(t, p.Source(), "/two/manifest/")

	close(release)
	p.Wait()

	mu.Lock()
	assert.True(t, errors.Is(results[first], context.Canceled), "replaced source is cancelled")
	assert.NoError(t, results[second])
	mu.Unlock()

	p.Destroy()
	assert.False(t, p.IsCurrent(second))
	assert.Empty(t, p.Source())
}

func TestPipelineRejectsEmptyStream(t *testing.T) {
	p := NewPipeline(newTestResolver(), blockingProber{}, time.Second, zerolog.Nop())
	_, err := p.Load(" ", nil)
	assert.ErrorIs(t, err, ErrEmptyStreamID)
}
