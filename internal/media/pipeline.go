package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrManifestUnavailable = errors.New("manifest unavailable")
	ErrInvalidManifest     = errors.New("invalid manifest")
)

// Prober checks that a manifest can be loaded before the client is told to play it
type Prober interface {
	Probe(ctx context.Context, manifestURL string) error
}

// HTTPProber fetches the HLS playlist and checks its header line
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates an HTTPProber; a nil client gets a 10s timeout client
func NewHTTPProber(client *http.Client) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProber{client: client}
}

// Probe returns nil when the address serves an HLS playlist
func (p *HTTPProber) Probe(ctx context.Context, manifestURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrManifestUnavailable, resp.StatusCode)
	}

	line, err := bufio.NewReader(io.LimitReader(resp.Body, 4096)).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrManifestUnavailable, err)
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if line != "#EXTM3U" {
		return ErrInvalidManifest
	}
	return nil
}

// Pipeline owns the single active media source of one feed instance.
// Loading a new source destroys the previous one first, and completions of
// destroyed sources carry a stale generation that IsCurrent rejects.
type Pipeline struct {
	mu       sync.Mutex
	resolver *Resolver
	prober   Prober
	timeout  time.Duration
	log      zerolog.Logger

	gen    uint64
	source string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline creates a Pipeline
func NewPipeline(resolver *Resolver, prober Prober, timeout time.Duration, log zerolog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pipeline{
		resolver: resolver,
		prober:   prober,
		timeout:  timeout,
		log:      log.With().Str("component", "media_pipeline").Logger(),
	}
}

// Load resolves and probes a stream in the background. done receives the
// generation of this load so the caller can drop stale completions.
func (p *Pipeline) Load(streamID string, done func(gen uint64, err error)) (uint64, error) {
	manifestURL, err := p.resolver.Video(streamID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	p.destroyLocked()
	p.gen++
	gen := p.gen
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancel = cancel
	p.source = manifestURL
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()

		err := p.prober.Probe(ctx, manifestURL)
		if err != nil {
			p.log.Warn().Err(err).Str("manifest", manifestURL).Msg("manifest probe failed")
		}
		if done != nil {
			done(gen, err)
		}
	}()
	return gen, nil
}

// IsCurrent reports whether gen belongs to the live source
func (p *Pipeline) IsCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen != 0 && gen == p.gen && p.source != ""
}

// Source is the manifest address of the live source, if any
func (p *Pipeline) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Destroy cancels the live source
func (p *Pipeline) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyLocked()
	p.gen++
}

func (p *Pipeline) destroyLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.source = ""
}

// Wait blocks until background probes have returned
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
