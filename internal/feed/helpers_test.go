package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/shunye-ott/backend/internal/models"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func reel(id string, age int) models.FeedItem {
	return models.FeedItem{
		ID:        id,
		Kind:      models.KindReel,
		CreatedAt: baseTime.Add(-time.Duration(age) * time.Minute),
		StreamID:  "stream-" + id,
		MediaRef:  "stream-" + id,
	}
}

func reels(prefix string, from, n int) []models.FeedItem {
	out := make([]models.FeedItem, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, reel(fmt.Sprintf("%s%d", prefix, i), i))
	}
	return out
}

type fetchResult struct {
	items []models.FeedItem
	err   error
}

// scriptedFetcher returns its results in order; with release set every
// fetch blocks until the test sends on it.
type scriptedFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	cursors []Cursor
	entered chan struct{}
	release chan struct{}
}

func (f *scriptedFetcher) FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error) {
	f.mu.Lock()
	f.cursors = append(f.cursors, cursor)
	var r fetchResult
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	}
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if r.err != nil {
		return Page{}, r.err
	}
	return NewPage(r.items, pageSize), nil
}

func (f *scriptedFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cursors)
}

type fakeLikes struct {
	mu    sync.Mutex
	err   error
	calls []int64
}

func (l *fakeLikes) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, delta)
	return l.err
}

type fakeProber struct {
	mu   sync.Mutex
	err  error
	urls []string
}

func (p *fakeProber) Probe(ctx context.Context, manifestURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.urls = append(p.urls, manifestURL)
	return p.err
}

func (p *fakeProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
