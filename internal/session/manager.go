// Package session keeps the per-screen feed and story controllers alive
// between requests and tears them down when the client leaves.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrForbidden = errors.New("session belongs to another user")
)

type closer interface {
	close()
}

type entry struct {
	owner    string
	lastSeen time.Time
	value    closer
}

// Manager is the registry of live sessions
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*entry
	ttl       time.Duration
	now       func() time.Time
	scheduler gocron.Scheduler
	log       zerolog.Logger
}

// NewManager creates a Manager evicting sessions idle longer than ttl
func NewManager(ttl time.Duration, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		now:      time.Now,
		log:      log.With().Str("component", "session_manager").Logger(),
	}
}

// Start schedules idle eviction every interval
func (m *Manager) Start(interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := m.EvictIdle(); n > 0 {
				m.log.Info().Int("evicted", n).Msg("idle sessions evicted")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule eviction: %w", err)
	}
	s.Start()

	m.mu.Lock()
	m.scheduler = s
	m.mu.Unlock()
	return nil
}

func (m *Manager) add(owner string, value closer) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = &entry{owner: owner, lastSeen: m.now(), value: value}
	return id
}

func (m *Manager) get(id, owner string) (closer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.owner != owner {
		return nil, ErrForbidden
	}
	e.lastSeen = m.now()
	return e.value, nil
}

// Feed returns a live feed session
func (m *Manager) Feed(id, owner string) (*FeedSession, error) {
	v, err := m.get(id, owner)
	if err != nil {
		return nil, err
	}
	fs, ok := v.(*FeedSession)
	if !ok {
		return nil, ErrNotFound
	}
	return fs, nil
}

// Stories returns a live story session
func (m *Manager) Stories(id, owner string) (*StorySession, error) {
	v, err := m.get(id, owner)
	if err != nil {
		return nil, err
	}
	ss, ok := v.(*StorySession)
	if !ok {
		return nil, ErrNotFound
	}
	return ss, nil
}

// Remove unmounts a session
func (m *Manager) Remove(id, owner string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	if e.owner != owner {
		m.mu.Unlock()
		return ErrForbidden
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	e.value.close()
	return nil
}

// EvictIdle closes every session not touched within the TTL
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var stale []closer
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.value)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, v := range stale {
		v.close()
	}
	return len(stale)
}

// Len is the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops eviction and closes every session
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	s := m.scheduler
	m.scheduler = nil
	all := make([]closer, 0, len(m.sessions))
	for id, e := range m.sessions {
		all = append(all, e.value)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, v := range all {
		v.close()
	}
	if s != nil {
		return s.Shutdown()
	}
	return nil
}
