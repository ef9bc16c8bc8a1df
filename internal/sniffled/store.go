package sniffled

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/psychicsniffle/sniffle/internal/improvement"
	"github.com/psychicsniffle/sniffle/internal/maximizer"
	"github.com/psychicsniffle/sniffle/internal/tracker"
	"github.com/psychicsniffle/sniffle/pkg/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionLimit    = errors.New("session limit reached")
	ErrFitnessLength   = errors.New("fitness length does not match population")
)

// contraster is implemented by analysers that report distribution contrast
type contraster interface {
	Contrast() float64
}

// Session is one hosted maximizer. Calls on a session are serialised.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	max       *maximizer.Maximizer
	last      improvement.GenerationStep
	cranked   bool
	updatedAt time.Time
}

// SessionInfo is the JSON view of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Generation int       `json:"generation"`
	GenomeSize int       `json:"genome_size"`
	Population int       `json:"population"`
	Analyser   string    `json:"analyser"`
	Best       *float64  `json:"best,omitempty"`
	Mean       *float64  `json:"mean,omitempty"`
	StdDev     *float64  `json:"stddev,omitempty"`
	Contrast   *float64  `json:"contrast,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func copyGenomes(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, g := range in {
		out[i] = append([]byte(nil), g...)
	}
	return out
}

// Genomes returns a copy of the current generation
func (s *Session) Genomes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyGenomes(s.max.Genomes())
}

// Crank summarises the evaluated generation, advances the maximizer and returns
// the summary together with a copy of the new generation
func (s *Session) Crank(fitness []float64) (improvement.GenerationStep, [][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := s.max.Config().PopulationSize; len(fitness) != n {
		return improvement.GenerationStep{}, nil, fmt.Errorf("%w: got %d values for %d genomes", ErrFitnessLength, len(fitness), n)
	}

	step, err := improvement.Summarize(s.max.Generation(), s.max.Genomes(), fitness)
	if err != nil {
		return improvement.GenerationStep{}, nil, err
	}
	if err := s.max.Crank(fitness); err != nil {
		return step, nil, err
	}

	s.last = step
	s.cranked = true
	s.updatedAt = time.Now().UTC()
	return step, copyGenomes(s.max.Genomes()), nil
}

// Reset randomizes the session past preserve and returns the new generation
func (s *Session) Reset(preserve int) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.max.Reset(preserve); err != nil {
		return nil, err
	}
	s.updatedAt = time.Now().UTC()
	return copyGenomes(s.max.Genomes()), nil
}

// Generation returns the number of cranks since the last reset
func (s *Session) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.max.Generation()
}

// Contrast returns the analyser contrast, if the analyser tracks one
func (s *Session) Contrast() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.max.Analyser().(contraster); ok {
		return c.Contrast(), true
	}
	return 0, false
}

// Histograms returns a copy of the per-byte histograms of a breathing analyser
func (s *Session) Histograms() ([]tracker.Histogram, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.max.Analyser().(*tracker.Breathing); ok {
		return b.Snapshot(), true
	}
	return nil, false
}

// Info returns a snapshot of the session state
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.max.Config()
	info := SessionInfo{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.updatedAt,
		Generation: s.max.Generation(),
		GenomeSize: cfg.GenomeSize,
		Population: cfg.PopulationSize,
		Analyser:   string(cfg.Analyser),
	}
	if info.Analyser == "" {
		info.Analyser = string(tracker.KindBreathing)
	}
	if s.cranked {
		best, mean, stddev := s.last.Best, s.last.Mean, s.last.StdDev
		info.Best, info.Mean, info.StdDev = &best, &mean, &stddev
	}
	if c, ok := s.max.Analyser().(contraster); ok {
		v := c.Contrast()
		info.Contrast = &v
	}
	if err := s.max.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}

// SessionStore holds the live sessions of the daemon
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
}

// NewSessionStore creates a store holding at most max sessions; max <= 0 means unlimited
func NewSessionStore(max int) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		max:      max,
	}
}

// Create builds a maximizer for cfg and stores it under id, generating an ID when empty
func (s *SessionStore) Create(id string, cfg maximizer.Config) (*Session, error) {
	if id == "" {
		id = utils.GenerateSessionID()
	}
	if err := s.admit(id); err != nil {
		return nil, err
	}

	m, err := maximizer.New(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// re-check; the maximizer was built without the lock held
	if _, exists := s.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if s.max > 0 && len(s.sessions) >= s.max {
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, s.max)
	}

	now := time.Now().UTC()
	sess := &Session{ID: id, CreatedAt: now, updatedAt: now, max: m}
	s.sessions[id] = sess
	return sess, nil
}

func (s *SessionStore) admit(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, exists := s.sessions[id]; exists {
		return fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	if s.max > 0 && len(s.sessions) >= s.max {
		return fmt.Errorf("%w (%d)", ErrSessionLimit, s.max)
	}
	return nil
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// List returns up to limit sessions, oldest first
func (s *SessionStore) List(limit int) []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
