package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jpdacostaza/ai-rag-test-sub002/internal/models"
)

var errDown = errors.New("connection refused")

type fakeShort struct {
	mu    sync.Mutex
	byID  map[string]map[string]models.Fragment
	err   error
	gets  int
	puts  int
	touch int
}

func newFakeShort() *fakeShort {
	return &fakeShort{byID: map[string]map[string]models.Fragment{}}
}

func (s *fakeShort) fail() error {
	if s.err != nil {
		return Unavailable("fake short", s.err)
	}
	return nil
}

func (s *fakeShort) Put(_ context.Context, f models.Fragment, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if err := s.fail(); err != nil {
		return err
	}
	if s.byID[f.UserID] == nil {
		s.byID[f.UserID] = map[string]models.Fragment{}
	}
	s.byID[f.UserID][f.ID] = f.Clone()
	return nil
}

func (s *fakeShort) Get(_ context.Context, userID string) ([]models.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Fragment
	for _, f := range s.byID[userID] {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (s *fakeShort) Count(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	return len(s.byID[userID]), nil
}

func (s *fakeShort) Delete(_ context.Context, userID string, match Predicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	n := 0
	for id, f := range s.byID[userID] {
		if match(f) {
			delete(s.byID[userID], id)
			n++
		}
	}
	return n, nil
}

func (s *fakeShort) Clear(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	n := len(s.byID[userID])
	delete(s.byID, userID)
	return n, nil
}

func (s *fakeShort) Touch(_ context.Context, userID string, ids []string) ([]models.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch++
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []models.Fragment
	for _, id := range ids {
		f, ok := s.byID[userID][id]
		if !ok {
			continue
		}
		f.AccessCount++
		s.byID[userID][id] = f
		out = append(out, f.Clone())
	}
	return out, nil
}

func (s *fakeShort) Ping(context.Context) error { return s.fail() }

type fakeLong struct {
	mu   sync.Mutex
	frag map[string][]models.Fragment
	err  error
	puts int
}

func newFakeLong() *fakeLong {
	return &fakeLong{frag: map[string][]models.Fragment{}}
}

func (l *fakeLong) fail() error {
	if l.err != nil {
		return Unavailable("fake long", l.err)
	}
	return nil
}

func (l *fakeLong) Put(_ context.Context, f models.Fragment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.puts++
	if err := l.fail(); err != nil {
		return err
	}
	l.frag[f.UserID] = append(l.frag[f.UserID], f.Clone())
	return nil
}

func (l *fakeLong) Search(_ context.Context, userID, _ string, limit int) ([]models.ScoredFragment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail(); err != nil {
		return nil, err
	}
	var out []models.ScoredFragment
	for _, f := range l.frag[userID] {
		out = append(out, models.ScoredFragment{Fragment: f.Clone(), Score: 0.5})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *fakeLong) Contains(_ context.Context, userID, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail(); err != nil {
		return false, err
	}
	for _, f := range l.frag[userID] {
		if f.ContentKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLong) Count(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail(); err != nil {
		return 0, err
	}
	return len(l.frag[userID]), nil
}

func (l *fakeLong) Delete(_ context.Context, userID string, match Predicate) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail(); err != nil {
		return 0, err
	}
	kept := l.frag[userID][:0]
	n := 0
	for _, f := range l.frag[userID] {
		if match(f) {
			n++
			continue
		}
		kept = append(kept, f)
	}
	l.frag[userID] = kept
	return n, nil
}

func (l *fakeLong) Clear(_ context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fail(); err != nil {
		return 0, err
	}
	n := len(l.frag[userID])
	delete(l.frag, userID)
	return n, nil
}

func (l *fakeLong) Ping(context.Context) error { return l.fail() }
