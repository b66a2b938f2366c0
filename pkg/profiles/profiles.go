// Package profiles exposes the read-only subject trait lookup the engine
// consults at trigger time. Trait inference happens elsewhere; the engine
// only reads.
package profiles

import (
	"context"
	"sync"
)

type Store interface {
	// Profile returns the subject's current trait values, e.g.
	// {"risk_profile": "conservative", "personality_traits": {"openness": 0.7}}.
	// An unknown subject yields an empty map, not an error.
	Profile(ctx context.Context, subjectID string) (map[string]any, error)
}

// StaticStore serves profiles from a fixed map. Used in tests and local
// development. Reads and writes may come from concurrent walks, so access
// goes through a lock.
type StaticStore struct {
	mu       sync.RWMutex
	profiles map[string]map[string]any
}

func NewStaticStore(profiles map[string]map[string]any) *StaticStore {
	if profiles == nil {
		profiles = make(map[string]map[string]any)
	}

	return &StaticStore{profiles: profiles}
}

func (s *StaticStore) Profile(_ context.Context, subjectID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[subjectID]
	if !ok {
		return map[string]any{}, nil
	}

	return profile, nil
}

// Set replaces a subject's profile.
func (s *StaticStore) Set(subjectID string, profile map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[subjectID] = profile
}
