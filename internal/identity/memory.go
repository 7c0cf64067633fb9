package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"polyrec.org/internal/audit"
)

// InMemory implements Store with in-process concurrency safety. The mutex is
// held across the capacity check and the inserts, so the ≤2-per-department
// invariant holds under concurrent registrations.
type InMemory struct {
	mu       sync.RWMutex
	users    map[string]*User
	byName   map[string]string
	profiles map[string]*Profile
	audit    audit.Store
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty identity store writing audit entries to sink.
func NewInMemory(sink audit.Store) *InMemory {
	if sink == nil {
		sink = audit.NewInMemory()
	}
	return &InMemory{
		users:    make(map[string]*User),
		byName:   make(map[string]string),
		profiles: make(map[string]*Profile),
		audit:    sink,
	}
}

// Seed inserts a user (optionally with profile) directly, bypassing the
// registration workflow. Used for administratively created accounts.
func (s *InMemory) Seed(u User, p *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	s.users[u.ID] = &cp
	s.byName[u.Username] = u.ID
	if p != nil {
		pp := *p
		s.profiles[u.ID] = &pp
	}
}

func (s *InMemory) CreateApplicant(ctx context.Context, u *User, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[u.Username]; taken {
		return ErrUsernameTaken
	}
	count := 0
	for _, existing := range s.profiles {
		if existing.Department == p.Department {
			count++
		}
	}
	if count >= DepartmentCapacity {
		return ErrDepartmentFull
	}

	uc, pc := *u, *p
	s.users[u.ID] = &uc
	s.byName[u.Username] = u.ID
	s.profiles[u.ID] = &pc

	return s.audit.Append(ctx, &audit.Entry{
		ActorID:    u.ID,
		ActorName:  u.Username,
		Action:     actionRegistered,
		OccurredAt: time.Now().UTC(),
	})
}

func (s *InMemory) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *InMemory) FindByUsername(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *InMemory) ProfileOf(ctx context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) Approve(ctx context.Context, actorID, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.Active = true
	u.UpdatedAt = time.Now().UTC()
	if p, ok := s.profiles[userID]; ok {
		p.Approved = true
	}
	cp := *u
	if err := s.audit.Append(ctx, &audit.Entry{
		ActorID:    actorID,
		Action:     actionApproved + u.Username,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *InMemory) Delete(ctx context.Context, actorID, userID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	delete(s.users, userID)
	delete(s.byName, u.Username)
	delete(s.profiles, userID)
	if err := s.audit.Append(ctx, &audit.Entry{
		ActorID:    actorID,
		Action:     actionDeleted + cp.Username,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *InMemory) ListPending(ctx context.Context) ([]Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Principal
	for userID, p := range s.profiles {
		if p.Approved {
			continue
		}
		u := s.users[userID]
		uc, pc := *u, *p
		res = append(res, Principal{User: &uc, Profile: &pc})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].User.CreatedAt.Before(res[j].User.CreatedAt)
	})
	return res, nil
}
