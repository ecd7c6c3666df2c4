package store

import (
	"context"
	"sync"
)

const (
	setAdmins = "admins"
	setMuted  = "muted"
)

// IDSetRepo persists named id sets. *Store implements it on SQLite.
type IDSetRepo interface {
	LoadIDs(ctx context.Context, setName string) ([]int64, error)
	AddID(ctx context.Context, setName string, id int64) error
	RemoveID(ctx context.Context, setName string, id int64) error
}

// Moderation holds the bot-admin and muted id sets. Each mutation is
// persisted first, then the in-memory set is reloaded from the repo before
// the change is considered visible (read-after-write).
type Moderation struct {
	repo IDSetRepo

	mu     sync.RWMutex
	admins map[int64]struct{}
	muted  map[int64]struct{}
}

func NewModeration(ctx context.Context, repo IDSetRepo) (*Moderation, error) {
	m := &Moderation{
		repo:   repo,
		admins: make(map[int64]struct{}),
		muted:  make(map[int64]struct{}),
	}
	if err := m.reload(ctx, setAdmins); err != nil {
		return nil, err
	}
	if err := m.reload(ctx, setMuted); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Moderation) reload(ctx context.Context, setName string) error {
	ids, err := m.repo.LoadIDs(ctx, setName)
	if err != nil {
		return err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	m.mu.Lock()
	if setName == setAdmins {
		m.admins = set
	} else {
		m.muted = set
	}
	m.mu.Unlock()
	return nil
}

func (m *Moderation) IsAdmin(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[id]
	return ok
}

func (m *Moderation) IsMuted(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.muted[id]
	return ok
}

// AddAdmin returns false when the id was already an admin.
func (m *Moderation) AddAdmin(ctx context.Context, id int64) (bool, error) {
	return m.add(ctx, setAdmins, id)
}

// RemoveAdmin returns false when the id was not an admin.
func (m *Moderation) RemoveAdmin(ctx context.Context, id int64) (bool, error) {
	return m.remove(ctx, setAdmins, id)
}

// Mute returns false when the id was already muted.
func (m *Moderation) Mute(ctx context.Context, id int64) (bool, error) {
	return m.add(ctx, setMuted, id)
}

// Unmute returns false when the id was not muted.
func (m *Moderation) Unmute(ctx context.Context, id int64) (bool, error) {
	return m.remove(ctx, setMuted, id)
}

func (m *Moderation) add(ctx context.Context, setName string, id int64) (bool, error) {
	if m.has(setName, id) {
		return false, nil
	}
	if err := m.repo.AddID(ctx, setName, id); err != nil {
		return false, err
	}
	return true, m.reload(ctx, setName)
}

func (m *Moderation) remove(ctx context.Context, setName string, id int64) (bool, error) {
	if !m.has(setName, id) {
		return false, nil
	}
	if err := m.repo.RemoveID(ctx, setName, id); err != nil {
		return false, err
	}
	return true, m.reload(ctx, setName)
}

func (m *Moderation) has(setName string, id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if setName == setAdmins {
		_, ok := m.admins[id]
		return ok
	}
	_, ok := m.muted[id]
	return ok
}
