// Package memory provides an in-process UserDirectory backed by maps. It
// exists for tests and single-node demos; nothing persists across restarts.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carterbrother/joysky"
)

// Directory implements joysky.UserDirectory with three exact-match indexes
// kept in lockstep under one mutex.
type Directory struct {
	mu     sync.Mutex
	nextID int64

	byID       map[int64]joysky.User
	byUsername map[string]int64
	byPhone    map[string]int64
	byEmail    map[string]int64
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		nextID:     1,
		byID:       make(map[int64]joysky.User),
		byUsername: make(map[string]int64),
		byPhone:    make(map[string]int64),
		byEmail:    make(map[string]int64),
	}
}

// Exists implements joysky.UserDirectory.
func (d *Directory) Exists(_ context.Context, field joysky.Field, value string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.index(field)[value]
	return ok, nil
}

// FindExact implements joysky.UserDirectory. The returned record is a copy;
// callers may mutate it freely before handing it back to Save.
func (d *Directory) FindExact(_ context.Context, field joysky.Field, value string) (*joysky.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.index(field)[value]
	if !ok {
		return nil, nil
	}
	user := d.byID[id]
	return &user, nil
}

// Save implements joysky.UserDirectory. A zero ID inserts and assigns the
// next surrogate ID; a known ID replaces the stored record and re-points
// the indexes at the new field values.
func (d *Directory) Save(_ context.Context, user *joysky.User) (*joysky.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *user
	if stored.ID == 0 {
		stored.ID = d.nextID
		d.nextID++
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now()
		}
	} else if prev, ok := d.byID[stored.ID]; ok {
		delete(d.byUsername, prev.Username)
		delete(d.byPhone, prev.Phone)
		delete(d.byEmail, prev.Email)
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}

	d.byID[stored.ID] = stored
	d.byUsername[stored.Username] = stored.ID
	d.byPhone[stored.Phone] = stored.ID
	d.byEmail[stored.Email] = stored.ID

	out := stored
	return &out, nil
}

// Len reports the number of stored accounts.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byID)
}

func (d *Directory) index(field joysky.Field) map[string]int64 {
	switch field {
	case joysky.FieldPhone:
		return d.byPhone
	case joysky.FieldEmail:
		return d.byEmail
	default:
		return d.byUsername
	}
}
