// Package session keeps the process-wide registry of logged-in users. One
// record per user id, last write wins, nothing is persisted: a restart logs
// everyone out. Callers are identified by their bearer token, never by
// picking an arbitrary entry out of this registry.
package session

import (
	"sync"
	"time"
)

// Record is the live session for one user.
type Record struct {
	UserID        int64     `json:"userId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	RoleCode      string    `json:"rolecode"`
	LastLoginTime time.Time `json:"lastLoginTime"`
	IsLoggedIn    bool      `json:"isLoggedIn"`
}

// Directory is a mutex-guarded map of active sessions keyed by user id.
type Directory struct {
	mu       sync.RWMutex
	sessions map[int64]Record
}

// NewDirectory returns an empty session directory.
func NewDirectory() *Directory {
	return &Directory{sessions: make(map[int64]Record)}
}

// Add upserts the session for rec.UserID. A concurrent login for the same
// user races on last-write-wins, which matches the upsert intent.
func (d *Directory) Add(rec Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[rec.UserID] = rec
}

// Get returns the session for userID if one exists.
func (d *Directory) Get(userID int64) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.sessions[userID]
	return rec, ok
}

// Clear removes the session for userID and returns how many sessions remain.
func (d *Directory) Clear(userID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, userID)
	return len(d.sessions)
}

// List returns a snapshot of all active sessions.
func (d *Directory) List() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, 0, len(d.sessions))
	for _, rec := range d.sessions {
		out = append(out, rec)
	}
	return out
}
