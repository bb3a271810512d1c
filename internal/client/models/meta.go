// Package models defines the client-side record types tracked by the local
// store and reconciled against the sync server.
package models

import (
	"strconv"
	"time"
)

// Meta is the synchronization envelope shared by every tracked record.
//
// ServerID is the authoritative id once the server has assigned one (0 until
// then). TempID is the client-generated placeholder that identifies the
// record before that; after adoption it is kept as a local alias so lookups
// and references made against the old id keep resolving. Records adopted
// straight from a pull never had one.
//
// New and Dirty are local-only flags and are never transmitted: a record is
// either pending creation (New) or pending update/delete (Dirty), never both.
type Meta struct {
	ServerID  int64      `json:"server_id"`
	TempID    string     `json:"temp_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Deleted   bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	New   bool `json:"is_new"`
	Dirty bool `json:"is_dirty"`
}

// Synced reports whether the server has assigned an id to this record.
func (m Meta) Synced() bool { return m.ServerID != 0 }

// Key returns the caller-facing identifier: the server id when assigned,
// otherwise the temporary id.
func (m Meta) Key() string {
	if m.ServerID != 0 {
		return strconv.FormatInt(m.ServerID, 10)
	}
	return m.TempID
}

// Matches resolves a caller-supplied id against this record. The server id
// is checked first; the temporary id keeps matching as an alias.
func (m Meta) Matches(key string) bool {
	if key == "" {
		return false
	}
	if m.ServerID != 0 {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil && id == m.ServerID {
			return true
		}
	}
	return m.TempID != "" && m.TempID == key
}

// Touch bumps UpdatedAt to now, keeping it monotonically non-decreasing, and
// marks the record dirty unless it is still pending creation.
func (m *Meta) Touch(now time.Time) {
	if now.After(m.UpdatedAt) {
		m.UpdatedAt = now
	}
	m.Dirty = !m.New
}

// MarkDeleted records a soft delete. The caller is responsible for purging
// records that are still pending creation instead of keeping the tombstone.
func (m *Meta) MarkDeleted(now time.Time) {
	m.Deleted = true
	t := now
	m.DeletedAt = &t
	m.Touch(now)
}
