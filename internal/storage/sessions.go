package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aneesh-Raskar/vemeego/internal/invite"
)

type sessionRow struct {
	invite.SessionMeta
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession stores a new call session. An empty id gets a fresh uuid.
func (d *DB) CreateSession(ctx context.Context, id, title, hostID string) (invite.SessionMeta, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	d.mu.Lock()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, host_id, created_at) VALUES (?, ?, ?, ?)`,
		id, title, hostID, formatTime(now))
	d.mu.Unlock()
	if err != nil {
		return invite.SessionMeta{}, fmt.Errorf("create session: %w", err)
	}

	meta := invite.SessionMeta{ID: id, Title: title, HostID: hostID}
	d.publish(TableSessions, sessionRow{SessionMeta: meta, CreatedAt: now})
	return meta, nil
}

// FetchSessionMetadata returns the session with id, or ErrNotFound.
func (d *DB) FetchSessionMetadata(ctx context.Context, id string) (invite.SessionMeta, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var m invite.SessionMeta
	err := d.db.QueryRowContext(ctx,
		`SELECT id, title, host_id FROM sessions WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.HostID)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return m, fmt.Errorf("fetch session %s: %w", id, err)
	}
	return m, nil
}
