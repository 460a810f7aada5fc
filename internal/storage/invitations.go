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

// InsertInvitation invites participantID to sessionID.
func (d *DB) InsertInvitation(ctx context.Context, sessionID, participantID string) (invite.Invitation, error) {
	inv := invite.Invitation{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		SessionID:     sessionID,
		Status:        invite.StatusInvited,
		CreatedAt:     time.Now().UTC(),
	}

	d.mu.Lock()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO invitations (id, participant_id, session_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.ParticipantID, inv.SessionID, string(inv.Status), formatTime(inv.CreatedAt))
	d.mu.Unlock()
	if err != nil {
		return invite.Invitation{}, fmt.Errorf("insert invitation: %w", err)
	}

	log.Infow("invitation created", "id", inv.ID, "session", sessionID, "participant", participantID)
	d.publish(TableInvitations, inv)
	return inv, nil
}

// SetInvitationStatus records the answer to an invitation.
func (d *DB) SetInvitationStatus(ctx context.Context, id string, status invite.Status) error {
	if !status.Valid() {
		return fmt.Errorf("set invitation status: unknown status %q", status)
	}

	d.mu.Lock()
	res, err := d.db.ExecContext(ctx, `UPDATE invitations SET status = ? WHERE id = ?`, string(status), id)
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("set invitation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetInvitation returns the invitation with id, or ErrNotFound.
func (d *DB) GetInvitation(ctx context.Context, id string) (invite.Invitation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var inv invite.Invitation
	var status, created string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, participant_id, session_id, status, created_at
		FROM invitations WHERE id = ?`, id,
	).Scan(&inv.ID, &inv.ParticipantID, &inv.SessionID, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return inv, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return inv, fmt.Errorf("get invitation: %w", err)
	}
	inv.Status = invite.Status(status)
	inv.CreatedAt = parseTime(created)
	return inv, nil
}
