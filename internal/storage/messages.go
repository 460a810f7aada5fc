package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Aneesh-Raskar/vemeego/internal/chat"
)

// FetchMessages returns the messages of a session in insertion order.
func (d *DB) FetchMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, session_id, sender_id, sender_name, content, created_at
		FROM messages WHERE session_id = ? ORDER BY _seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		var created string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.SenderID, &m.SenderName, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMessage stores a message and returns it with its assigned id.
func (d *DB) CreateMessage(ctx context.Context, sessionID string, sender chat.Sender, content string) (chat.Message, error) {
	m := chat.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	d.mu.Lock()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, sender_id, sender_name, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.SenderID, m.SenderName, m.Content, formatTime(m.CreatedAt))
	d.mu.Unlock()
	if err != nil {
		return chat.Message{}, fmt.Errorf("create message: %w", err)
	}

	d.publish(TableMessages, m)
	return m, nil
}
