package invite

import "time"

// Status is the lifecycle state of an invitation row.
type Status string

const (
	StatusInvited  Status = "invited"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInvited, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// Invitation asks ParticipantID to join SessionID.
type Invitation struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	SessionID     string    `json:"session_id"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionMeta is what the prompt shows about the call being joined.
type SessionMeta struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	HostID string `json:"host_id"`
}
