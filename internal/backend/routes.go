// Package backend serves the shared session store over HTTP and provides a
// client for it. The change feed is mounted next to the REST routes.
package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/feed"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
)

var log = logging.Logger("backend")

// FeedPath is where the change feed websocket is mounted.
const FeedPath = "/feed"

type createSessionReq struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	HostID string `json:"host_id"`
}

type createMessageReq struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

type createInvitationReq struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

type statusReq struct {
	Status invite.Status `json:"status"`
}

// Register wires the store routes and the change feed into mux.
//
//	POST /api/sessions
//	GET  /api/sessions/{id}
//	GET  /api/sessions/{id}/messages
//	POST /api/sessions/{id}/messages
//	POST /api/invitations
//	GET  /api/invitations/{id}
//	PUT  /api/invitations/{id}/status
//	GET  /feed?table=...&column=...&value=...
func Register(mux *http.ServeMux, db *storage.DB, src feed.Source) {
	mux.Handle(FeedPath, feed.NewServer(src))

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req createSessionReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.HostID) == "" {
			http.Error(w, "missing host_id", http.StatusBadRequest)
			return
		}
		meta, err := db.CreateSession(r.Context(), req.ID, req.Title, req.HostID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, meta)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		meta, err := db.FetchSessionMetadata(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)
	})

	mux.HandleFunc("GET /api/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		msgs, err := db.FetchMessages(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	})

	mux.HandleFunc("POST /api/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		var req createMessageReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.SenderID == "" || strings.TrimSpace(req.Content) == "" {
			http.Error(w, "missing sender_id or content", http.StatusBadRequest)
			return
		}
		m, err := db.CreateMessage(r.Context(), r.PathValue("id"),
			chat.Sender{ID: req.SenderID, Name: req.SenderName}, req.Content)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	})

	mux.HandleFunc("POST /api/invitations", func(w http.ResponseWriter, r *http.Request) {
		var req createInvitationReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.SessionID == "" || req.ParticipantID == "" {
			http.Error(w, "missing session_id or participant_id", http.StatusBadRequest)
			return
		}
		inv, err := db.InsertInvitation(r.Context(), req.SessionID, req.ParticipantID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	})

	mux.HandleFunc("GET /api/invitations/{id}", func(w http.ResponseWriter, r *http.Request) {
		inv, err := db.GetInvitation(r.Context(), r.PathValue("id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	})

	mux.HandleFunc("PUT /api/invitations/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var req statusReq
		if !decodeJSON(w, r, &req) {
			return
		}
		if !req.Status.Valid() {
			http.Error(w, "unknown status", http.StatusBadRequest)
			return
		}
		if err := db.SetInvitationStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Warnw("store request failed", "err", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
