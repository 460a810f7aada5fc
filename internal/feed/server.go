package feed

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server streams the inserts of a Source to websocket clients. The table and
// filter are taken from the query string: ?table=invitations&column=participant_id&value=u1
type Server struct {
	src      Source
	upgrader websocket.Upgrader
}

func NewServer(src Source) *Server {
	return &Server{
		src: src,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	table := q.Get("table")
	if table == "" {
		http.Error(w, "missing table", http.StatusBadRequest)
		return
	}
	filter := Filter{Column: q.Get("column"), Value: q.Get("value")}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	inserts, cancel, err := s.src.OnInsert(r.Context(), table, filter)
	if err != nil {
		log.Warnw("subscribe failed", "table", table, "err", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()))
		return
	}
	defer cancel()
	log.Infow("feed client connected", "remote", r.RemoteAddr, "table", table, "column", filter.Column)

	// The read side only exists to notice the peer going away and to keep
	// the pong deadline moving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case in, ok := <-inserts:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(in); err != nil {
				log.Debugw("write failed", "remote", r.RemoteAddr, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			log.Infow("feed client gone", "remote", r.RemoteAddr)
			return
		}
	}
}
