package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	_ "modernc.org/sqlite"
)

var log = logging.Logger("storage")

// ErrNotFound is returned when a looked up row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Table names, also used as change feed topics.
const (
	TableSessions    = "sessions"
	TableMessages    = "messages"
	TableInvitations = "invitations"
)

// Publisher receives every inserted row. *feed.Hub satisfies it.
type Publisher interface {
	Publish(table string, row any) error
}

// DB wraps the SQLite database holding sessions, chat messages and
// invitations.
type DB struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex

	pub Publisher
}

// Open opens or creates vemeego.db in the given directory.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenFile(filepath.Join(dir, "vemeego.db"))
}

// OpenFile opens or creates the database at dbPath.
func OpenFile(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL DEFAULT '',
			host_id    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			_seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id          TEXT NOT NULL UNIQUE,
			session_id  TEXT NOT NULL,
			sender_id   TEXT NOT NULL,
			sender_name TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS messages_session ON messages(session_id, _seq);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS invitations (
			id             TEXT PRIMARY KEY,
			participant_id TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'invited',
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS invitations_participant ON invitations(participant_id);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create invitations table: %w", err)
	}

	return &DB{db: db, path: dbPath}, nil
}

// SetPublisher makes every later insert announce its row to p.
func (d *DB) SetPublisher(p Publisher) {
	d.mu.Lock()
	d.pub = p
	d.mu.Unlock()
}

func (d *DB) publish(table string, row any) {
	d.mu.RLock()
	p := d.pub
	d.mu.RUnlock()
	if p == nil {
		return
	}
	if err := p.Publish(table, row); err != nil {
		log.Warnw("publish insert", "table", table, "err", err)
	}
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path
func (d *DB) Path() string {
	return d.path
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
