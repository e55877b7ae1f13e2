package engine

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	_ "modernc.org/sqlite"
)

// Journal is an optional SQLite-backed record of completed files. It only
// accelerates Skip-mode resume: a journal hit skips the destination stat.
// A hit is trusted as recorded, so a destination file removed after its row
// was written is not re-copied while that row remains; deleting the journal
// makes the next run consult the destination again.
type Journal struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	batch   []journalEntry
	done    chan struct{}
	stopped bool
}

type journalEntry struct {
	relPath   string
	size      int64
	mtimeNano int64
}

// OpenJournal opens (or creates) the journal for the given source and
// destination pair. The DB lives at $XDG_RUNTIME_DIR/ferry/<job-id>.db or
// <tmp>/ferry-<job-id>.db.
func OpenJournal(src, dst string) (*Journal, error) {
	jobID := journalJobID(src, dst)
	dbPath := journalPath(jobID)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	j := &Journal{
		db:   db,
		path: dbPath,
		done: make(chan struct{}),
	}

	if err := j.init(src, dst); err != nil {
		db.Close()
		return nil, err
	}

	go j.flushLoop()
	return j, nil
}

func (j *Journal) init(src, dst string) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS completed (
			path  TEXT PRIMARY KEY,
			size  INTEGER NOT NULL,
			mtime INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var storedSrc, storedDst string
	row := j.db.QueryRow("SELECT value FROM meta WHERE key = 'src_root'")
	if err := row.Scan(&storedSrc); err == nil {
		row2 := j.db.QueryRow("SELECT value FROM meta WHERE key = 'dst_root'")
		if err := row2.Scan(&storedDst); err == nil {
			if storedSrc != src || storedDst != dst {
				return fmt.Errorf("journal roots mismatch: stored %s->%s, got %s->%s",
					storedSrc, storedDst, src, dst)
			}
		}
	} else {
		_, err = j.db.Exec(
			"INSERT OR REPLACE INTO meta (key, value) VALUES ('src_root', ?), ('dst_root', ?)",
			src, dst)
		if err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	}

	return nil
}

// Done reports whether a file (by destination-relative path, size, and
// mtime) is recorded as already copied.
func (j *Journal) Done(relPath string, size, mtimeNano int64) bool {
	var storedSize, storedMtime int64
	err := j.db.QueryRow(
		"SELECT size, mtime FROM completed WHERE path = ?", relPath,
	).Scan(&storedSize, &storedMtime)
	if err != nil {
		return false
	}
	return storedSize == size && storedMtime == mtimeNano
}

// Record marks a file as successfully placed. Writes are batched and
// flushed periodically.
func (j *Journal) Record(relPath string, size, mtimeNano int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = append(j.batch, journalEntry{relPath: relPath, size: size, mtimeNano: mtimeNano})
	if len(j.batch) >= 100 {
		_ = j.flushLocked()
	}
}

// Flush writes any pending batch entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO completed (path, size, mtime) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range j.batch {
		if _, err := stmt.Exec(e.relPath, e.size, e.mtimeNano); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", e.relPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.batch = j.batch[:0]
	return nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.mu.Lock()
			_ = j.flushLocked()
			j.mu.Unlock()
		}
	}
}

// Close flushes pending writes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.done)
	}
	_ = j.flushLocked()
	j.mu.Unlock()
	return j.db.Close()
}

// Remove deletes the journal file.
func (j *Journal) Remove() error {
	return os.Remove(j.path)
}

// Path returns the journal's filesystem path.
func (j *Journal) Path() string {
	return j.path
}

// journalJobID derives a deterministic job ID from the root pair.
func journalJobID(src, dst string) string {
	h := blake3.New()
	h.Write([]byte(src))
	h.Write([]byte{0})
	h.Write([]byte(dst))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}

func journalPath(jobID string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "ferry", jobID+".db")
	}
	return filepath.Join(os.TempDir(), "ferry-"+jobID+".db")
}
