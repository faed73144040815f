// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: capture/store.go
// Summary: SQLite store for recorded terminal byte streams.
//
// A capture is one row in sessions (command, geometry, start/finish, exit
// status) plus an ordered run of chunks: output read from the child, input
// written to it and resizes. Chunks are written by a background batch writer;
// session rows are written synchronously.

package capture

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/framegrace/vtengine/internal/logging"
)

// ErrNotFound is returned for an unknown capture id.
var ErrNotFound = errors.New("capture not found")

// ErrClosed is returned once the store has been closed.
var ErrClosed = errors.New("capture store closed")

// Kind classifies a chunk.
type Kind string

const (
	KindOutput Kind = "output"
	KindInput  Kind = "input"
	KindResize Kind = "resize"
)

// Chunk is one recorded event.
type Chunk struct {
	Seq  int64
	At   time.Time
	Kind Kind
	Data []byte
}

// SessionInfo describes a recorded session.
type SessionInfo struct {
	ID         uuid.UUID
	Command    string
	Args       []string
	Cols       int
	Rows       int
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if never finished
	ExitCode   int
	Finished   bool
	Chunks     int64
}

// StoreConfig holds configuration for the capture store.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string

	// BatchSize is the number of chunks accumulated before a write.
	// Default: 256
	BatchSize int

	// BatchTimeout bounds how long a partial batch waits.
	// Default: 500ms
	BatchTimeout time.Duration

	// QueueSize is the buffer of the writer channel.
	// Default: 1024
	QueueSize int
}

// DefaultStoreConfig returns the defaults for path.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:         path,
		BatchSize:    256,
		BatchTimeout: 500 * time.Millisecond,
		QueueSize:    1024,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    command TEXT NOT NULL,
    args TEXT NOT NULL DEFAULT '',
    term_cols INTEGER NOT NULL,
    term_rows INTEGER NOT NULL,
    started_at INTEGER NOT NULL,      -- UnixNano
    finished_at INTEGER,              -- UnixNano, NULL while running
    exit_code INTEGER
);

CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

CREATE TABLE IF NOT EXISTS chunks (
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    at INTEGER NOT NULL,              -- UnixNano
    kind TEXT NOT NULL,
    data BLOB NOT NULL,
    PRIMARY KEY (session_id, seq)
);
`

// argTerm ends every argument in the args column, so an empty list and a
// list holding one empty argument encode differently.
const argTerm = "\x00"

func encodeArgs(args []string) string {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a)
		sb.WriteString(argTerm)
	}
	return sb.String()
}

func decodeArgs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, argTerm), argTerm)
}

type pendingChunk struct {
	session string
	chunk   Chunk
}

// Store records and reads captures.
type Store struct {
	cfg StoreConfig
	db  *sql.DB
	log logrus.FieldLogger

	queue   chan pendingChunk
	flushCh chan chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	closeOnce sync.Once
}

// Open creates or opens the store at path with default settings.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	return OpenWithConfig(DefaultStoreConfig(path), log)
}

// OpenWithConfig creates or opens a store.
func OpenWithConfig(cfg StoreConfig, log logrus.FieldLogger) (*Store, error) {
	def := DefaultStoreConfig(cfg.Path)
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = def.BatchTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if log == nil {
		log = logging.Discard()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}

	dsn := cfg.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open capture database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect capture database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create capture schema: %w", err)
	}

	s := &Store{
		cfg:     cfg,
		db:      db,
		log:     log.WithField("component", "capture"),
		queue:   make(chan pendingChunk, cfg.QueueSize),
		flushCh: make(chan chan struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go s.batchWriter()
	return s, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.cfg.Path }

// batchWriter accumulates queued chunks and writes them in transactions.
func (s *Store) batchWriter() {
	defer close(s.doneCh)

	batch := make([]pendingChunk, 0, s.cfg.BatchSize)
	timer := time.NewTimer(s.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.writeBatch(batch)
		batch = batch[:0]
	}
	drain := func() {
		for {
			select {
			case c := <-s.queue:
				batch = append(batch, c)
			default:
				return
			}
		}
	}

	for {
		select {
		case c := <-s.queue:
			batch = append(batch, c)
			if len(batch) >= s.cfg.BatchSize {
				flush()
				timer.Reset(s.cfg.BatchTimeout)
			}

		case <-timer.C:
			flush()
			timer.Reset(s.cfg.BatchTimeout)

		case done := <-s.flushCh:
			drain()
			flush()
			close(done)

		case <-s.stopCh:
			drain()
			flush()
			return
		}
	}
}

func (s *Store) writeBatch(batch []pendingChunk) {
	tx, err := s.db.Begin()
	if err != nil {
		s.log.WithError(err).Error("Capture: begin batch failed")
		return
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO chunks (session_id, seq, at, kind, data) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		s.log.WithError(err).Error("Capture: prepare batch failed")
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, p := range batch {
		c := p.chunk
		if _, err := stmt.Exec(p.session, c.Seq, c.At.UnixNano(), string(c.Kind), c.Data); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"session": p.session,
				"seq":     c.Seq,
			}).Error("Capture: insert chunk failed")
			tx.Rollback()
			return
		}
	}
	if err := tx.Commit(); err != nil {
		s.log.WithError(err).Error("Capture: commit batch failed")
	}
}

// enqueue hands a chunk to the writer. It reports false once the store is
// closed.
func (s *Store) enqueue(session string, c Chunk) bool {
	select {
	case <-s.stopCh:
		return false
	default:
	}
	select {
	case s.queue <- pendingChunk{session: session, chunk: c}:
		return true
	case <-s.stopCh:
		return false
	}
}

// Flush blocks until every queued chunk is written.
func (s *Store) Flush() error {
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
	case <-s.doneCh:
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-s.doneCh:
		return nil
	}
}

// Close flushes pending chunks and closes the database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		err = s.db.Close()
	})
	return err
}

func (s *Store) insertSession(info SessionInfo) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, command, args, term_cols, term_rows, started_at) VALUES (?, ?, ?, ?, ?, ?)",
		info.ID.String(), info.Command, encodeArgs(info.Args),
		info.Cols, info.Rows, info.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert capture session: %w", err)
	}
	return nil
}

func (s *Store) finishSession(id uuid.UUID, at time.Time, code int) error {
	if err := s.Flush(); err != nil {
		return err
	}
	res, err := s.db.Exec(
		"UPDATE sessions SET finished_at = ?, exit_code = ? WHERE id = ?",
		at.UnixNano(), code, id.String(),
	)
	if err != nil {
		return fmt.Errorf("finish capture session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", id, ErrNotFound)
	}
	return nil
}

const sessionColumns = `s.id, s.command, s.args, s.term_cols, s.term_rows, s.started_at,
    s.finished_at, s.exit_code, (SELECT COUNT(*) FROM chunks c WHERE c.session_id = s.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (SessionInfo, error) {
	var (
		info     SessionInfo
		id, args string
		started  int64
		finished sql.NullInt64
		code     sql.NullInt64
	)
	if err := row.Scan(&id, &info.Command, &args, &info.Cols, &info.Rows,
		&started, &finished, &code, &info.Chunks); err != nil {
		return SessionInfo{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("capture id %q: %w", id, err)
	}
	info.ID = parsed
	info.Args = decodeArgs(args)
	info.StartedAt = time.Unix(0, started)
	if finished.Valid {
		info.Finished = true
		info.FinishedAt = time.Unix(0, finished.Int64)
		info.ExitCode = int(code.Int64)
	}
	return info, nil
}

// Session returns one capture.
func (s *Store) Session(id uuid.UUID) (SessionInfo, error) {
	if err := s.Flush(); err != nil {
		return SessionInfo{}, err
	}
	row := s.db.QueryRow("SELECT "+sessionColumns+" FROM sessions s WHERE s.id = ?", id.String())
	info, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionInfo{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return SessionInfo{}, fmt.Errorf("read capture session: %w", err)
	}
	return info, nil
}

// Sessions lists captures, newest first. limit <= 0 returns all.
func (s *Store) Sessions(limit int) ([]SessionInfo, error) {
	if err := s.Flush(); err != nil {
		return nil, err
	}
	query := "SELECT " + sessionColumns + " FROM sessions s ORDER BY s.started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list capture sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		info, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list capture sessions: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Chunks calls fn for every chunk of a capture in order. Returning an error
// from fn stops the iteration and returns that error.
func (s *Store) Chunks(id uuid.UUID, fn func(Chunk) error) error {
	if _, err := s.Session(id); err != nil {
		return err
	}
	rows, err := s.db.Query(
		"SELECT seq, at, kind, data FROM chunks WHERE session_id = ? ORDER BY seq",
		id.String(),
	)
	if err != nil {
		return fmt.Errorf("read capture chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c    Chunk
			at   int64
			kind string
		)
		if err := rows.Scan(&c.Seq, &at, &kind, &c.Data); err != nil {
			return fmt.Errorf("read capture chunks: %w", err)
		}
		c.At = time.Unix(0, at)
		c.Kind = Kind(kind)
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Delete removes a capture and its chunks.
func (s *Store) Delete(id uuid.UUID) error {
	if err := s.Flush(); err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete capture: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM chunks WHERE session_id = ?", id.String()); err != nil {
		return fmt.Errorf("delete capture chunks: %w", err)
	}
	res, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("delete capture session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}
