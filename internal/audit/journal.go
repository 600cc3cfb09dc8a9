package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Entry is one journaled mailbox update request
type Entry struct {
	ID        string    `db:"id"`
	Action    string    `db:"action"`
	Folder    string    `db:"folder"`
	UIDs      []string  `db:"-"`
	Requested int       `db:"requested"`
	CreatedAt time.Time `db:"created_at"`
}

type entryRow struct {
	Entry
	RawUIDs string `db:"uids"`
}

// Journal records delete and mark-as-read requests in SQLite
type Journal struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// Open opens (or creates) the journal database at dbPath. ":memory:" is accepted.
func Open(dbPath string, logger *logrus.Logger) (*Journal, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logger.WithField("path", dbPath).Debug("Journal initialized")
	return &Journal{db: db, logger: logger}, nil
}

// Record inserts an entry, filling in ID, Requested and CreatedAt when unset
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Requested == 0 {
		e.Requested = len(e.UIDs)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO requests (id, action, folder, uids, requested, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Folder, strings.Join(e.UIDs, ","), e.Requested, e.CreatedAt.UTC(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to record %s request: %w", e.Action, err)
	}
	return e, nil
}

// RecordRequest journals a request for uids in folder
func (j *Journal) RecordRequest(ctx context.Context, action, folder string, uids []string) error {
	_, err := j.Record(ctx, Entry{Action: action, Folder: folder, UIDs: uids})
	return err
}

// Recent returns up to limit entries, newest first
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []entryRow
	err := j.db.SelectContext(ctx, &rows, `
		SELECT id, action, folder, uids, requested, created_at
		FROM requests
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e := r.Entry
		if r.RawUIDs != "" {
			e.UIDs = strings.Split(r.RawUIDs, ",")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
