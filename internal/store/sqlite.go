package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// SQLiteDB is a DocumentDB backed by a single sqlite table.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

var _ DocumentDB = (*SQLiteDB)(nil)

// sqliteOrderColumns whitelists the fields Find may sort by.
var sqliteOrderColumns = map[string]string{
	FieldTimestamp: "timestamp",
	FieldSeq:       "seq",
	FieldID:        "record_id",
}

// NewSQLiteDB opens (or creates) the database at path and initializes the schema.
func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite store: create directory")
		}
	}

	// WAL lets the history view read while the writer appends.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite store: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite store: ping")
	}

	s := &SQLiteDB{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "sqlite store: init schema")
	}
	return s, nil
}

func (s *SQLiteDB) Name() string {
	return "sqlite"
}

func (s *SQLiteDB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		row_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id  TEXT NOT NULL UNIQUE,
		role       TEXT NOT NULL,
		model      TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		source     TEXT NOT NULL DEFAULT '',
		timestamp  INTEGER NOT NULL,
		seq        INTEGER NOT NULL,
		document   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_order ON records(timestamp, seq);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteDB) InsertOne(ctx context.Context, rec Record) error {
	query := `
	INSERT INTO records (record_id, role, model, session_id, source, timestamp, seq, document)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	m := rec.Metadata
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, string(m.Role), m.Model, m.Session, m.Source, m.Timestamp, m.Seq, rec.Document)
	return err
}

func (s *SQLiteDB) Find(ctx context.Context, sortBy ...string) ([]Record, error) {
	order := make([]string, 0, len(sortBy)+1)
	for _, field := range sortBy {
		col, ok := sqliteOrderColumns[field]
		if !ok {
			return nil, errors.Errorf("sqlite store: cannot sort by %q", field)
		}
		order = append(order, col+" ASC")
	}
	order = append(order, "row_id ASC")

	query := `SELECT record_id, role, model, session_id, source, timestamp, seq, document FROM records ORDER BY ` +
		strings.Join(order, ", ")
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var role string
		m := &rec.Metadata
		if err := rows.Scan(&rec.ID, &role, &m.Model, &m.Session, &m.Source, &m.Timestamp, &m.Seq, &rec.Document); err != nil {
			return nil, err
		}
		m.Role = conversation.Role(role)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
