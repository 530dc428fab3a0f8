package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/ports"
	_ "modernc.org/sqlite"
)

// AuditStore is a ports.AuditStore backed by SQLite.
//
// It works on any *sql.DB using the "sqlite" driver registered by modernc.org/sqlite.
type AuditStore struct {
	db *sql.DB
}

var _ ports.AuditStore = (*AuditStore)(nil)

// Open opens (or creates) the database at path and prepares the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	store, err := NewAuditStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewAuditStore initializes the schema in db and returns the store.
func NewAuditStore(db *sql.DB) (*AuditStore, error) {
	s := &AuditStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("init audit schema: %w", err)
	}
	return s, nil
}

func (s *AuditStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL,
			kind TEXT NOT NULL,
			ts INTEGER NOT NULL,
			process_instance_id TEXT NOT NULL,
			process_definition_key TEXT NOT NULL DEFAULT '',
			task_id TEXT NOT NULL DEFAULT '',
			task_name TEXT NOT NULL DEFAULT '',
			activity_id TEXT NOT NULL DEFAULT '',
			activity_name TEXT NOT NULL DEFAULT '',
			transition_id TEXT NOT NULL DEFAULT '',
			assignee TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_audit_records_instance
			ON audit_records (process_instance_id, seq);`,
	)
	return err
}

func (s *AuditStore) Append(ctx context.Context, r domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, kind, ts, process_instance_id, process_definition_key,
			task_id, task_name, activity_id, activity_name, transition_id, assignee, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		string(r.Kind),
		r.Timestamp.UnixNano(),
		r.ProcessInstanceID,
		r.ProcessDefinitionKey,
		r.TaskID,
		r.TaskName,
		r.ActivityID,
		r.ActivityName,
		r.TransitionID,
		r.Assignee,
		r.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *AuditStore) List(ctx context.Context, processInstanceID string) ([]domain.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, ts, process_instance_id, process_definition_key, task_id, task_name,
			activity_id, activity_name, transition_id, assignee, reason
		FROM audit_records
		WHERE process_instance_id = ?
		ORDER BY seq`,
		processInstanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	records := []domain.AuditRecord{}
	for rows.Next() {
		var (
			r    domain.AuditRecord
			kind string
			ts   int64
		)
		if err := rows.Scan(&r.ID, &kind, &ts, &r.ProcessInstanceID, &r.ProcessDefinitionKey,
			&r.TaskID, &r.TaskName, &r.ActivityID, &r.ActivityName, &r.TransitionID,
			&r.Assignee, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		r.Kind = domain.AuditKind(kind)
		r.Timestamp = time.Unix(0, ts).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}
