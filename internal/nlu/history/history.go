// Package history records parse results in Postgres for offline review and
// retraining.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/common/logger"
	"nlu-engine/internal/models"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Entry is one recorded parse.
type Entry struct {
	ID               uuid.UUID
	Input            string
	Intent           string
	Confidence       float64
	SlotNames        []string
	ModelFingerprint string
	CreatedAt        time.Time
}

// Recorder appends parse results to a single table.
type Recorder struct {
	db          *sql.DB
	table       string
	fingerprint string
	logger      logger.Logger
	now         func() time.Time
}

// New validates the table name; nothing is sent to the database.
func New(db *sql.DB, table, fingerprint string, log logger.Logger) (*Recorder, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid history table name %q", table)
	}
	return &Recorder{
		db:          db,
		table:       pq.QuoteIdentifier(table),
		fingerprint: fingerprint,
		logger:      log.Named("history"),
		now:         time.Now,
	}, nil
}

// EnsureSchema creates the table when it does not exist yet.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id UUID PRIMARY KEY,
	input TEXT NOT NULL,
	intent_name TEXT,
	confidence DOUBLE PRECISION NOT NULL,
	slot_names TEXT[] NOT NULL,
	result JSONB NOT NULL,
	model_fingerprint TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`, r.table))
	if err != nil {
		return errors.NewHistoryWriteError(err)
	}
	return nil
}

// Record stores result and returns the new row id.
func (r *Recorder) Record(ctx context.Context, result models.ParseResult) (uuid.UUID, error) {
	doc, err := json.Marshal(result)
	if err != nil {
		return uuid.Nil, errors.NewInternalError(err)
	}
	names := make([]string, len(result.Slots))
	for i, s := range result.Slots {
		names[i] = s.SlotName
	}
	var intent sql.NullString
	if !result.Intent.IsNone() {
		intent = sql.NullString{String: result.Intent.Name(), Valid: true}
	}

	id := uuid.New()
	query := fmt.Sprintf(`INSERT INTO %s
	(id, input, intent_name, confidence, slot_names, result, model_fingerprint, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table)
	_, err = r.db.ExecContext(ctx, query,
		id, result.Input, intent, result.Intent.ConfidenceScore,
		pq.Array(names), doc, r.fingerprint, r.now().UTC(),
	)
	if err != nil {
		r.logger.Warn("History write failed", map[string]interface{}{"error": err.Error()})
		return uuid.Nil, errors.NewHistoryWriteError(err)
	}
	return id, nil
}

// Recent returns up to limit entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, errors.NewInvalidInputError("limit must be positive")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, input, intent_name, confidence, slot_names, model_fingerprint, created_at
	FROM %s ORDER BY created_at DESC LIMIT $1`, r.table), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			intent sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Input, &intent, &e.Confidence, pq.Array(&e.SlotNames), &e.ModelFingerprint, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Intent = intent.String
		out = append(out, e)
	}
	return out, rows.Err()
}
