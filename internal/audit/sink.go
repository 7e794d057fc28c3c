package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink records business actions for traceability. Recording is
// fire-and-forget: failures are logged and never propagate into the
// operation being audited.
type Sink interface {
	Record(ctx context.Context, action, entityType string, entityID uuid.UUID, description string, before, after any)
}

// PGSink writes audit rows to Postgres.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Record(ctx context.Context, action, entityType string, entityID uuid.UUID, description string, before, after any) {
	beforeJSON := marshalOrNil(before)
	afterJSON := marshalOrNil(after)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (action, entity_type, entity_id, description, before_state, after_state)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, action, entityType, entityID, description, beforeJSON, afterJSON)
	if err != nil {
		log.Printf("audit: failed to record %s on %s %s: %v", action, entityType, entityID, err)
	}
}

func marshalOrNil(v any) []byte {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// NopSink discards all records; used in tests and read-only tools.
type NopSink struct{}

func (NopSink) Record(context.Context, string, string, uuid.UUID, string, any, any) {}
