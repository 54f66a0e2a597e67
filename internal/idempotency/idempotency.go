// Package idempotency implements the at-most-once command gate keyed by
// a client-supplied header, partitioned by tenant.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/apierror"
	"github.com/zayar/simplecashflow/internal/database"
)

// Record is one stored idempotency row.
type Record struct {
	TenantID        int64           `json:"tenant_id"`
	Key             string          `json:"key"`
	FingerprintHash string          `json:"fingerprint_hash"`
	StoredResponse  json.RawMessage `json:"stored_response"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Result is the outcome of a Run call.
type Result struct {
	Response json.RawMessage
	Replay   bool
}

// Fingerprint computes the stable hash of the canonicalised request body
// plus route and tenant.
func Fingerprint(tenantID int64, route string, body []byte) string {
	canonical := canonicalizeJSON(body)
	h := sha256.New()
	fmt.Fprintf(h, "%d\n%s\n", tenantID, route)
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalizeJSON re-marshals a JSON document so that key order and
// insignificant whitespace do not change the fingerprint. Invalid JSON
// hashes as-is.
func canonicalizeJSON(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return body
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

// Store runs builds under the (tenant, key) gate.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new idempotency store
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Run executes build at most once per (tenantID, key). A replay with a
// matching fingerprint returns the stored response; a replay with a
// different fingerprint fails IDEMPOTENCY_CONFLICT. The transaction is
// carried on the context handed to build, so every database.WithTx the
// domain services open inside joins it: the business write and the
// idempotency row commit or roll back together.
func (s *Store) Run(ctx context.Context, tenantID int64, key, fingerprint string, build func(ctx context.Context) (interface{}, error)) (*Result, error) {
	if key == "" {
		return nil, apierror.New(apierror.KindValidation, "Idempotency-Key header required")
	}
	if len(key) > 128 {
		return nil, apierror.New(apierror.KindValidation, "Idempotency-Key exceeds 128 characters")
	}

	if rec, err := s.lookup(ctx, s.db, tenantID, key); err != nil {
		return nil, err
	} else if rec != nil {
		return replayOf(rec, fingerprint)
	}

	var response json.RawMessage
	replayed := false
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		// Serialise concurrent holders of the same key; the lock
		// releases at commit or rollback.
		if err := database.AdvisoryXactLock(ctx, tx, fmt.Sprintf("idem:%d:%s", tenantID, key)); err != nil {
			return err
		}

		// A racing request may have committed while we waited.
		rec, err := s.lookup(ctx, tx, tenantID, key)
		if err != nil {
			return err
		}
		if rec != nil {
			result, err := replayOf(rec, fingerprint)
			if err != nil {
				return err
			}
			response = result.Response
			replayed = true
			return nil
		}

		out, err := build(database.ContextWithTx(ctx, tx))
		if err != nil {
			return err
		}
		body, err := json.Marshal(out)
		if err != nil {
			return apierror.Wrap(apierror.KindIntegrity, err, "marshal stored response")
		}
		response = body

		if _, err := tx.Exec(ctx, `
			INSERT INTO idempotency_records (tenant_id, key, fingerprint_hash, stored_response, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, tenantID, key, fingerprint, body); err != nil {
			return fmt.Errorf("insert idempotency record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Response: response, Replay: replayed}, nil
}

func (s *Store) lookup(ctx context.Context, q database.Queryer, tenantID int64, key string) (*Record, error) {
	var rec Record
	err := q.QueryRow(ctx, `
		SELECT tenant_id, key, fingerprint_hash, stored_response, created_at
		FROM idempotency_records
		WHERE tenant_id = $1 AND key = $2
	`, tenantID, key).Scan(&rec.TenantID, &rec.Key, &rec.FingerprintHash, &rec.StoredResponse, &rec.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency record: %w", err)
	}
	return &rec, nil
}

func replayOf(rec *Record, fingerprint string) (*Result, error) {
	if rec.FingerprintHash != fingerprint {
		return nil, apierror.New(apierror.KindIdempotencyConflict,
			"idempotency key reused with a different request body")
	}
	return &Result{Response: rec.StoredResponse, Replay: true}, nil
}
