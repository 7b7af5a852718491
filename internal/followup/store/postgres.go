package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deal_followup_backend/internal/followup"
	"deal_followup_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation          = "23505"
	onePendingPerDealIndex   = "follow_ups_one_pending_per_deal"
	recordColumns            = `id, deal_id, deal_name, contact_name, contact_email, contact_phone, owner_email, urgency_score, urgency_reason, draft_subject, draft_body, status, message_ref, created_at, sent_at`
	selectRecordsOrderedStmt = `SELECT ` + recordColumns + ` FROM follow_ups ORDER BY seq`
)

// PostgresStore keeps one row per record. The partial unique index on
// (deal_id) WHERE status = 'pending' enforces one pending record per deal.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pool whose schema has been migrated.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetAll(ctx context.Context) ([]followup.Record, error) {
	rows, err := s.pool.Query(ctx, selectRecordsOrderedStmt)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	records := make([]followup.Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (followup.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM follow_ups WHERE id = $1`, id)
	return scanOne(row)
}

func (s *PostgresStore) GetPendingByDeal(ctx context.Context, dealID string) (followup.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM follow_ups WHERE deal_id = $1 AND status = 'pending'`, dealID)
	return scanOne(row)
}

func (s *PostgresStore) Create(ctx context.Context, r followup.Record) error {
	if err := r.ValidateNew(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO follow_ups (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.DealID, r.DealName, r.ContactName, r.ContactEmail, r.ContactPhone, r.OwnerEmail,
		string(r.UrgencyScore), r.UrgencyReason, r.DraftSubject, r.DraftBody, string(r.Status),
		nullableString(r.MessageRef), r.CreatedAt.UTC(), r.SentAt,
	)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == onePendingPerDealIndex {
			return followup.ErrDuplicatePending
		}
		return apperr.Conflict("follow-up id already exists")
	}
	return fmt.Errorf("insert follow-up: %w", err)
}

// Update locks the row, applies the patch in Go and writes it back inside one
// transaction, so concurrent updates of the same id are serialized.
func (s *PostgresStore) Update(ctx context.Context, id string, patch followup.Patch) (followup.Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return followup.Record{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanOne(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM follow_ups WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return followup.Record{}, err
	}

	next, err := current.Apply(patch)
	if err != nil {
		return followup.Record{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE follow_ups SET status = $2, sent_at = $3, message_ref = $4 WHERE id = $1`,
		id, string(next.Status), next.SentAt, nullableString(next.MessageRef),
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return followup.Record{}, followup.ErrDuplicatePending
		}
		return followup.Record{}, fmt.Errorf("update follow-up: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return followup.Record{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanOne(row pgx.Row) (followup.Record, error) {
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return followup.Record{}, followup.ErrNotFound
	}
	return r, err
}

func scanRecord(row pgx.Row) (followup.Record, error) {
	var (
		r          followup.Record
		urgency    string
		status     string
		messageRef *string
		createdAt  time.Time
		sentAt     *time.Time
	)
	if err := row.Scan(
		&r.ID, &r.DealID, &r.DealName, &r.ContactName, &r.ContactEmail, &r.ContactPhone, &r.OwnerEmail,
		&urgency, &r.UrgencyReason, &r.DraftSubject, &r.DraftBody, &status, &messageRef, &createdAt, &sentAt,
	); err != nil {
		return followup.Record{}, err
	}

	r.UrgencyScore = followup.Urgency(urgency)
	r.Status = followup.Status(status)
	r.CreatedAt = createdAt.UTC()
	if messageRef != nil {
		r.MessageRef = *messageRef
	}
	if sentAt != nil {
		at := sentAt.UTC()
		r.SentAt = &at
	}
	return r, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Store = (*PostgresStore)(nil)
