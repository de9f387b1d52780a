// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/domain/participant"
	"github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
)

// Store implements the storage interfaces on top of a PostgreSQL database.
type Store struct {
	db *sql.DB
}

var _ storage.EventStore = (*Store)(nil)
var _ storage.ParticipantStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- EventStore -------------------------------------------------------------

func (s *Store) AppendPixelEvent(ctx context.Context, ev canvas.PixelEvent) (canvas.PixelEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.PlacedAt.IsZero() {
		ev.PlacedAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO canvas_events (id, x, y, color, author_id, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq
	`, ev.ID, ev.X, ev.Y, ev.Color, ev.AuthorID, ev.PlacedAt)
	if err := row.Scan(&ev.Seq); err != nil {
		return canvas.PixelEvent{}, err
	}
	return ev, nil
}

func (s *Store) ListPixelEvents(ctx context.Context) ([]canvas.PixelEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, x, y, color, author_id, seq, placed_at
		FROM canvas_events
		ORDER BY placed_at, seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []canvas.PixelEvent
	for rows.Next() {
		var ev canvas.PixelEvent
		if err := rows.Scan(&ev.ID, &ev.X, &ev.Y, &ev.Color, &ev.AuthorID, &ev.Seq, &ev.PlacedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// --- ParticipantStore -------------------------------------------------------

func (s *Store) UpsertParticipant(ctx context.Context, p participant.Participant) (participant.Participant, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO participants (id, external_id, display_name, pixel_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (external_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at
		RETURNING id, external_id, display_name, pixel_balance, created_at, updated_at
	`, p.ID, p.ExternalID, p.DisplayName, p.PixelBalance, now)

	var out participant.Participant
	if err := row.Scan(&out.ID, &out.ExternalID, &out.DisplayName, &out.PixelBalance, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return participant.Participant{}, err
	}
	return out, nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (participant.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, display_name, pixel_balance, created_at, updated_at
		FROM participants
		WHERE id = $1
	`, id)

	var p participant.Participant
	if err := row.Scan(&p.ID, &p.ExternalID, &p.DisplayName, &p.PixelBalance, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return participant.Participant{}, storage.ErrNotFound
		}
		return participant.Participant{}, err
	}
	return p, nil
}

// DebitPixelBalance is a single conditional UPDATE so that two overlapping
// debits can never both observe the same pre-debit balance.
func (s *Store) DebitPixelBalance(ctx context.Context, id string) (bool, int, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE participants
		SET pixel_balance = pixel_balance - 1, updated_at = NOW()
		WHERE id = $1 AND pixel_balance > 0
		RETURNING pixel_balance
	`, id)

	var newBalance int
	err := row.Scan(&newBalance)
	if err == nil {
		return true, newBalance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, err
	}

	// Either the participant does not exist or the balance was zero.
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return false, 0, err
	}
	return false, p.PixelBalance, nil
}

func (s *Store) CreditPixelBalance(ctx context.Context, id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, errors.New("credit amount must be positive")
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE participants
		SET pixel_balance = pixel_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING pixel_balance
	`, id, amount)

	var newBalance int
	if err := row.Scan(&newBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, err
	}
	return newBalance, nil
}

// CreditPixelsWithTransaction runs the credit and the audit insert inside one
// database transaction.
func (s *Store) CreditPixelsWithTransaction(ctx context.Context, id string, amount int, tx purchase.Transaction) (int, purchase.Transaction, error) {
	if amount <= 0 {
		return 0, purchase.Transaction{}, errors.New("credit amount must be positive")
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, purchase.Transaction{}, err
	}
	defer dbTx.Rollback()

	var newBalance int
	row := dbTx.QueryRowContext(ctx, `
		UPDATE participants
		SET pixel_balance = pixel_balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING pixel_balance
	`, id, amount)
	if err := row.Scan(&newBalance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, purchase.Transaction{}, storage.ErrNotFound
		}
		return 0, purchase.Transaction{}, err
	}

	tx.ID = uuid.NewString()
	tx.ParticipantID = id
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO purchase_transactions
			(id, participant_id, pack_size, pixels_granted, digipogs_spent, discount_percent, status, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.ParticipantID, tx.PackSize, tx.PixelsGranted, tx.DigipogsSpent, tx.DiscountPercent, tx.Status, tx.IdempotencyKey, tx.CreatedAt)
	if err != nil {
		return 0, purchase.Transaction{}, err
	}

	if err := dbTx.Commit(); err != nil {
		return 0, purchase.Transaction{}, err
	}
	return newBalance, tx, nil
}

// --- TransactionStore -------------------------------------------------------

func (s *Store) CreatePurchaseTransaction(ctx context.Context, tx purchase.Transaction) (purchase.Transaction, error) {
	tx.ID = uuid.NewString()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_transactions
			(id, participant_id, pack_size, pixels_granted, digipogs_spent, discount_percent, status, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.ParticipantID, tx.PackSize, tx.PixelsGranted, tx.DigipogsSpent, tx.DiscountPercent, tx.Status, tx.IdempotencyKey, tx.CreatedAt)
	if err != nil {
		return purchase.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) ListPurchaseTransactions(ctx context.Context, participantID string) ([]purchase.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, pack_size, pixels_granted, digipogs_spent, discount_percent, status, idempotency_key, created_at
		FROM purchase_transactions
		WHERE participant_id = $1
		ORDER BY created_at
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []purchase.Transaction
	for rows.Next() {
		var tx purchase.Transaction
		if err := rows.Scan(&tx.ID, &tx.ParticipantID, &tx.PackSize, &tx.PixelsGranted, &tx.DigipogsSpent, &tx.DiscountPercent, &tx.Status, &tx.IdempotencyKey, &tx.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}
