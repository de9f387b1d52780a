// Package ledger owns participant pixel balances and their audit trail.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/yorktechapps/pixelplace/internal/app/domain/participant"
	"github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// ErrParticipantNotFound is returned for operations on unknown participants.
var ErrParticipantNotFound = errors.New("participant not found")

// Service exposes balance reads, the atomic credit used by completed
// purchases, and participant registration.
type Service struct {
	participants storage.ParticipantStore
	transactions storage.TransactionStore
	log          *logger.Logger
}

// New constructs a ledger service.
func New(participants storage.ParticipantStore, transactions storage.TransactionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Service{
		participants: participants,
		transactions: transactions,
		log:          log,
	}
}

// Register creates or refreshes a participant from external identity claims.
func (s *Service) Register(ctx context.Context, externalID int64, displayName string) (participant.Participant, error) {
	if externalID <= 0 {
		return participant.Participant{}, fmt.Errorf("external id must be positive")
	}
	if displayName == "" {
		return participant.Participant{}, fmt.Errorf("display name is required")
	}

	p, err := s.participants.UpsertParticipant(ctx, participant.Participant{
		ExternalID:  externalID,
		DisplayName: displayName,
	})
	if err != nil {
		return participant.Participant{}, fmt.Errorf("upsert participant: %w", err)
	}
	s.log.WithField("participant_id", p.ID).
		WithField("external_id", externalID).
		Info("participant registered")
	return p, nil
}

// Get returns the participant by internal ID.
func (s *Service) Get(ctx context.Context, id string) (participant.Participant, error) {
	p, err := s.participants.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return participant.Participant{}, ErrParticipantNotFound
		}
		return participant.Participant{}, err
	}
	return p, nil
}

// Balance returns the current pixel balance.
func (s *Service) Balance(ctx context.Context, id string) (int, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.PixelBalance, nil
}

// CreditPurchase credits the granted pixels and records the completed audit
// transaction as one atomic unit.
func (s *Service) CreditPurchase(ctx context.Context, participantID string, pack purchase.Pack, idempotencyKey string) (int, purchase.Transaction, error) {
	tx := purchase.Transaction{
		PackSize:        pack.Size,
		PixelsGranted:   pack.Size,
		DigipogsSpent:   pack.TotalPrice,
		DiscountPercent: pack.DiscountPercent,
		Status:          purchase.StatusCompleted,
		IdempotencyKey:  idempotencyKey,
	}

	newBalance, created, err := s.participants.CreditPixelsWithTransaction(ctx, participantID, pack.Size, tx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, purchase.Transaction{}, ErrParticipantNotFound
		}
		return 0, purchase.Transaction{}, fmt.Errorf("credit purchase: %w", err)
	}

	s.log.WithField("participant_id", participantID).
		WithField("pack_size", pack.Size).
		WithField("new_balance", newBalance).
		Info("purchase credited")
	return newBalance, created, nil
}

// RecordUnsettled parks an audit record for a transfer attempt whose outcome
// is unknown (timeout). No balance mutation happens here.
func (s *Service) RecordUnsettled(ctx context.Context, participantID string, pack purchase.Pack, idempotencyKey string) (purchase.Transaction, error) {
	tx, err := s.transactions.CreatePurchaseTransaction(ctx, purchase.Transaction{
		ParticipantID:   participantID,
		PackSize:        pack.Size,
		PixelsGranted:   0,
		DigipogsSpent:   pack.TotalPrice,
		DiscountPercent: pack.DiscountPercent,
		Status:          purchase.StatusPendingReconcile,
		IdempotencyKey:  idempotencyKey,
	})
	if err != nil {
		return purchase.Transaction{}, fmt.Errorf("record unsettled purchase: %w", err)
	}

	s.log.WithField("participant_id", participantID).
		WithField("idempotency_key", idempotencyKey).
		Warn("transfer outcome unknown; parked for reconciliation")
	return tx, nil
}

// Transactions returns the purchase history for a participant.
func (s *Service) Transactions(ctx context.Context, participantID string) ([]purchase.Transaction, error) {
	return s.transactions.ListPurchaseTransactions(ctx, participantID)
}
