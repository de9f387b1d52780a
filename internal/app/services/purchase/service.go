// Package purchase orchestrates pixel pack purchases: pricing, the external
// digipogs transfer, and the ledger credit on confirmed success.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/metrics"
	"github.com/yorktechapps/pixelplace/internal/app/services/ledger"
	"github.com/yorktechapps/pixelplace/internal/app/services/settlement"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// Purchase failure modes surfaced to the caller before any external call.
var (
	ErrInvalidPackSize    = errors.New("invalid pack size")
	ErrInvalidPIN         = errors.New("pin must be 4 to 6 digits")
	ErrServiceUnavailable = errors.New("settlement service unavailable")
	ErrNotConfigured      = errors.New("application account not configured")
)

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// Transferrer executes external digipogs transfers.
type Transferrer interface {
	Transfer(ctx context.Context, req settlement.TransferRequest) error
	Connected() bool
}

// Result reports a completed purchase.
type Result struct {
	Pack        domain.Pack
	NewBalance  int
	Transaction domain.Transaction
}

// Service wires pricing, settlement and the ledger together.
type Service struct {
	ledger       *ledger.Service
	transfers    Transferrer
	appAccountID int64
	log          *logger.Logger
}

// New constructs a purchase service. appAccountID is the Formbar account that
// receives the digipogs.
func New(ledgerSvc *ledger.Service, transfers Transferrer, appAccountID int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("purchase")
	}
	return &Service{
		ledger:       ledgerSvc,
		transfers:    transfers,
		appAccountID: appAccountID,
		log:          log,
	}
}

// Purchase runs one pack purchase for the participant. On confirmed transfer
// success the balance credit and the audit transaction commit atomically; on
// rejection nothing changes; on timeout the attempt is parked for
// reconciliation without crediting.
func (s *Service) Purchase(ctx context.Context, participantID string, packSize int, pin string) (Result, error) {
	pack, ok := domain.PriceFor(packSize)
	if !ok {
		metrics.ObservePurchase("rejected")
		return Result{}, ErrInvalidPackSize
	}
	if !pinPattern.MatchString(pin) {
		metrics.ObservePurchase("rejected")
		return Result{}, ErrInvalidPIN
	}
	pinNumber, err := strconv.Atoi(pin)
	if err != nil {
		metrics.ObservePurchase("rejected")
		return Result{}, ErrInvalidPIN
	}

	p, err := s.ledger.Get(ctx, participantID)
	if err != nil {
		metrics.ObservePurchase("rejected")
		return Result{}, err
	}

	if s.appAccountID == 0 {
		metrics.ObservePurchase("error")
		return Result{}, ErrNotConfigured
	}
	if s.transfers == nil || !s.transfers.Connected() {
		metrics.ObservePurchase("error")
		return Result{}, ErrServiceUnavailable
	}

	key := uuid.NewString()
	start := time.Now()
	err = s.transfers.Transfer(ctx, settlement.TransferRequest{
		From:   p.ExternalID,
		To:     s.appAccountID,
		Amount: pack.TotalPrice,
		Reason: fmt.Sprintf("Purchase %d pixels", pack.Size),
		PIN:    pinNumber,
		Pool:   true,
		Ref:    key,
	})
	metrics.ObserveSettlement(time.Since(start))

	switch {
	case err == nil:
		// Confirmed by the external service; credit and audit atomically.
	case errors.Is(err, settlement.ErrTransferTimeout):
		if _, recordErr := s.ledger.RecordUnsettled(ctx, participantID, pack, key); recordErr != nil {
			s.log.WithError(recordErr).
				WithField("idempotency_key", key).
				Error("failed to park timed-out transfer")
		}
		metrics.ObservePurchase("timeout")
		return Result{}, err
	default:
		metrics.ObservePurchase("rejected")
		return Result{}, err
	}

	newBalance, tx, err := s.ledger.CreditPurchase(ctx, participantID, pack, key)
	if err != nil {
		// The digipogs moved but the credit failed. The idempotency key in
		// the log line is the operator's handle for manual repair.
		s.log.WithError(err).
			WithField("participant_id", participantID).
			WithField("idempotency_key", key).
			Error("transfer confirmed but credit failed")
		metrics.ObservePurchase("error")
		return Result{}, fmt.Errorf("credit after confirmed transfer: %w", err)
	}

	metrics.ObservePurchase("completed")
	return Result{Pack: pack, NewBalance: newBalance, Transaction: tx}, nil
}
