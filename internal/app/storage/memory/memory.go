// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/domain/participant"
	"github.com/yorktechapps/pixelplace/internal/app/domain/purchase"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
)

// Store is the in-memory backend.
type Store struct {
	mu                  sync.RWMutex
	nextID              int64
	nextSeq             int64
	events              []canvas.PixelEvent
	participants        map[string]participant.Participant
	participantsByExtID map[int64]string
	transactions        map[string][]purchase.Transaction
}

var _ storage.EventStore = (*Store)(nil)
var _ storage.ParticipantStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:              1,
		nextSeq:             1,
		participants:        make(map[string]participant.Participant),
		participantsByExtID: make(map[int64]string),
		transactions:        make(map[string][]purchase.Transaction),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// EventStore implementation --------------------------------------------------

func (s *Store) AppendPixelEvent(_ context.Context, ev canvas.PixelEvent) (canvas.PixelEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = s.nextIDLocked()
	ev.Seq = s.nextSeq
	s.nextSeq++
	if ev.PlacedAt.IsZero() {
		ev.PlacedAt = time.Now().UTC()
	}

	s.events = append(s.events, ev)
	return ev, nil
}

func (s *Store) ListPixelEvents(_ context.Context) ([]canvas.PixelEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]canvas.PixelEvent, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

// ParticipantStore implementation --------------------------------------------

func (s *Store) UpsertParticipant(_ context.Context, p participant.Participant) (participant.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := s.participantsByExtID[p.ExternalID]; ok {
		existing := s.participants[id]
		existing.DisplayName = p.DisplayName
		existing.UpdatedAt = now
		s.participants[id] = existing
		return existing, nil
	}

	p.ID = s.nextIDLocked()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.PixelBalance < 0 {
		return participant.Participant{}, fmt.Errorf("pixel balance cannot be negative")
	}
	s.participants[p.ID] = p
	s.participantsByExtID[p.ExternalID] = p.ID
	return p, nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (participant.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[id]
	if !ok {
		return participant.Participant{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) DebitPixelBalance(_ context.Context, id string) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[id]
	if !ok {
		return false, 0, storage.ErrNotFound
	}
	if p.PixelBalance <= 0 {
		return false, p.PixelBalance, nil
	}

	p.PixelBalance--
	p.UpdatedAt = time.Now().UTC()
	s.participants[id] = p
	return true, p.PixelBalance, nil
}

func (s *Store) CreditPixelBalance(_ context.Context, id string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creditLocked(id, amount)
}

func (s *Store) creditLocked(id string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	p, ok := s.participants[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	p.PixelBalance += amount
	p.UpdatedAt = time.Now().UTC()
	s.participants[id] = p
	return p.PixelBalance, nil
}

func (s *Store) CreditPixelsWithTransaction(_ context.Context, id string, amount int, tx purchase.Transaction) (int, purchase.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	newBalance, err := s.creditLocked(id, amount)
	if err != nil {
		return 0, purchase.Transaction{}, err
	}

	tx.ID = s.nextIDLocked()
	tx.ParticipantID = id
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.transactions[id] = append(s.transactions[id], tx)
	return newBalance, tx, nil
}

// TransactionStore implementation --------------------------------------------

func (s *Store) CreatePurchaseTransaction(_ context.Context, tx purchase.Transaction) (purchase.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.participants[tx.ParticipantID]; !ok {
		return purchase.Transaction{}, storage.ErrNotFound
	}

	tx.ID = s.nextIDLocked()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.transactions[tx.ParticipantID] = append(s.transactions[tx.ParticipantID], tx)
	return tx, nil
}

func (s *Store) ListPurchaseTransactions(_ context.Context, participantID string) ([]purchase.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.transactions[participantID]
	out := make([]purchase.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}
