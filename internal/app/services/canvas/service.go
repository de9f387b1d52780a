// Package canvas implements the placement authorizer and the materialized
// canvas view over the pixel event log.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	domain "github.com/yorktechapps/pixelplace/internal/app/domain/canvas"
	"github.com/yorktechapps/pixelplace/internal/app/storage"
	"github.com/yorktechapps/pixelplace/pkg/logger"
)

// Placement failure modes surfaced to the caller.
var (
	ErrInvalidCoordinate   = errors.New("coordinate outside canvas bounds")
	ErrInvalidColor        = errors.New("color must be a 3- or 6-digit hex value")
	ErrUnknownParticipant  = errors.New("participant not found")
	ErrInsufficientBalance = errors.New("insufficient pixel balance")
)

const lockStripes = 64

// PlaceResult reports the outcome of an accepted placement.
type PlaceResult struct {
	Event      domain.PixelEvent
	Charged    bool
	NewBalance int
}

// Service authorizes placements, appends them to the event log and keeps the
// materialized view current.
type Service struct {
	events       storage.EventStore
	participants storage.ParticipantStore
	proj         *projection
	log          *logger.Logger

	// locks serializes the read-view/debit/append sequence per participant
	// so overlapping requests from one participant cannot interleave
	// between the balance check and the commit.
	locks [lockStripes]sync.Mutex
}

// New constructs the canvas service. Call Rebuild before serving requests.
func New(events storage.EventStore, participants storage.ParticipantStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("canvas")
	}
	return &Service{
		events:       events,
		participants: participants,
		proj:         newProjection(),
		log:          log,
	}
}

// Rebuild reconstructs the materialized view from the full event log.
func (s *Service) Rebuild(ctx context.Context) error {
	events, err := s.events.ListPixelEvents(ctx)
	if err != nil {
		return fmt.Errorf("list pixel events: %w", err)
	}

	s.proj.Reset()
	for _, ev := range events {
		s.proj.Apply(ev)
	}
	s.log.WithField("events", len(events)).Info("canvas view rebuilt")
	return nil
}

// ColorAt returns the current color at (x, y).
func (s *Service) ColorAt(x, y int) (string, error) {
	if !domain.ValidCoordinate(x, y) {
		return "", ErrInvalidCoordinate
	}
	return s.proj.ColorAt(x, y), nil
}

// Snapshot returns the full grid, row-major, white where untouched.
func (s *Service) Snapshot() [][]string {
	return s.proj.Snapshot()
}

// Cells returns every placed coordinate with its current color.
func (s *Service) Cells() []domain.Cell {
	return s.proj.Cells()
}

// Replay returns the full chronological placement history.
func (s *Service) Replay(ctx context.Context) ([]domain.PixelEvent, error) {
	return s.events.ListPixelEvents(ctx)
}

func (s *Service) stripe(participantID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(participantID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Place validates and commits one placement. Re-asserting the color already
// present at the coordinate is free and always accepted; any other placement
// debits exactly one pixel before it is committed.
func (s *Service) Place(ctx context.Context, participantID string, x, y int, color string) (PlaceResult, error) {
	if !domain.ValidCoordinate(x, y) {
		return PlaceResult{}, ErrInvalidCoordinate
	}
	if !domain.ValidColor(color) {
		return PlaceResult{}, ErrInvalidColor
	}
	color = domain.NormalizeColor(color)

	mu := s.stripe(participantID)
	mu.Lock()
	defer mu.Unlock()

	p, err := s.participants.GetParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PlaceResult{}, ErrUnknownParticipant
		}
		return PlaceResult{}, fmt.Errorf("load participant: %w", err)
	}

	charged := false
	newBalance := p.PixelBalance
	if !domain.SameColor(s.proj.ColorAt(x, y), color) {
		applied, balance, err := s.participants.DebitPixelBalance(ctx, participantID)
		if err != nil {
			return PlaceResult{}, fmt.Errorf("debit balance: %w", err)
		}
		if !applied {
			return PlaceResult{}, ErrInsufficientBalance
		}
		charged = true
		newBalance = balance
	}

	ev, err := s.events.AppendPixelEvent(ctx, domain.PixelEvent{
		X:        x,
		Y:        y,
		Color:    color,
		AuthorID: participantID,
	})
	if err != nil {
		if charged {
			// The debit went through but the placement did not commit;
			// hand the pixel back.
			if _, creditErr := s.participants.CreditPixelBalance(ctx, participantID, 1); creditErr != nil {
				s.log.WithError(creditErr).
					WithField("participant_id", participantID).
					Error("refund after failed append also failed")
			}
		}
		return PlaceResult{}, fmt.Errorf("append pixel event: %w", err)
	}

	s.proj.Apply(ev)

	s.log.WithField("participant_id", participantID).
		WithField("x", x).
		WithField("y", y).
		WithField("color", color).
		WithField("charged", charged).
		Debug("pixel placed")

	return PlaceResult{Event: ev, Charged: charged, NewBalance: newBalance}, nil
}
