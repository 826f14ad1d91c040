package game

import (
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/events"
)

// Race-lost and validation errors. Race-lost errors are expected under
// concurrency: the caller must re-read the authoritative row, never retry
// the mutating call.
var (
	ErrEntryNotFound   = errors.New("queue entry not found")
	ErrAlreadyQueued   = errors.New("player already has an active queue entry")
	ErrAlreadyMatched  = errors.New("queue entry already matched")
	ErrInvalidChoice   = errors.New("choice must be heads or tails")
	ErrInvalidSide     = errors.New("side must be king or tail")
	ErrInvalidAmount   = errors.New("invalid bet amount")
	ErrSessionNotFound = errors.New("game session not found")
	ErrNotParticipant  = errors.New("not a player in this session")
	ErrAlreadyFlipped  = errors.New("already flipped")
	ErrNotCompleted    = errors.New("game session not completed")
	ErrAlreadySettled  = errors.New("game already settled")
	ErrRoundNotFound   = errors.New("round not found")
	ErrRoundClosed     = errors.New("round is not accepting bets")
	ErrRoundNotEnded   = errors.New("round betting window has not ended")
	ErrSideMismatch    = errors.New("cannot switch sides within a round")
)

// Service implements matchmaking, flip execution, settlement and the
// multiplayer pool against the shared store. All contested transitions are
// single-row conditional updates so concurrent callers collapse into one
// authoritative winner.
type Service struct {
	db       *sqlx.DB
	cfg      *config.Config
	notifier *events.Notifier
}

// NewService creates the game service
func NewService(db *sqlx.DB, cfg *config.Config, notifier *events.Notifier) *Service {
	return &Service{db: db, cfg: cfg, notifier: notifier}
}
