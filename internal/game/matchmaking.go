package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/events"
	"github.com/coinduel/backend/internal/models"
	"github.com/coinduel/backend/internal/wallet"
)

const queueColumns = `id, user_id, username, choice, amount, status, matched_with, game_session_id, created_at, matched_at`

const sessionColumns = `id, player1_id, player1_username, player1_choice, player2_id, player2_username, player2_choice,
	amount, status, flip_result, winner_id, created_at, flipped_at, completed_at`

// SubmitResult is the outcome of a queue submission
type SubmitResult struct {
	Matched          bool                `json:"matched"`
	Entry            *models.QueueEntry  `json:"entry"`
	Session          *models.GameSession `json:"session,omitempty"`
	OpponentID       uuid.UUID           `json:"opponent_id,omitempty"`
	OpponentUsername string              `json:"opponent_username,omitempty"`
}

// SubmitChoice pairs the caller with the oldest compatible waiting entry
// (same stake, opposite choice, different user) or parks a new waiting entry.
// Claim and session creation happen in one transaction: FOR UPDATE SKIP LOCKED
// on the opponent row guarantees two simultaneous opposite submissions create
// exactly one session between them.
func (s *Service) SubmitChoice(ctx context.Context, userID uuid.UUID, username, choice string, amount float64) (*SubmitResult, error) {
	if choice != models.ChoiceHeads && choice != models.ChoiceTails {
		return nil, ErrInvalidChoice
	}
	if amount < float64(s.cfg.MinBetAmount) || amount > float64(s.cfg.MaxBetAmount) || amount != math.Trunc(amount) {
		return nil, ErrInvalidAmount
	}

	// Stake must be covered before entering the queue. The debit itself
	// happens at settlement; this is a synchronous validation gate.
	w, err := wallet.Get(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("read wallet: %w", err)
	}
	if w.Balance < amount {
		return nil, wallet.ErrInsufficientFunds
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// One active entry per user per stake class
	var activeCount int
	if err := tx.Get(&activeCount, `
		SELECT COUNT(*) FROM matchmaking_queue
		WHERE user_id = $1 AND status IN ('waiting','matched') AND game_session_id IS NULL
	`, userID); err != nil {
		return nil, fmt.Errorf("check active entries: %w", err)
	}
	if activeCount > 0 {
		return nil, ErrAlreadyQueued
	}

	// Claim the oldest compatible opponent. SKIP LOCKED keeps two concurrent
	// claimers from blocking on (or double-claiming) the same row.
	var opponent models.QueueEntry
	err = tx.Get(&opponent, `
		SELECT `+queueColumns+`
		FROM matchmaking_queue
		WHERE status = 'waiting'
		  AND choice = $1
		  AND amount = $2
		  AND user_id != $3
		ORDER BY created_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, models.OppositeChoice(choice), amount, userID)

	if errors.Is(err, sql.ErrNoRows) {
		// No opponent available: park a waiting entry
		entry := models.QueueEntry{
			ID:        uuid.New(),
			UserID:    userID,
			Username:  username,
			Choice:    choice,
			Amount:    amount,
			Status:    models.QueueWaiting,
			CreatedAt: time.Now(),
		}
		if _, err := tx.Exec(`
			INSERT INTO matchmaking_queue (id, user_id, username, choice, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5, 'waiting', NOW())
		`, entry.ID, userID, username, choice, amount); err != nil {
			return nil, fmt.Errorf("insert queue entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}

		log.Printf("[MATCH] Queued: user=%s choice=%s stake=%.2f entry=%s", username, choice, amount, entry.ID)
		return &SubmitResult{Matched: false, Entry: &entry}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search queue: %w", err)
	}

	// Opponent found: create the session and mark both entries matched in
	// the same transaction
	session := models.GameSession{
		ID:              uuid.New(),
		Player1ID:       opponent.UserID,
		Player1Username: opponent.Username,
		Player1Choice:   opponent.Choice,
		Player2ID:       userID,
		Player2Username: username,
		Player2Choice:   choice,
		Amount:          amount,
		Status:          models.SessionWaiting,
		CreatedAt:       time.Now(),
	}
	if _, err := tx.Exec(`
		INSERT INTO game_sessions (id, player1_id, player1_username, player1_choice, player2_id, player2_username, player2_choice, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'waiting', NOW())
	`, session.ID, session.Player1ID, session.Player1Username, session.Player1Choice,
		session.Player2ID, session.Player2Username, session.Player2Choice, amount); err != nil {
		return nil, fmt.Errorf("create game session: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE matchmaking_queue
		SET status = 'matched', matched_with = $1, game_session_id = $2, matched_at = NOW()
		WHERE id = $3
	`, userID, session.ID, opponent.ID); err != nil {
		return nil, fmt.Errorf("update opponent entry: %w", err)
	}

	myEntry := models.QueueEntry{
		ID:            uuid.New(),
		UserID:        userID,
		Username:      username,
		Choice:        choice,
		Amount:        amount,
		Status:        models.QueueMatched,
		MatchedWith:   uuid.NullUUID{UUID: opponent.UserID, Valid: true},
		GameSessionID: uuid.NullUUID{UUID: session.ID, Valid: true},
		CreatedAt:     time.Now(),
	}
	if _, err := tx.Exec(`
		INSERT INTO matchmaking_queue (id, user_id, username, choice, amount, status, matched_with, game_session_id, created_at, matched_at)
		VALUES ($1, $2, $3, $4, $5, 'matched', $6, $7, NOW(), NOW())
	`, myEntry.ID, userID, username, choice, amount, opponent.UserID, session.ID); err != nil {
		return nil, fmt.Errorf("insert matched entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[MATCH] Matched: %s (%s) vs %s (%s) stake=%.2f session=%s",
		opponent.Username, opponent.Choice, username, choice, amount, session.ID)

	// Notify the waiting opponent that their entry was claimed
	opponent.Status = models.QueueMatched
	opponent.MatchedWith = uuid.NullUUID{UUID: userID, Valid: true}
	opponent.GameSessionID = uuid.NullUUID{UUID: session.ID, Valid: true}
	s.notifier.PublishQueueEvent(ctx, events.TypeQueueMatched, &opponent)
	s.notifier.PublishSessionEvent(ctx, events.TypeSessionCreated, &session)

	return &SubmitResult{
		Matched:          true,
		Entry:            &myEntry,
		Session:          &session,
		OpponentID:       opponent.UserID,
		OpponentUsername: opponent.Username,
	}, nil
}

// GetQueueEntry returns a queue entry owned by the caller
func (s *Service) GetQueueEntry(ctx context.Context, entryID, userID uuid.UUID) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	err := s.db.GetContext(ctx, &entry, `SELECT `+queueColumns+` FROM matchmaking_queue WHERE id=$1 AND user_id=$2`, entryID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// CancelQueueEntry cancels a waiting entry. The conditional update is the race
// guard: if a match claimed the entry first, zero rows are affected and the
// caller learns it lost the race instead of cancelling a live game.
func (s *Service) CancelQueueEntry(ctx context.Context, entryID, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE matchmaking_queue SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status = 'waiting'
	`, entryID, userID)
	if err != nil {
		return fmt.Errorf("cancel queue entry: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		entry, gerr := s.GetQueueEntry(ctx, entryID, userID)
		if gerr != nil {
			return ErrEntryNotFound
		}
		if entry.Status == models.QueueMatched {
			return ErrAlreadyMatched
		}
		// cancelled or expired already; treat as done
		return nil
	}

	log.Printf("[MATCH] Cancelled queue entry %s (user=%s)", entryID, userID)

	entry, err := s.GetQueueEntry(ctx, entryID, userID)
	if err == nil {
		s.notifier.PublishQueueEvent(ctx, events.TypeQueueCancelled, entry)
	}
	return nil
}

// ExpireQueueEntries marks long-waiting entries expired. The client-side match
// countdown is a soft timeout only: entries stay eligible for a late match
// until this hard ceiling, which exists so the queue doesn't accumulate
// entries from players who walked away.
func (s *Service) ExpireQueueEntries(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE matchmaking_queue SET status = 'expired'
		WHERE status = 'waiting' AND created_at < NOW() - make_interval(mins => $1)
	`, s.cfg.QueueExpiryMinutes)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		log.Printf("[QUEUE EXPIRY] Expired %d queued entries", affected)
	}
	return int(affected), nil
}

// StartQueueExpiryWorker runs the expiry job once a minute
func (s *Service) StartQueueExpiryWorker(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Printf("[QUEUE EXPIRY] Worker stopped")
				return
			case <-ticker.C:
				if _, err := s.ExpireQueueEntries(ctx); err != nil {
					log.Printf("[QUEUE EXPIRY] Error during expiry job: %v", err)
				}
			}
		}
	}()
}
