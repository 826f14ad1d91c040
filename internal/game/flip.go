package game

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/events"
	"github.com/coinduel/backend/internal/models"
)

// SecureFlip draws one coin side from crypto/rand
func SecureFlip() string {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform entropy source is broken;
		// refusing to flip is the only safe behavior
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	if b[0]&1 == 0 {
		return models.ChoiceHeads
	}
	return models.ChoiceTails
}

// SecureSide draws one pool side from crypto/rand
func SecureSide() string {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	if b[0]&1 == 0 {
		return models.SideKing
	}
	return models.SideTail
}

// Winner returns the player whose choice matched the flip result
func Winner(session *models.GameSession, flipResult string) uuid.UUID {
	if session.Player1Choice == flipResult {
		return session.Player1ID
	}
	return session.Player2ID
}

// GetSession returns a session by id
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID) (*models.GameSession, error) {
	var session models.GameSession
	err := s.db.GetContext(ctx, &session, `SELECT `+sessionColumns+` FROM game_sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func isParticipant(session *models.GameSession, userID uuid.UUID) bool {
	return session.Player1ID == userID || session.Player2ID == userID
}

// ExecuteFlip performs the coin flip for a session. Both clients race to call
// this; the conditional update out of 'waiting' is the arbiter, so exactly one
// caller records the result and the loser of the race gets ErrAlreadyFlipped
// and should re-read the session.
func (s *Service) ExecuteFlip(ctx context.Context, sessionID, callerID uuid.UUID) (*models.GameSession, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(session, callerID) {
		return nil, ErrNotParticipant
	}
	if session.Status != models.SessionWaiting {
		return nil, ErrAlreadyFlipped
	}

	flipResult := SecureFlip()
	winnerID := Winner(session, flipResult)

	res, err := s.db.ExecContext(ctx, `
		UPDATE game_sessions
		SET status = 'completed', flip_result = $1, winner_id = $2, flipped_at = NOW(), completed_at = NOW()
		WHERE id = $3 AND status = 'waiting'
	`, flipResult, winnerID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("record flip: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, ErrAlreadyFlipped
	}

	session, err = s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	log.Printf("[FLIP] Session %s: result=%s winner=%s (stake=%.2f)",
		sessionID, flipResult, winnerID, session.Amount)

	s.notifier.PublishSessionEvent(ctx, events.TypeSessionFlipped, session)
	return session, nil
}
