package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/events"
	"github.com/coinduel/backend/internal/models"
)

// StartRoundWorker drives the pool round lifecycle: it completes rounds whose
// betting window has elapsed and opens the next round once the cooldown after
// the previous one has passed. Multiple instances may run this worker; the
// conditional completion update and the unique round_number index make the
// extra attempts harmless.
func (s *Service) StartRoundWorker(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	go func() {
		defer ticker.Stop()
		log.Printf("[POOL] Round worker started (duration=%ds cooldown=%ds/%ds)",
			s.cfg.RoundDurationSeconds, s.cfg.RoundCooldownCompleted, s.cfg.RoundCooldownCancelled)
		for {
			select {
			case <-ctx.Done():
				log.Printf("[POOL] Round worker stopped")
				return
			case <-ticker.C:
				s.tickRounds(ctx)
			}
		}
	}()
}

func (s *Service) tickRounds(ctx context.Context) {
	// Finish any rounds past their window
	var due []uuid.UUID
	if err := s.db.SelectContext(ctx, &due, `
		SELECT id FROM multiplayer_rounds WHERE status = 'betting' AND ends_at <= NOW()
	`); err != nil {
		log.Printf("[POOL] Round scan failed: %v", err)
		return
	}
	for _, id := range due {
		if _, err := s.CompleteRound(ctx, id); err != nil && !errors.Is(err, ErrRoundNotEnded) {
			log.Printf("[POOL] Round completion failed for %s: %v", id, err)
		}
	}

	// Resume rounds claimed for completion whose settlement never finished
	// (crash or error between the claim and the payout commit). The stored
	// winner makes the replay deterministic.
	stalled := []models.MultiplayerRound{}
	if err := s.db.SelectContext(ctx, &stalled, `
		SELECT `+roundColumns+` FROM multiplayer_rounds WHERE status = 'flipping'
	`); err != nil {
		log.Printf("[POOL] Stalled round scan failed: %v", err)
		return
	}
	for i := range stalled {
		if _, err := s.settleClaimedRound(ctx, &stalled[i]); err != nil {
			log.Printf("[POOL] Round settlement retry failed for %s: %v", stalled[i].ID, err)
		}
	}

	// Open a new round when none is live and the cooldown has passed
	var last models.MultiplayerRound
	err := s.db.GetContext(ctx, &last, `
		SELECT `+roundColumns+` FROM multiplayer_rounds ORDER BY round_number DESC LIMIT 1
	`)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := s.openRound(ctx, 1); err != nil {
			log.Printf("[POOL] Failed to open first round: %v", err)
		}
	case err != nil:
		log.Printf("[POOL] Round lookup failed: %v", err)
	case last.Status == models.RoundBetting || last.Status == models.RoundFlipping:
		// still live
	default:
		cooldown := time.Duration(s.cfg.RoundCooldownCompleted) * time.Second
		if last.Status == models.RoundCancelled {
			cooldown = time.Duration(s.cfg.RoundCooldownCancelled) * time.Second
		}
		if last.CompletedAt.Valid && time.Since(last.CompletedAt.Time) >= cooldown {
			if err := s.openRound(ctx, last.RoundNumber+1); err != nil {
				log.Printf("[POOL] Failed to open round %d: %v", last.RoundNumber+1, err)
			}
		}
	}
}

// openRound creates the next betting round. A duplicate round_number means a
// sibling worker won the race, which is fine.
func (s *Service) openRound(ctx context.Context, roundNumber int64) error {
	round := models.MultiplayerRound{
		ID:          uuid.New(),
		RoundNumber: roundNumber,
		Status:      models.RoundBetting,
	}
	err := s.db.GetContext(ctx, &round, `
		INSERT INTO multiplayer_rounds (id, round_number, status, started_at, ends_at)
		VALUES ($1, $2, 'betting', NOW(), NOW() + make_interval(secs => $3))
		RETURNING `+roundColumns+`
	`, round.ID, roundNumber, s.cfg.RoundDurationSeconds)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil
		}
		return fmt.Errorf("open round: %w", err)
	}

	log.Printf("[POOL] Round %d open for betting until %s", round.RoundNumber, round.EndsAt.Format(time.RFC3339))
	s.notifier.PublishRoundEvent(ctx, events.TypeRoundStarted, &round)
	return nil
}
