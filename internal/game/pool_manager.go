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

const roundColumns = `id, round_number, status, king_total, tail_total, winner, started_at, ends_at, completed_at`

const betColumns = `id, round_id, user_id, username, side, amount, payout, created_at`

// CurrentRound returns the round currently accepting bets, or the most recent
// round if none is open (so clients can render the cooldown between rounds)
func (s *Service) CurrentRound(ctx context.Context) (*models.MultiplayerRound, []models.MultiplayerBet, error) {
	var round models.MultiplayerRound
	err := s.db.GetContext(ctx, &round, `
		SELECT `+roundColumns+` FROM multiplayer_rounds
		WHERE status = 'betting'
		ORDER BY round_number DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.GetContext(ctx, &round, `
			SELECT `+roundColumns+` FROM multiplayer_rounds
			ORDER BY round_number DESC LIMIT 1
		`)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	bets, err := s.RoundBets(ctx, round.ID)
	if err != nil {
		return nil, nil, err
	}
	return &round, bets, nil
}

// RoundBets returns all bets placed in a round
func (s *Service) RoundBets(ctx context.Context, roundID uuid.UUID) ([]models.MultiplayerBet, error) {
	bets := []models.MultiplayerBet{}
	if err := s.db.SelectContext(ctx, &bets, `
		SELECT `+betColumns+` FROM multiplayer_bets WHERE round_id=$1 ORDER BY created_at
	`, roundID); err != nil {
		return nil, fmt.Errorf("load round bets: %w", err)
	}
	return bets, nil
}

// PlaceBet stakes amount on a side of an open round. Repeat bets on the same
// side accumulate into one row; switching sides within a round is rejected.
// The stake is debited immediately and recorded as a loss; winners are made
// whole (and then some) at round completion.
func (s *Service) PlaceBet(ctx context.Context, userID uuid.UUID, username string, roundID uuid.UUID, side string, amount float64) (*models.MultiplayerBet, *models.MultiplayerRound, error) {
	if side != models.SideKing && side != models.SideTail {
		return nil, nil, ErrInvalidSide
	}
	if amount < float64(s.cfg.MinBetAmount) || amount > float64(s.cfg.MaxBetAmount) || amount != math.Trunc(amount) {
		return nil, nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the round row so bet placement and round completion serialize.
	// A bet that arrives after ends_at loses to the completion worker.
	var round models.MultiplayerRound
	err = tx.Get(&round, `
		SELECT `+roundColumns+` FROM multiplayer_rounds
		WHERE id = $1 AND status = 'betting' AND ends_at > NOW()
		FOR UPDATE
	`, roundID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrRoundClosed
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock round: %w", err)
	}

	var bet models.MultiplayerBet
	err = tx.Get(&bet, `SELECT `+betColumns+` FROM multiplayer_bets WHERE round_id=$1 AND user_id=$2 FOR UPDATE`, roundID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("load existing bet: %w", err)
	}
	hasBet := err == nil
	if hasBet && bet.Side != side {
		return nil, nil, ErrSideMismatch
	}

	if _, err := wallet.Apply(tx, wallet.Mutation{
		UserID: userID,
		Type:   models.TxnLoss,
		Amount: amount,
		GameDetails: map[string]interface{}{
			"mode":     "pool",
			"round_id": roundID.String(),
			"side":     side,
			"stake":    amount,
		},
	}, -amount); err != nil {
		return nil, nil, err
	}

	if hasBet {
		bet.Amount += amount
		if _, err := tx.Exec(`UPDATE multiplayer_bets SET amount=$1 WHERE id=$2`, bet.Amount, bet.ID); err != nil {
			return nil, nil, fmt.Errorf("increase bet: %w", err)
		}
	} else {
		bet = models.MultiplayerBet{
			ID:        uuid.New(),
			RoundID:   roundID,
			UserID:    userID,
			Username:  username,
			Side:      side,
			Amount:    amount,
			CreatedAt: time.Now(),
		}
		if _, err := tx.Exec(`
			INSERT INTO multiplayer_bets (id, round_id, user_id, username, side, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, bet.ID, roundID, userID, username, side, amount); err != nil {
			return nil, nil, fmt.Errorf("insert bet: %w", err)
		}
	}

	column := "king_total"
	if side == models.SideTail {
		column = "tail_total"
	}
	if err := tx.Get(&round, `
		UPDATE multiplayer_rounds SET `+column+` = `+column+` + $1
		WHERE id = $2
		RETURNING `+roundColumns+`
	`, amount, roundID); err != nil {
		return nil, nil, fmt.Errorf("update round totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[POOL] Bet: round=%d user=%s side=%s amount=%.2f (total=%.2f)",
		round.RoundNumber, username, side, amount, bet.Amount)

	s.notifier.PublishBetEvent(ctx, &round, &bet)
	return &bet, &round, nil
}

// PoolSettlementPlan maps a claimed round onto per-user payouts. A round
// whose claim persisted no winner (one side was empty) cancels with full
// refunds; otherwise winners split the losing pool net of the fee. The plan
// depends only on stored rows, never on a fresh random draw, so replaying it
// after a crash produces the same payouts.
func PoolSettlementPlan(round *models.MultiplayerRound, bets []models.MultiplayerBet, feePercent int) (cancelled bool, payouts map[string]float64) {
	if !round.Winner.Valid {
		payouts = make(map[string]float64, len(bets))
		for _, b := range bets {
			payouts[b.UserID.String()] = b.Amount
		}
		return true, payouts
	}
	return false, ComputePayouts(bets, round.Winner.String, feePercent)
}

// CompleteRound finishes a round whose betting window has elapsed. The side
// is drawn up front and persisted with the betting->flipping claim: if the
// settlement below fails or the process dies, the resume path replays the
// stored outcome instead of re-rolling. Safe to call repeatedly; a round
// found already claimed is settled, and terminal rounds are a no-op.
func (s *Service) CompleteRound(ctx context.Context, roundID uuid.UUID) (*models.MultiplayerRound, error) {
	drawn := SecureSide()
	var round models.MultiplayerRound
	err := s.db.GetContext(ctx, &round, `
		UPDATE multiplayer_rounds
		SET status = 'flipping',
		    winner = CASE WHEN king_total = 0 OR tail_total = 0 THEN NULL ELSE $1 END
		WHERE id = $2 AND status = 'betting' AND ends_at <= NOW()
		RETURNING `+roundColumns+`
	`, drawn, roundID)
	if errors.Is(err, sql.ErrNoRows) {
		var cur models.MultiplayerRound
		err := s.db.GetContext(ctx, &cur, `SELECT `+roundColumns+` FROM multiplayer_rounds WHERE id=$1`, roundID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		if err != nil {
			return nil, err
		}
		if cur.Status == models.RoundBetting {
			return nil, ErrRoundNotEnded
		}
		if cur.Status == models.RoundFlipping {
			// an earlier attempt claimed the round but never finished
			return s.settleClaimedRound(ctx, &cur)
		}
		return &cur, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim round completion: %w", err)
	}

	s.notifier.PublishRoundEvent(ctx, events.TypeRoundFlipping, &round)
	return s.settleClaimedRound(ctx, &round)
}

// settleClaimedRound pays out (or refunds) a round already in 'flipping'.
// All credits, payout records and the terminal transition commit together;
// the transition is conditional on the round still being 'flipping', so when
// several resumers race only one commits and the rest roll back without
// paying. A failed attempt changes nothing and leaves the round claimed for
// the next worker tick.
func (s *Service) settleClaimedRound(ctx context.Context, round *models.MultiplayerRound) (*models.MultiplayerRound, error) {
	bets, err := s.RoundBets(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	cancelled, payouts := PoolSettlementPlan(round, bets, s.cfg.PoolFeePercent)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, bet := range bets {
		payout := payouts[bet.UserID.String()]
		if payout > 0 {
			m := wallet.Mutation{
				UserID: bet.UserID,
				Amount: payout,
				GameDetails: map[string]interface{}{
					"mode":     "pool",
					"round_id": round.ID.String(),
					"side":     bet.Side,
					"stake":    bet.Amount,
				},
			}
			if cancelled {
				m.Type = models.TxnRefund
				m.GameDetails.(map[string]interface{})["reason"] = "round_cancelled"
			} else {
				m.Type = models.TxnWin
				m.GameDetails.(map[string]interface{})["winner"] = round.Winner.String
			}
			if _, err := wallet.Apply(tx, m, payout); err != nil {
				return nil, fmt.Errorf("credit user %s: %w", bet.UserID, err)
			}
		}
		if _, err := tx.Exec(`UPDATE multiplayer_bets SET payout=$1 WHERE id=$2`, payout, bet.ID); err != nil {
			return nil, fmt.Errorf("record payout: %w", err)
		}
	}

	target := models.RoundCompleted
	if cancelled {
		target = models.RoundCancelled
	}
	var settled models.MultiplayerRound
	err = tx.Get(&settled, `
		UPDATE multiplayer_rounds SET status=$1, completed_at=NOW()
		WHERE id=$2 AND status='flipping'
		RETURNING `+roundColumns+`
	`, target, round.ID)
	if errors.Is(err, sql.ErrNoRows) {
		// another resumer finished first; drop our credits and report theirs
		tx.Rollback()
		var cur models.MultiplayerRound
		if gerr := s.db.GetContext(ctx, &cur, `SELECT `+roundColumns+` FROM multiplayer_rounds WHERE id=$1`, round.ID); gerr != nil {
			return nil, gerr
		}
		return &cur, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize round: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if cancelled {
		log.Printf("[POOL] Round %d cancelled (one-sided), refunded %d bets", settled.RoundNumber, len(bets))
		s.notifier.PublishRoundEvent(ctx, events.TypeRoundCancelled, &settled)
	} else {
		log.Printf("[POOL] Round %d completed: winner=%s king=%.2f tail=%.2f bets=%d",
			settled.RoundNumber, settled.Winner.String, settled.KingTotal, settled.TailTotal, len(bets))
		s.notifier.PublishRoundEvent(ctx, events.TypeRoundCompleted, &settled)
	}
	return &settled, nil
}
