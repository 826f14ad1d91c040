package game

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/models"
	"github.com/coinduel/backend/internal/wallet"
)

// StatDelta is the per-game contribution to a user's aggregate stats
type StatDelta struct {
	Won      bool
	Wagered  float64
	Winnings float64
}

// ApplyStatDelta folds one finished game into the running counters and
// recomputes the derived fields
func ApplyStatDelta(stats *models.UserStats, d StatDelta) {
	stats.TotalGames++
	if d.Won {
		stats.GamesWon++
	} else {
		stats.GamesLost++
	}
	stats.TotalWagered += d.Wagered
	stats.TotalWinnings += d.Winnings
	stats.NetProfit = stats.TotalWinnings - stats.TotalWagered
	if stats.TotalGames > 0 {
		stats.WinRate = float64(stats.GamesWon) / float64(stats.TotalGames) * 100
	}
}

// settlementOutcome derives the caller's side of a completed session: the
// wallet delta, the recorded transaction amount and type, and the audit
// details. details carries the session id the ledger idempotency guard keys
// on.
func settlementOutcome(session *models.GameSession, userID uuid.UUID) (delta, amount float64, txnType string, details map[string]interface{}) {
	won := session.WinnerID.Valid && session.WinnerID.UUID == userID
	stake := session.Amount

	var opponent, choice string
	if session.Player1ID == userID {
		opponent = session.Player2Username
		choice = session.Player1Choice
	} else {
		opponent = session.Player1Username
		choice = session.Player2Choice
	}

	details = map[string]interface{}{
		"mode":        "1v1",
		"session_id":  session.ID.String(),
		"stake":       stake,
		"choice":      choice,
		"opponent":    opponent,
		"flip_result": session.FlipResult.String,
	}

	// Stake is debited here rather than at queue time, so win nets +stake
	// and loss nets -stake against the pre-game balance
	if won {
		delta, amount, txnType = stake, 2*stake, models.TxnWin
		details["result"] = "won"
	} else {
		delta, amount, txnType = -stake, stake, models.TxnLoss
		details["result"] = "lost"
	}
	return delta, amount, txnType, details
}

// SettleGame applies a completed session's outcome to the caller's wallet and
// stats. Each player settles their own side. The whole settlement is one
// transaction. The wallet row lock is taken BEFORE the ledger idempotency
// check: concurrent settle calls for the same (user, session) serialize on
// that lock, so the loser of the race re-runs the check after the winner
// committed and sees the existing win/loss row instead of double-applying.
// The unique settlement index on transactions backstops the same invariant
// at the store level.
func (s *Service) SettleGame(ctx context.Context, userID, sessionID uuid.UUID) (float64, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !isParticipant(session, userID) {
		return 0, ErrNotParticipant
	}
	if session.Status != models.SessionCompleted || !session.WinnerID.Valid {
		return 0, ErrNotCompleted
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := wallet.GetForUpdate(tx, userID); err != nil {
		return 0, err
	}

	var settled int
	if err := tx.Get(&settled, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND type IN ('win','loss') AND game_details->>'session_id' = $2
	`, userID, sessionID.String()); err != nil {
		return 0, fmt.Errorf("check prior settlement: %w", err)
	}
	if settled > 0 {
		return 0, ErrAlreadySettled
	}

	delta, amount, txnType, details := settlementOutcome(session, userID)

	newBalance, err := wallet.Apply(tx, wallet.Mutation{
		UserID:      userID,
		Type:        txnType,
		Amount:      amount,
		GameDetails: details,
	}, delta)
	if err != nil {
		if strings.Contains(err.Error(), "idx_transactions_game_settlement") {
			return 0, ErrAlreadySettled
		}
		return 0, err
	}

	won := txnType == models.TxnWin
	winnings := 0.0
	if won {
		winnings = amount
	}
	if err := updateStats(tx, userID, StatDelta{Won: won, Wagered: session.Amount, Winnings: winnings}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[SETTLE] Session %s user=%s result=%s balance=%.2f", sessionID, userID, details["result"], newBalance)
	return newBalance, nil
}

// updateStats locks (or creates) the stats row and folds in one game
func updateStats(tx *sqlx.Tx, userID uuid.UUID, d StatDelta) error {
	var stats models.UserStats
	err := tx.Get(&stats, `
		SELECT id, user_id, total_games, games_won, games_lost, total_wagered, total_winnings, net_profit, win_rate, updated_at
		FROM user_stats WHERE user_id=$1 FOR UPDATE
	`, userID)
	if err != nil {
		// First game for this user: seed the row
		if _, ierr := tx.Exec(`INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); ierr != nil {
			return fmt.Errorf("seed user_stats: %w", ierr)
		}
		if err := tx.Get(&stats, `
			SELECT id, user_id, total_games, games_won, games_lost, total_wagered, total_winnings, net_profit, win_rate, updated_at
			FROM user_stats WHERE user_id=$1 FOR UPDATE
		`, userID); err != nil {
			return fmt.Errorf("reload user_stats: %w", err)
		}
	}

	ApplyStatDelta(&stats, d)

	if _, err := tx.Exec(`
		UPDATE user_stats
		SET total_games=$1, games_won=$2, games_lost=$3, total_wagered=$4, total_winnings=$5, net_profit=$6, win_rate=$7, updated_at=NOW()
		WHERE user_id=$8
	`, stats.TotalGames, stats.GamesWon, stats.GamesLost, stats.TotalWagered, stats.TotalWinnings, stats.NetProfit, stats.WinRate, userID); err != nil {
		return fmt.Errorf("update user_stats: %w", err)
	}
	return nil
}
