package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Coin sides for 1:1 games
const (
	ChoiceHeads = "heads"
	ChoiceTails = "tails"
)

// Pool sides for multiplayer rounds
const (
	SideKing = "king"
	SideTail = "tail"
)

// Queue entry statuses
const (
	QueueWaiting   = "waiting"
	QueueMatched   = "matched"
	QueueCancelled = "cancelled"
	QueueExpired   = "expired"
)

// Game session statuses
const (
	SessionWaiting   = "waiting"
	SessionCompleted = "completed"
)

// Multiplayer round statuses
const (
	RoundBetting   = "betting"
	RoundFlipping  = "flipping"
	RoundCompleted = "completed"
	RoundCancelled = "cancelled"
)

// Transaction types
const (
	TxnDeposit    = "deposit"
	TxnWithdrawal = "withdrawal"
	TxnWin        = "win"
	TxnLoss       = "loss"
	TxnBonus      = "bonus"
	TxnRefund     = "refund"
)

// Transaction statuses
const (
	TxnPending   = "pending"
	TxnCompleted = "completed"
	TxnFailed    = "failed"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	Username     string         `db:"username" json:"username"`
	PasswordHash string         `db:"password_hash" json:"-"`
	ReferralCode string         `db:"referral_code" json:"referral_code"`
	ReferredBy   uuid.NullUUID  `db:"referred_by" json:"referred_by,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	LastLogin    sql.NullTime   `db:"last_login" json:"last_login,omitempty"`
	AccountState sql.NullString `db:"account_status" json:"account_status,omitempty"`
}

// Wallet holds a user's funds. balance is withdrawable, locked_balance is
// reserved against pending withdrawal requests, bonus_balance is promotional
// and non-withdrawable.
type Wallet struct {
	ID               uuid.UUID `db:"id" json:"id"`
	UserID           uuid.UUID `db:"user_id" json:"user_id"`
	Balance          float64   `db:"balance" json:"balance"`
	LockedBalance    float64   `db:"locked_balance" json:"locked_balance"`
	BonusBalance     float64   `db:"bonus_balance" json:"bonus_balance"`
	TotalDeposits    float64   `db:"total_deposits" json:"total_deposits"`
	TotalWithdrawals float64   `db:"total_withdrawals" json:"total_withdrawals"`
	Currency         string    `db:"currency" json:"currency"`
	LastUpdated      time.Time `db:"last_updated" json:"last_updated"`
}

// Transaction is a ledger entry. Every wallet balance mutation is paired with
// exactly one row recording the resulting balance.
type Transaction struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Type           string          `db:"type" json:"type"`
	Amount         float64         `db:"amount" json:"amount"`
	Status         string          `db:"status" json:"status"`
	BalanceAfter   float64         `db:"balance_after" json:"balance_after"`
	Currency       string          `db:"currency" json:"currency"`
	PaymentMethod  sql.NullString  `db:"payment_method" json:"payment_method,omitempty"`
	PaymentDetails json.RawMessage `db:"payment_details" json:"payment_details,omitempty"`
	GameDetails    json.RawMessage `db:"game_details" json:"game_details,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt    sql.NullTime    `db:"processed_at" json:"processed_at,omitempty"`
}

// QueueEntry represents a player waiting for (or matched into) a 1:1 game
type QueueEntry struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	UserID        uuid.UUID     `db:"user_id" json:"user_id"`
	Username      string        `db:"username" json:"username"`
	Choice        string        `db:"choice" json:"choice"`
	Amount        float64       `db:"amount" json:"amount"`
	Status        string        `db:"status" json:"status"`
	MatchedWith   uuid.NullUUID `db:"matched_with" json:"matched_with,omitempty"`
	GameSessionID uuid.NullUUID `db:"game_session_id" json:"game_session_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	MatchedAt     sql.NullTime  `db:"matched_at" json:"matched_at,omitempty"`
}

// GameSession is the shared state for one matched pair. flip_result and
// winner_id are write-once: the first transition out of 'waiting' wins.
type GameSession struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Player1ID       uuid.UUID      `db:"player1_id" json:"player1_id"`
	Player1Username string         `db:"player1_username" json:"player1_username"`
	Player1Choice   string         `db:"player1_choice" json:"player1_choice"`
	Player2ID       uuid.UUID      `db:"player2_id" json:"player2_id"`
	Player2Username string         `db:"player2_username" json:"player2_username"`
	Player2Choice   string         `db:"player2_choice" json:"player2_choice"`
	Amount          float64        `db:"amount" json:"amount"`
	Status          string         `db:"status" json:"status"`
	FlipResult      sql.NullString `db:"flip_result" json:"flip_result,omitempty"`
	WinnerID        uuid.NullUUID  `db:"winner_id" json:"winner_id,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	FlippedAt       sql.NullTime   `db:"flipped_at" json:"flipped_at,omitempty"`
	CompletedAt     sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// UserStats holds aggregated per-user game counters
type UserStats struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	TotalGames    int       `db:"total_games" json:"total_games"`
	GamesWon      int       `db:"games_won" json:"games_won"`
	GamesLost     int       `db:"games_lost" json:"games_lost"`
	TotalWagered  float64   `db:"total_wagered" json:"total_wagered"`
	TotalWinnings float64   `db:"total_winnings" json:"total_winnings"`
	NetProfit     float64   `db:"net_profit" json:"net_profit"`
	WinRate       float64   `db:"win_rate" json:"win_rate"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// MultiplayerRound is one timed pool-betting round
type MultiplayerRound struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	RoundNumber int64          `db:"round_number" json:"round_number"`
	Status      string         `db:"status" json:"status"`
	KingTotal   float64        `db:"king_total" json:"king_total"`
	TailTotal   float64        `db:"tail_total" json:"tail_total"`
	Winner      sql.NullString `db:"winner" json:"winner,omitempty"`
	StartedAt   time.Time      `db:"started_at" json:"started_at"`
	EndsAt      time.Time      `db:"ends_at" json:"ends_at"`
	CompletedAt sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
}

// MultiplayerBet is one user's cumulative stake on a side of a round
type MultiplayerBet struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	RoundID   uuid.UUID       `db:"round_id" json:"round_id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Username  string          `db:"username" json:"username"`
	Side      string          `db:"side" json:"side"`
	Amount    float64         `db:"amount" json:"amount"`
	Payout    sql.NullFloat64 `db:"payout" json:"payout,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// DailyBonus records one claimed daily bonus
type DailyBonus struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	BonusAmount float64   `db:"bonus_amount" json:"bonus_amount"`
	StreakDays  int       `db:"streak_days" json:"streak_days"`
	ClaimedAt   time.Time `db:"claimed_at" json:"claimed_at"`
}

// WithdrawalRequest reserves funds until an operator pays out or rejects
type WithdrawalRequest struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	UserID           uuid.UUID    `db:"user_id" json:"user_id"`
	Amount           float64      `db:"amount" json:"amount"`
	Method           string       `db:"method" json:"method"`
	PayoutIdentifier string       `db:"payout_identifier" json:"payout_identifier"`
	Status           string       `db:"status" json:"status"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt      sql.NullTime `db:"processed_at" json:"processed_at,omitempty"`
}

// Referral links a referred signup to its referrer
type Referral struct {
	ID            uuid.UUID `db:"id" json:"id"`
	ReferrerID    uuid.UUID `db:"referrer_id" json:"referrer_id"`
	ReferredID    uuid.UUID `db:"referred_id" json:"referred_id"`
	ReferralCode  string    `db:"referral_code" json:"referral_code"`
	RewardAmount  float64   `db:"reward_amount" json:"reward_amount"`
	RewardClaimed bool      `db:"reward_claimed" json:"reward_claimed"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// OppositeChoice returns the other coin side ("heads" <-> "tails")
func OppositeChoice(choice string) string {
	if choice == ChoiceHeads {
		return ChoiceTails
	}
	return ChoiceHeads
}

// OppositeSide returns the other pool side ("king" <-> "tail")
func OppositeSide(side string) string {
	if side == SideKing {
		return SideTail
	}
	return SideKing
}
