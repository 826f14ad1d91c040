package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/models"
)

// ErrInsufficientFunds is returned when a debit would take the balance below zero
var ErrInsufficientFunds = errors.New("insufficient funds")

const walletColumns = `id, user_id, balance, locked_balance, bonus_balance, total_deposits, total_withdrawals, currency, last_updated`

// Get returns the wallet for a user
func Get(db sqlx.Queryer, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	if err := sqlx.Get(db, &w, `SELECT `+walletColumns+` FROM wallets WHERE user_id=$1`, userID); err != nil {
		return nil, err
	}
	return &w, nil
}

// GetForUpdate locks and returns the wallet row inside tx. All wallet
// mutations go through this lock so concurrent writers to the same wallet
// (a settlement racing a bonus claim, say) serialize instead of losing updates.
func GetForUpdate(tx *sqlx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	if err := tx.Get(&w, `SELECT `+walletColumns+` FROM wallets WHERE user_id=$1 FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("lock wallet for user %s: %w", userID, err)
	}
	return &w, nil
}

// Create inserts a zero-balance wallet for a new user
func Create(tx *sqlx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(`INSERT INTO wallets (user_id) VALUES ($1)`, userID)
	return err
}

// Mutation describes one balance change and the ledger row that records it
type Mutation struct {
	UserID         uuid.UUID
	Type           string // deposit|withdrawal|win|loss|bonus|refund
	Amount         float64
	Status         string
	PaymentMethod  string
	PaymentDetails interface{}
	GameDetails    interface{}
}

// Apply performs a single balance mutation within an existing tx: it locks the
// wallet row, applies the delta (positive credits, negative debits), refuses to
// go negative, and inserts the paired transactions row recording balance_after.
// Returns the new balance.
func Apply(tx *sqlx.Tx, m Mutation, delta float64) (float64, error) {
	if tx == nil {
		return 0, fmt.Errorf("tx is nil")
	}

	w, err := GetForUpdate(tx, m.UserID)
	if err != nil {
		return 0, err
	}

	newBalance := w.Balance + delta
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	if _, err := tx.Exec(`UPDATE wallets SET balance=$1, last_updated=NOW() WHERE id=$2`, newBalance, w.ID); err != nil {
		return 0, fmt.Errorf("update wallet balance: %w", err)
	}

	if err := InsertTransaction(tx, m, newBalance); err != nil {
		return 0, err
	}

	log.Printf("[WALLET] %s applied: user=%s amount=%.2f delta=%.2f balance_after=%.2f",
		m.Type, m.UserID, m.Amount, delta, newBalance)

	return newBalance, nil
}

// InsertTransaction writes the ledger row for an already-applied mutation
func InsertTransaction(tx *sqlx.Tx, m Mutation, balanceAfter float64) error {
	status := m.Status
	if status == "" {
		status = models.TxnCompleted
	}

	var paymentDetails, gameDetails interface{}
	if m.PaymentDetails != nil {
		b, err := json.Marshal(m.PaymentDetails)
		if err != nil {
			return fmt.Errorf("marshal payment_details: %w", err)
		}
		paymentDetails = b
	}
	if m.GameDetails != nil {
		b, err := json.Marshal(m.GameDetails)
		if err != nil {
			return fmt.Errorf("marshal game_details: %w", err)
		}
		gameDetails = b
	}

	var method interface{}
	if m.PaymentMethod != "" {
		method = m.PaymentMethod
	}

	_, err := tx.Exec(`
		INSERT INTO transactions (user_id, type, amount, status, balance_after, payment_method, payment_details, game_details, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`, m.UserID, m.Type, m.Amount, status, balanceAfter, method, paymentDetails, gameDetails)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// LockForWithdrawal moves amount from balance to locked_balance and records a
// pending withdrawal transaction. The funds stay locked until an operator
// pays out or rejects the request.
func LockForWithdrawal(tx *sqlx.Tx, userID uuid.UUID, amount float64) (float64, error) {
	w, err := GetForUpdate(tx, userID)
	if err != nil {
		return 0, err
	}

	newBalance := w.Balance - amount
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	if _, err := tx.Exec(`UPDATE wallets SET balance=$1, locked_balance=locked_balance+$2, last_updated=NOW() WHERE id=$3`,
		newBalance, amount, w.ID); err != nil {
		return 0, fmt.Errorf("lock withdrawal funds: %w", err)
	}

	if err := InsertTransaction(tx, Mutation{
		UserID: userID,
		Type:   models.TxnWithdrawal,
		Amount: amount,
		Status: models.TxnPending,
	}, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// CreditBonus adds to bonus_balance (non-withdrawable) and records a bonus
// transaction. Bonus funds never touch the withdrawable balance, so
// balance_after records the unchanged main balance.
func CreditBonus(tx *sqlx.Tx, userID uuid.UUID, amount float64, details interface{}) error {
	w, err := GetForUpdate(tx, userID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(`UPDATE wallets SET bonus_balance=bonus_balance+$1, last_updated=NOW() WHERE id=$2`, amount, w.ID); err != nil {
		return fmt.Errorf("credit bonus balance: %w", err)
	}

	return InsertTransaction(tx, Mutation{
		UserID:      userID,
		Type:        models.TxnBonus,
		Amount:      amount,
		GameDetails: details,
	}, w.Balance)
}
