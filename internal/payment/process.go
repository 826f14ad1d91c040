package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/models"
	"github.com/coinduel/backend/internal/wallet"
)

// ErrDuplicatePayment is returned when a payment id was already credited
var ErrDuplicatePayment = errors.New("payment already processed")

// ProcessVerifiedPayment credits a signature-verified deposit. The unique
// index on payment_details->>'payment_id' is the hard guard against double
// crediting; the existence check here turns the violation into a clean error
// for replayed callbacks. The user's first completed deposit also releases
// the pending referral reward to both sides.
func ProcessVerifiedPayment(ctx context.Context, db *sqlx.DB, cfg *config.Config, userID uuid.UUID, orderID, paymentID string, amount float64) (float64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var dup int
	if err := tx.Get(&dup, `
		SELECT COUNT(*) FROM transactions
		WHERE type = 'deposit' AND status = 'completed' AND payment_details->>'payment_id' = $1
	`, paymentID); err != nil {
		return 0, fmt.Errorf("check duplicate payment: %w", err)
	}
	if dup > 0 {
		return 0, ErrDuplicatePayment
	}

	// First deposit check happens before the credit so the referral reward
	// fires exactly once
	var priorDeposits int
	if err := tx.Get(&priorDeposits, `
		SELECT COUNT(*) FROM transactions
		WHERE user_id = $1 AND type = 'deposit' AND status = 'completed'
	`, userID); err != nil {
		return 0, fmt.Errorf("check prior deposits: %w", err)
	}

	newBalance, err := wallet.Apply(tx, wallet.Mutation{
		UserID:        userID,
		Type:          models.TxnDeposit,
		Amount:        amount,
		PaymentMethod: "razorpay",
		PaymentDetails: map[string]interface{}{
			"order_id":   orderID,
			"payment_id": paymentID,
			"gateway":    "razorpay",
		},
	}, amount)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
		UPDATE wallets SET total_deposits = total_deposits + $1 WHERE user_id = $2
	`, amount, userID); err != nil {
		return 0, fmt.Errorf("update total_deposits: %w", err)
	}

	if priorDeposits == 0 {
		if err := releaseReferralReward(tx, cfg, userID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	log.Printf("[PAYMENT] Deposit credited: user=%s amount=%.2f payment=%s balance=%.2f",
		userID, amount, paymentID, newBalance)
	return newBalance, nil
}

// releaseReferralReward pays the signup referral bonus to both referrer and
// referred user once the referred user makes their first real deposit
func releaseReferralReward(tx *sqlx.Tx, cfg *config.Config, referredID uuid.UUID) error {
	var ref models.Referral
	err := tx.Get(&ref, `
		SELECT id, referrer_id, referred_id, referral_code, reward_amount, reward_claimed, created_at
		FROM referrals
		WHERE referred_id = $1 AND reward_claimed = FALSE
		FOR UPDATE
	`, referredID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load referral: %w", err)
	}

	amount := ref.RewardAmount
	if amount <= 0 {
		amount = cfg.ReferralBonusAmount
	}

	details := map[string]interface{}{
		"source":      "referral",
		"referral_id": ref.ID.String(),
	}
	if err := wallet.CreditBonus(tx, ref.ReferrerID, amount, details); err != nil {
		return fmt.Errorf("credit referrer bonus: %w", err)
	}
	if err := wallet.CreditBonus(tx, ref.ReferredID, amount, details); err != nil {
		return fmt.Errorf("credit referred bonus: %w", err)
	}

	if _, err := tx.Exec(`UPDATE referrals SET reward_claimed = TRUE WHERE id = $1`, ref.ID); err != nil {
		return fmt.Errorf("mark referral claimed: %w", err)
	}

	log.Printf("[PAYMENT] Referral reward released: referral=%s amount=%.2f", ref.ID, amount)
	return nil
}
