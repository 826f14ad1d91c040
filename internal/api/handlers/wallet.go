package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/models"
	"github.com/coinduel/backend/internal/payment"
	"github.com/coinduel/backend/internal/wallet"
)

// GetWallet returns the caller's wallet
func GetWallet(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		w, err := wallet.Get(db, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"wallet": w})
	}
}

// Transactions returns the caller's ledger history, newest first
func Transactions(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if limit < 1 || limit > 200 {
			limit = 50
		}
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if offset < 0 {
			offset = 0
		}

		txns := []models.Transaction{}
		err := db.Select(&txns, `
			SELECT id, user_id, type, amount, status, balance_after, currency, payment_method, payment_details, game_details, created_at, processed_at
			FROM transactions
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, userID, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txns})
	}
}

// CreateDepositOrder creates a Razorpay order for a deposit
func CreateDepositOrder(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			Amount float64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil || req.Amount < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a positive amount is required"})
			return
		}
		if req.Amount > float64(cfg.MaxBetAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount exceeds deposit limit"})
			return
		}

		if payment.Default == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "payments not configured"})
			return
		}

		order, err := payment.Default.CreateOrder(c.Request.Context(), payment.OrderRequest{
			Amount:  req.Amount,
			Receipt: "dep_" + userID.String()[:8] + "_" + strconv.FormatInt(time.Now().Unix(), 10),
			Notes:   map[string]string{"user_id": userID.String()},
		})
		if err != nil {
			log.Printf("Failed to create deposit order for %s: %v", userID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"order_id": order.ID,
			"amount":   order.Amount,
			"currency": order.Currency,
			"key_id":   payment.Default.KeyID(),
		})
	}
}

// VerifyDeposit validates the checkout callback signature and credits the
// wallet. Replayed callbacks get a 409.
func VerifyDeposit(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			OrderID   string  `json:"razorpay_order_id"`
			PaymentID string  `json:"razorpay_payment_id"`
			Signature string  `json:"razorpay_signature"`
			Amount    float64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" || req.Amount < 1 || req.Amount > float64(cfg.MaxBetAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order id, payment id, signature and amount required"})
			return
		}

		if payment.Default == nil || !payment.Default.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
			log.Printf("[PAYMENT] Signature verification failed: user=%s order=%s", userID, req.OrderID)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}

		balance, err := payment.ProcessVerifiedPayment(c.Request.Context(), db, cfg, userID, req.OrderID, req.PaymentID, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"credited": true, "balance": balance})
	}
}

// RequestWithdrawal locks funds and files a withdrawal request for manual
// payout
func RequestWithdrawal(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			Amount           float64 `json:"amount"`
			Method           string  `json:"method"`
			PayoutIdentifier string  `json:"payout_identifier"`
		}
		if err := c.BindJSON(&req); err != nil || req.Amount <= 0 || req.Method == "" || req.PayoutIdentifier == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount, method and payout_identifier required"})
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer tx.Rollback()

		balance, err := wallet.LockForWithdrawal(tx, userID, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}

		requestID := uuid.New()
		if _, err := tx.Exec(`
			INSERT INTO withdrawal_requests (id, user_id, amount, method, payout_identifier, status, created_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', NOW())
		`, requestID, userID, req.Amount, req.Method, req.PayoutIdentifier); err != nil {
			log.Printf("Failed to file withdrawal request for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[WALLET] Withdrawal requested: user=%s amount=%.2f request=%s", userID, req.Amount, requestID)
		c.JSON(http.StatusOK, gin.H{"request_id": requestID, "status": "pending", "balance": balance})
	}
}

// ClaimDailyBonus credits the daily login bonus. One claim per 24 hours; the
// streak counter survives as long as claims stay within 36 hours of each
// other, so a late claim the next day keeps the streak alive.
func ClaimDailyBonus(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		tx, err := db.Beginx()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer tx.Rollback()

		// Wallet lock first: serializes concurrent claims from the same user
		// so the last-claim check below can't race itself
		if _, err := wallet.GetForUpdate(tx, userID); err != nil {
			respondError(c, err)
			return
		}

		var last models.DailyBonus
		err = tx.Get(&last, `
			SELECT id, user_id, bonus_amount, streak_days, claimed_at
			FROM daily_bonuses
			WHERE user_id = $1
			ORDER BY claimed_at DESC
			LIMIT 1
			FOR UPDATE
		`, userID)

		streak := 1
		if err == nil {
			since := time.Since(last.ClaimedAt)
			if since < 24*time.Hour {
				c.JSON(http.StatusConflict, gin.H{
					"error":          "bonus already claimed",
					"next_claim_at":  last.ClaimedAt.Add(24 * time.Hour),
					"current_streak": last.StreakDays,
				})
				return
			}
			if since < 36*time.Hour {
				streak = last.StreakDays + 1
			}
		} else if !errors.Is(err, sql.ErrNoRows) {
			respondError(c, err)
			return
		}

		amount := cfg.DailyBonusAmount
		if err := wallet.CreditBonus(tx, userID, amount, map[string]interface{}{
			"source": "daily_bonus",
			"streak": streak,
		}); err != nil {
			respondError(c, err)
			return
		}

		if _, err := tx.Exec(`
			INSERT INTO daily_bonuses (user_id, bonus_amount, streak_days, claimed_at)
			VALUES ($1, $2, $3, NOW())
		`, userID, amount, streak); err != nil {
			log.Printf("Failed to record daily bonus for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[WALLET] Daily bonus claimed: user=%s amount=%.2f streak=%d", userID, amount, streak)
		c.JSON(http.StatusOK, gin.H{"bonus": amount, "streak": streak})
	}
}
