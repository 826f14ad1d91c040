package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/auth"
	"github.com/coinduel/backend/internal/config"
	"github.com/coinduel/backend/internal/models"
	"github.com/coinduel/backend/internal/wallet"
)

const userColumns = `id, email, username, password_hash, referral_code, referred_by, created_at, last_login, account_status`

// Register creates a user, their wallet, and optionally a referral link, then
// issues a session token
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email        string `json:"email"`
			Username     string `json:"username"`
			Password     string `json:"password"`
			ReferralCode string `json:"referral_code"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, username and password required"})
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		username := strings.TrimSpace(req.Username)
		if email == "" || username == "" || len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, username and a password of at least 8 characters required"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Printf("Failed to hash password: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		// Resolve referrer before opening the tx; a bad code is not fatal
		var referrer *models.User
		if code := strings.TrimSpace(req.ReferralCode); code != "" {
			var ref models.User
			err := db.Get(&ref, `SELECT `+userColumns+` FROM users WHERE referral_code=$1`, code)
			if err == nil {
				referrer = &ref
			} else if !errors.Is(err, sql.ErrNoRows) {
				log.Printf("Referral code lookup failed: %v", err)
			}
		}

		tx, err := db.Beginx()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer tx.Rollback()

		userID := uuid.New()
		var referredBy interface{}
		if referrer != nil {
			referredBy = referrer.ID
		}
		_, err = tx.Exec(`
			INSERT INTO users (id, email, username, password_hash, referral_code, referred_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, userID, email, username, hash, auth.GenerateReferralCode(), referredBy)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				c.JSON(http.StatusConflict, gin.H{"error": "email or username already taken"})
				return
			}
			log.Printf("Failed to create user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if err := wallet.Create(tx, userID); err != nil {
			log.Printf("Failed to create wallet for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		if referrer != nil {
			if _, err := tx.Exec(`
				INSERT INTO referrals (referrer_id, referred_id, referral_code, reward_amount)
				VALUES ($1, $2, $3, $4)
			`, referrer.ID, userID, req.ReferralCode, cfg.ReferralBonusAmount); err != nil {
				log.Printf("Failed to record referral: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		token, exp, err := auth.IssueToken(cfg, userID, username)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[AUTH] Registered user %s (%s)", username, userID)
		c.JSON(http.StatusCreated, gin.H{
			"token":      token,
			"expires_at": exp,
			"user":       gin.H{"id": userID, "email": email, "username": username},
		})
	}
}

// Login verifies credentials and issues a session token
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
			return
		}

		var user models.User
		err := db.Get(&user, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		if user.AccountState.Valid && user.AccountState.String == "suspended" {
			c.JSON(http.StatusForbidden, gin.H{"error": "account suspended"})
			return
		}

		if _, err := db.Exec(`UPDATE users SET last_login=NOW() WHERE id=$1`, user.ID); err != nil {
			log.Printf("Failed to update last_login for %s: %v", user.ID, err)
		}

		token, exp, err := auth.IssueToken(cfg, user.ID, user.Username)
		if err != nil {
			log.Printf("Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": exp,
			"user":       gin.H{"id": user.ID, "email": user.Email, "username": user.Username, "referral_code": user.ReferralCode},
		})
	}
}

// Me returns the authenticated user's profile
func Me(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		var user models.User
		if err := db.Get(&user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
