package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/game"
	"github.com/coinduel/backend/internal/models"
)

// CurrentRound returns the live (or most recent) pool round with its bets
func CurrentRound(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		round, bets, err := svc.CurrentRound(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": round, "bets": bets})
	}
}

// PlacePoolBet stakes on a side of the current round
func PlacePoolBet(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := currentUser(c)
		if !ok {
			return
		}
		roundID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		var req struct {
			Side   string  `json:"side"`
			Amount float64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side and amount required"})
			return
		}

		bet, round, err := svc.PlaceBet(c.Request.Context(), userID, username, roundID, req.Side, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bet": bet, "round": round})
	}
}

// CompleteRound finishes a round whose window has elapsed. The background
// worker normally gets there first; this endpoint lets clients force the
// transition instead of waiting for the next tick, and is a no-op on rounds
// that are already done.
func CompleteRound(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, _, ok := currentUser(c); !ok {
			return
		}
		roundID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		round, err := svc.CompleteRound(c.Request.Context(), roundID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"round": round})
	}
}

// RoundHistory returns recent finished rounds
func RoundHistory(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		rounds := []models.MultiplayerRound{}
		err := db.Select(&rounds, `
			SELECT id, round_number, status, king_total, tail_total, winner, started_at, ends_at, completed_at
			FROM multiplayer_rounds
			WHERE status IN ('completed','cancelled')
			ORDER BY round_number DESC
			LIMIT $1
		`, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rounds": rounds})
	}
}

// MyPoolBets returns the caller's bets in recent rounds
func MyPoolBets(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		bets := []models.MultiplayerBet{}
		err := db.Select(&bets, `
			SELECT id, round_id, user_id, username, side, amount, payout, created_at
			FROM multiplayer_bets
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, userID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"bets": bets})
	}
}
