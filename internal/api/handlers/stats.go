package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/coinduel/backend/internal/models"
)

// MyStats returns the caller's aggregated game stats. Users who have never
// settled a game get a zeroed row rather than a 404.
func MyStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}

		var stats models.UserStats
		err := db.Get(&stats, `
			SELECT id, user_id, total_games, games_won, games_lost, total_wagered, total_winnings, net_profit, win_rate, updated_at
			FROM user_stats WHERE user_id=$1
		`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			stats = models.UserStats{UserID: userID}
			err = nil
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

// Leaderboard returns the top players by net profit
func Leaderboard(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		if limit < 1 || limit > 100 {
			limit = 10
		}

		type row struct {
			Username      string  `db:"username" json:"username"`
			TotalGames    int     `db:"total_games" json:"total_games"`
			GamesWon      int     `db:"games_won" json:"games_won"`
			NetProfit     float64 `db:"net_profit" json:"net_profit"`
			WinRate       float64 `db:"win_rate" json:"win_rate"`
			TotalWinnings float64 `db:"total_winnings" json:"total_winnings"`
		}
		rows := []row{}
		err := db.Select(&rows, `
			SELECT u.username, s.total_games, s.games_won, s.net_profit, s.win_rate, s.total_winnings
			FROM user_stats s
			JOIN users u ON u.id = s.user_id
			WHERE s.total_games > 0
			ORDER BY s.net_profit DESC
			LIMIT $1
		`, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"leaderboard": rows})
	}
}

// GameHistory returns the caller's recent 1:1 sessions
func GameHistory(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit < 1 || limit > 100 {
			limit = 20
		}

		sessions := []models.GameSession{}
		err := db.Select(&sessions, `
			SELECT id, player1_id, player1_username, player1_choice, player2_id, player2_username, player2_choice,
				amount, status, flip_result, winner_id, created_at, flipped_at, completed_at
			FROM game_sessions
			WHERE (player1_id = $1 OR player2_id = $1) AND status = 'completed'
			ORDER BY completed_at DESC
			LIMIT $2
		`, userID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}
