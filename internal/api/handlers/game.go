package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coinduel/backend/internal/game"
)

// SubmitChoice enters the matchmaking queue. Responds with either an
// immediate match (session included) or the waiting entry.
func SubmitChoice(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := currentUser(c)
		if !ok {
			return
		}

		var req struct {
			Choice string  `json:"choice"`
			Amount float64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "choice and amount required"})
			return
		}

		result, err := svc.SubmitChoice(c.Request.Context(), userID, username, req.Choice, req.Amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// QueueStatus returns the caller's queue entry so clients can poll while the
// WebSocket is down
func QueueStatus(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		entryID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		entry, err := svc.GetQueueEntry(c.Request.Context(), entryID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entry": entry})
	}
}

// CancelQueue withdraws a waiting queue entry
func CancelQueue(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		entryID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		if err := svc.CancelQueueEntry(c.Request.Context(), entryID, userID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"cancelled": true})
	}
}

// GetSession returns a game session to its participants
func GetSession(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		sessionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		session, err := svc.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			respondError(c, err)
			return
		}
		if session.Player1ID != userID && session.Player2ID != userID {
			respondError(c, game.ErrNotParticipant)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": session})
	}
}

// Flip executes the coin flip for a session. Either participant may trigger
// it; a 409 means the other player's flip already landed and the session
// should be re-fetched.
func Flip(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		sessionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		session, err := svc.ExecuteFlip(c.Request.Context(), sessionID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": session})
	}
}

// Settle applies a completed session's outcome to the caller's wallet
func Settle(svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c)
		if !ok {
			return
		}
		sessionID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}

		balance, err := svc.SettleGame(c.Request.Context(), userID, sessionID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"settled": true, "balance": balance})
	}
}
