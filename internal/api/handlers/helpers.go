package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/auth"
	"github.com/coinduel/backend/internal/game"
	"github.com/coinduel/backend/internal/payment"
	"github.com/coinduel/backend/internal/wallet"
)

// currentUser pulls the authenticated identity set by the auth middleware.
// Returns false (and writes the response) if the middleware did not run.
func currentUser(c *gin.Context) (uuid.UUID, string, bool) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, "", false
	}
	return userID, auth.Username(c), true
}

// parseUUIDParam parses a path parameter as a UUID
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses. Race-lost conflicts
// (already flipped, already settled, round closed) map to 409 so clients know
// to re-read state rather than retry.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidChoice),
		errors.Is(err, game.ErrInvalidSide),
		errors.Is(err, game.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, game.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, game.ErrEntryNotFound),
		errors.Is(err, game.ErrSessionNotFound),
		errors.Is(err, game.ErrRoundNotFound),
		errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})

	case errors.Is(err, game.ErrAlreadyQueued),
		errors.Is(err, game.ErrAlreadyMatched),
		errors.Is(err, game.ErrAlreadyFlipped),
		errors.Is(err, game.ErrAlreadySettled),
		errors.Is(err, game.ErrNotCompleted),
		errors.Is(err, game.ErrRoundClosed),
		errors.Is(err, game.ErrRoundNotEnded),
		errors.Is(err, game.ErrSideMismatch),
		errors.Is(err, payment.ErrDuplicatePayment):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, wallet.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
