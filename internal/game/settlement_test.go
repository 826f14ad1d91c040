package game

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/models"
)

func makeCompletedSession(stake float64) *models.GameSession {
	s := &models.GameSession{
		ID:              uuid.New(),
		Player1ID:       uuid.New(),
		Player1Username: "alice",
		Player1Choice:   models.ChoiceHeads,
		Player2ID:       uuid.New(),
		Player2Username: "bob",
		Player2Choice:   models.ChoiceTails,
		Amount:          stake,
		Status:          models.SessionCompleted,
		FlipResult:      sql.NullString{String: models.ChoiceHeads, Valid: true},
	}
	s.WinnerID = uuid.NullUUID{UUID: s.Player1ID, Valid: true}
	return s
}

func TestSettlementOutcomeWinner(t *testing.T) {
	session := makeCompletedSession(100)

	delta, amount, txnType, details := settlementOutcome(session, session.Player1ID)

	if delta != 100 {
		t.Errorf("winner delta = %.2f, want +100", delta)
	}
	if amount != 200 {
		t.Errorf("winner amount = %.2f, want 200", amount)
	}
	if txnType != models.TxnWin {
		t.Errorf("winner txn type = %q, want %q", txnType, models.TxnWin)
	}
	if details["result"] != "won" || details["opponent"] != "bob" {
		t.Errorf("winner details wrong: %v", details)
	}
}

func TestSettlementOutcomeLoser(t *testing.T) {
	session := makeCompletedSession(100)

	delta, amount, txnType, details := settlementOutcome(session, session.Player2ID)

	if delta != -100 {
		t.Errorf("loser delta = %.2f, want -100", delta)
	}
	if amount != 100 {
		t.Errorf("loser amount = %.2f, want 100", amount)
	}
	if txnType != models.TxnLoss {
		t.Errorf("loser txn type = %q, want %q", txnType, models.TxnLoss)
	}
	if details["result"] != "lost" || details["opponent"] != "alice" {
		t.Errorf("loser details wrong: %v", details)
	}
}

func TestSettlementOutcomeZeroSum(t *testing.T) {
	session := makeCompletedSession(250)

	d1, _, _, _ := settlementOutcome(session, session.Player1ID)
	d2, _, _, _ := settlementOutcome(session, session.Player2ID)

	if d1+d2 != 0 {
		t.Errorf("settlement not zero-sum: %.2f + %.2f", d1, d2)
	}
}

// Both sides must record the session id in the ledger details: the
// per-session idempotency check and the unique settlement index both key on
// game_details->>'session_id', so an outcome without it would be applied
// again on every retry.
func TestSettlementOutcomeCarriesSessionID(t *testing.T) {
	session := makeCompletedSession(50)

	for _, userID := range []uuid.UUID{session.Player1ID, session.Player2ID} {
		_, _, _, details := settlementOutcome(session, userID)
		if details["session_id"] != session.ID.String() {
			t.Errorf("details session_id = %v, want %s", details["session_id"], session.ID)
		}
	}
}

func TestSettlementOutcomeDeterministic(t *testing.T) {
	session := makeCompletedSession(75)

	d1, a1, t1, _ := settlementOutcome(session, session.Player1ID)
	d2, a2, t2, _ := settlementOutcome(session, session.Player1ID)

	if d1 != d2 || a1 != a2 || t1 != t2 {
		t.Errorf("repeated outcome differs: (%.2f %.2f %s) vs (%.2f %.2f %s)", d1, a1, t1, d2, a2, t2)
	}
}
