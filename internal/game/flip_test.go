package game

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/models"
)

func TestSecureFlipReturnsValidSide(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		result := SecureFlip()
		if result != models.ChoiceHeads && result != models.ChoiceTails {
			t.Fatalf("unexpected flip result %q", result)
		}
		seen[result] = true
	}
	// 200 flips with only one outcome means the entropy source is broken
	if len(seen) != 2 {
		t.Errorf("expected both heads and tails over 200 flips, got %v", seen)
	}
}

func TestSecureSideReturnsValidSide(t *testing.T) {
	for i := 0; i < 50; i++ {
		result := SecureSide()
		if result != models.SideKing && result != models.SideTail {
			t.Fatalf("unexpected side %q", result)
		}
	}
}

func TestWinnerMatchesFlipResult(t *testing.T) {
	p1 := uuid.New()
	p2 := uuid.New()
	session := &models.GameSession{
		Player1ID:     p1,
		Player1Choice: models.ChoiceHeads,
		Player2ID:     p2,
		Player2Choice: models.ChoiceTails,
	}

	if got := Winner(session, models.ChoiceHeads); got != p1 {
		t.Errorf("heads should go to player1, got %s", got)
	}
	if got := Winner(session, models.ChoiceTails); got != p2 {
		t.Errorf("tails should go to player2, got %s", got)
	}
}

func TestOppositeChoice(t *testing.T) {
	if models.OppositeChoice(models.ChoiceHeads) != models.ChoiceTails {
		t.Error("opposite of heads should be tails")
	}
	if models.OppositeChoice(models.ChoiceTails) != models.ChoiceHeads {
		t.Error("opposite of tails should be heads")
	}
}
