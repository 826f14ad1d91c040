package game

import (
	"database/sql"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/models"
)

func makeBet(side string, amount float64) models.MultiplayerBet {
	return models.MultiplayerBet{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Side:   side,
		Amount: amount,
	}
}

func TestSideTotals(t *testing.T) {
	bets := []models.MultiplayerBet{
		makeBet(models.SideKing, 100),
		makeBet(models.SideKing, 50),
		makeBet(models.SideTail, 200),
	}
	king, tail := SideTotals(bets)
	if king != 150 {
		t.Errorf("king total = %.2f, want 150", king)
	}
	if tail != 200 {
		t.Errorf("tail total = %.2f, want 200", tail)
	}
}

func TestComputePayoutsSingleWinnerTakesNetPool(t *testing.T) {
	winner := makeBet(models.SideKing, 100)
	loser := makeBet(models.SideTail, 100)
	bets := []models.MultiplayerBet{winner, loser}

	payouts := ComputePayouts(bets, models.SideKing, 5)

	// Winner gets stake back plus losing pool minus 5% fee: 100 + 95
	if got := payouts[winner.UserID.String()]; got != 195 {
		t.Errorf("winner payout = %.2f, want 195.00", got)
	}
	if got := payouts[loser.UserID.String()]; got != 0 {
		t.Errorf("loser payout = %.2f, want 0", got)
	}
}

func TestComputePayoutsProportionalShares(t *testing.T) {
	big := makeBet(models.SideKing, 300)
	small := makeBet(models.SideKing, 100)
	loser := makeBet(models.SideTail, 400)
	bets := []models.MultiplayerBet{big, small, loser}

	payouts := ComputePayouts(bets, models.SideKing, 5)

	// Net losing pool = 400 * 0.95 = 380, split 3:1
	if got := payouts[big.UserID.String()]; got != 585 {
		t.Errorf("big winner payout = %.2f, want 585.00", got)
	}
	if got := payouts[small.UserID.String()]; got != 195 {
		t.Errorf("small winner payout = %.2f, want 195.00", got)
	}
}

func TestComputePayoutsNeverExceedsPool(t *testing.T) {
	// Awkward proportions that don't divide evenly
	bets := []models.MultiplayerBet{
		makeBet(models.SideKing, 33.33),
		makeBet(models.SideKing, 66.67),
		makeBet(models.SideKing, 10),
		makeBet(models.SideTail, 100.01),
	}

	payouts := ComputePayouts(bets, models.SideKing, 5)

	var totalPaid float64
	for _, p := range payouts {
		totalPaid += p
	}
	winningTotal := 33.33 + 66.67 + 10.0
	pool := winningTotal + 100.01*0.95
	if totalPaid > pool+1e-9 {
		t.Errorf("payouts %.4f exceed available pool %.4f", totalPaid, pool)
	}

	// Each payout is rounded down to the paisa
	for id, p := range payouts {
		if math.Abs(p*100-math.Floor(p*100+1e-9)) > 1e-6 {
			t.Errorf("payout for %s not rounded to 2dp: %.6f", id, p)
		}
	}
}

func TestComputePayoutsZeroFee(t *testing.T) {
	winner := makeBet(models.SideTail, 50)
	loser := makeBet(models.SideKing, 50)
	payouts := ComputePayouts([]models.MultiplayerBet{winner, loser}, models.SideTail, 0)

	if got := payouts[winner.UserID.String()]; got != 100 {
		t.Errorf("zero-fee winner payout = %.2f, want 100.00", got)
	}
}

func TestPoolSettlementPlanPaysWinners(t *testing.T) {
	winner := makeBet(models.SideKing, 100)
	loser := makeBet(models.SideTail, 100)
	round := &models.MultiplayerRound{
		KingTotal: 100,
		TailTotal: 100,
		Winner:    sql.NullString{String: models.SideKing, Valid: true},
	}

	cancelled, payouts := PoolSettlementPlan(round, []models.MultiplayerBet{winner, loser}, 5)

	if cancelled {
		t.Fatal("two-sided round reported as cancelled")
	}
	if got := payouts[winner.UserID.String()]; got != 195 {
		t.Errorf("winner payout = %.2f, want 195.00", got)
	}
	if got := payouts[loser.UserID.String()]; got != 0 {
		t.Errorf("loser payout = %.2f, want 0", got)
	}
}

func TestPoolSettlementPlanRefundsOneSidedRound(t *testing.T) {
	// A claim on a one-sided round persists no winner
	a := makeBet(models.SideKing, 60)
	b := makeBet(models.SideKing, 140)
	round := &models.MultiplayerRound{KingTotal: 200, TailTotal: 0}

	cancelled, payouts := PoolSettlementPlan(round, []models.MultiplayerBet{a, b}, 5)

	if !cancelled {
		t.Fatal("one-sided round not cancelled")
	}
	if got := payouts[a.UserID.String()]; got != 60 {
		t.Errorf("refund = %.2f, want full stake 60", got)
	}
	if got := payouts[b.UserID.String()]; got != 140 {
		t.Errorf("refund = %.2f, want full stake 140", got)
	}
}

// Settlement may be retried after a crash between the round claim and the
// payout commit. The plan is derived only from the stored winner and bets,
// so every retry must produce the identical payouts.
func TestPoolSettlementPlanReplayIsIdentical(t *testing.T) {
	bets := []models.MultiplayerBet{
		makeBet(models.SideKing, 300),
		makeBet(models.SideKing, 100),
		makeBet(models.SideTail, 400),
	}
	round := &models.MultiplayerRound{
		KingTotal: 400,
		TailTotal: 400,
		Winner:    sql.NullString{String: models.SideKing, Valid: true},
	}

	c1, first := PoolSettlementPlan(round, bets, 5)
	c2, second := PoolSettlementPlan(round, bets, 5)

	if c1 != c2 {
		t.Fatalf("cancelled flag differs between replays: %v vs %v", c1, c2)
	}
	if len(first) != len(second) {
		t.Fatalf("payout counts differ: %d vs %d", len(first), len(second))
	}
	for id, p := range first {
		if second[id] != p {
			t.Errorf("payout for %s differs between replays: %.2f vs %.2f", id, p, second[id])
		}
	}
}

func TestApplyStatDelta(t *testing.T) {
	stats := &models.UserStats{}

	ApplyStatDelta(stats, StatDelta{Won: true, Wagered: 100, Winnings: 200})
	ApplyStatDelta(stats, StatDelta{Won: false, Wagered: 100, Winnings: 0})

	if stats.TotalGames != 2 || stats.GamesWon != 1 || stats.GamesLost != 1 {
		t.Errorf("counters wrong: %+v", stats)
	}
	if stats.TotalWagered != 200 {
		t.Errorf("total wagered = %.2f, want 200", stats.TotalWagered)
	}
	if stats.NetProfit != 0 {
		t.Errorf("net profit = %.2f, want 0", stats.NetProfit)
	}
	if stats.WinRate != 50 {
		t.Errorf("win rate = %.2f, want 50", stats.WinRate)
	}
}
