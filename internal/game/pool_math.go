package game

import (
	"github.com/shopspring/decimal"

	"github.com/coinduel/backend/internal/models"
)

// SideTotals sums the cumulative stake on each side of a round
func SideTotals(bets []models.MultiplayerBet) (king, tail float64) {
	for _, b := range bets {
		if b.Side == models.SideKing {
			king += b.Amount
		} else {
			tail += b.Amount
		}
	}
	return king, tail
}

// ComputePayouts distributes the losing pool among winners, proportional to
// stake, after the house fee. Winners get stake back plus their share; losers
// get a zero payout. All division happens in decimal so per-winner shares
// never drift from float error, and each payout is rounded DOWN to the paisa
// so the sum of payouts can never exceed the pool.
func ComputePayouts(bets []models.MultiplayerBet, winner string, feePercent int) map[string]float64 {
	payouts := make(map[string]float64, len(bets))

	var winningTotal, losingTotal decimal.Decimal
	for _, b := range bets {
		amt := decimal.NewFromFloat(b.Amount)
		if b.Side == winner {
			winningTotal = winningTotal.Add(amt)
		} else {
			losingTotal = losingTotal.Add(amt)
		}
	}

	if winningTotal.IsZero() {
		for _, b := range bets {
			payouts[b.UserID.String()] = 0
		}
		return payouts
	}

	feeMultiplier := decimal.NewFromInt(int64(100 - feePercent)).Div(decimal.NewFromInt(100))
	netLosingPool := losingTotal.Mul(feeMultiplier)

	for _, b := range bets {
		if b.Side != winner {
			payouts[b.UserID.String()] = 0
			continue
		}
		stake := decimal.NewFromFloat(b.Amount)
		share := netLosingPool.Mul(stake).Div(winningTotal)
		payout := stake.Add(share).RoundDown(2)
		f, _ := payout.Float64()
		payouts[b.UserID.String()] = f
	}

	return payouts
}
