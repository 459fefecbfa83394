package bootstrap

import (
	"time"

	"github.com/shopspring/decimal"

	"reaper/internal/adapters/config"
	"reaper/internal/domain/level"
)

// LevelStates builds the initial rows for the whole configured level table
func LevelStates(game config.GameConfig, now time.Time) []*level.State {
	out := make([]*level.State, 0, game.LevelCount())
	for i := 0; i < game.LevelCount(); i++ {
		out = append(out, newLevelState(game, i, now))
	}
	return out
}

// newLevelState builds the initial row for level index i (level numbers are
// 1-based)
func newLevelState(game config.GameConfig, i int, now time.Time) *level.State {
	return &level.State{
		Level:              i + 1,
		MinStake:           game.LevelMinStakes[i],
		MaxPositions:       game.LevelMaxPositions[i],
		DeathRateBps:       game.LevelDeathRateBps[i],
		AliveCount:         0,
		TotalStaked:        decimal.Zero,
		AccRewardsPerShare: decimal.Zero,
		ScanEvery:          game.LevelScanEvery[i],
		NextScanAt:         now.Add(game.LevelScanEvery[i]),
		CompletedScans:     0,
		UpdatedAt:          now,
	}
}
