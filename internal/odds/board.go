package odds

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
)

// Line is one competitor's row on the board
type Line struct {
	CompetitorID uuid.UUID       `json:"competitor_id"`
	Stake        decimal.Decimal `json:"stake"`
	WagerCount   int             `json:"wager_count"`
	Odds         decimal.Decimal `json:"odds"`
}

// Board is the betting display for one race
type Board struct {
	RaceID     uuid.UUID         `json:"race_id"`
	Status     models.RaceStatus `json:"status"`
	Pool       decimal.Decimal   `json:"pool"`
	WagerCount int               `json:"wager_count"`
	Lines      []Line            `json:"lines"`
}

// BuildBoard prices the field in entry order
func (r Rules) BuildBoard(race *models.Race, wagers []*models.Wager, field []uuid.UUID) Board {
	prices := r.Calculate(wagers, field)
	counts := make(map[uuid.UUID]int, len(field))
	for _, w := range wagers {
		counts[w.CompetitorID]++
	}

	board := Board{
		RaceID:     race.ID,
		Status:     race.Status,
		Pool:       Pool(wagers),
		WagerCount: len(wagers),
		Lines:      make([]Line, 0, len(field)),
	}
	for _, id := range field {
		board.Lines = append(board.Lines, Line{
			CompetitorID: id,
			Stake:        StakeOn(wagers, id),
			WagerCount:   counts[id],
			Odds:         prices[id],
		})
	}
	return board
}

// Line returns the row for a competitor
func (b Board) Line(competitorID uuid.UUID) (Line, bool) {
	for _, l := range b.Lines {
		if l.CompetitorID == competitorID {
			return l, true
		}
	}
	return Line{}, false
}
