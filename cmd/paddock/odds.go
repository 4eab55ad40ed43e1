package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/odds"
)

var oddsCmd = &cobra.Command{
	Use:   "odds STAKE...",
	Short: "Price the roster for a hypothetical pool",
	Long: `Takes one stake per competitor, in roster order, and prints the odds
the board would quote. Competitors without a stake are priced at zero.`,
	Example: "  paddock odds 100 50 0",
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := buildRoster(rosterConfig(cfg))
		if err != nil {
			return err
		}
		if len(args) > len(roster) {
			return fmt.Errorf("%d stakes given for %d competitors", len(args), len(roster))
		}

		stakes := make([]decimal.Decimal, len(args))
		for i, a := range args {
			s, err := decimal.NewFromString(a)
			if err != nil {
				return fmt.Errorf("stake %q: %w", a, err)
			}
			if s.IsNegative() {
				return fmt.Errorf("stake %q is negative", a)
			}
			stakes[i] = s
		}

		board := priceRoster(lifecycle.FromAppConfig(cfg).Odds, roster, stakes)
		printBoard(cmd.OutOrStdout(), roster, board)
		return nil
	},
}

// priceRoster builds the board for one wager per staked competitor
func priceRoster(rules odds.Rules, roster []*models.Competitor, stakes []decimal.Decimal) odds.Board {
	r := models.NewRace()
	wagers := make([]*models.Wager, 0, len(stakes))
	for i, s := range stakes {
		if !s.IsPositive() {
			continue
		}
		wagers = append(wagers, &models.Wager{
			ID:           uuid.New(),
			RaceID:       r.ID,
			CompetitorID: roster[i].ID,
			Stake:        s,
		})
	}
	field := make([]uuid.UUID, len(roster))
	for i, c := range roster {
		field[i] = c.ID
	}
	return rules.BuildBoard(r, wagers, field)
}

func printBoard(w io.Writer, roster []*models.Competitor, board odds.Board) {
	fmt.Fprintf(w, "Pool %s\n", board.Pool.StringFixed(2))
	for i, l := range board.Lines {
		fmt.Fprintf(w, "  %-16s stake %10s  odds %s\n", roster[i].Name, l.Stake.StringFixed(2), l.Odds.String())
	}
}
