package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/models"
	"github.com/yourusername/paddock/internal/race"
	"github.com/yourusername/paddock/internal/rng"
)

const maxSimulatedTicks = 1_000_000

var (
	simRaces int
	simSeed  int64
	simTick  float64
	simJSON  bool
)

func init() {
	simulateCmd.Flags().IntVarP(&simRaces, "races", "n", 1, "Number of races to run")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "Seed for race n is seed+n (default race.seed, or the clock when that is zero)")
	simulateCmd.Flags().Float64Var(&simTick, "tick", 0.016, "Simulated seconds per tick")
	simulateCmd.Flags().BoolVar(&simJSON, "json", false, "Print results as JSON")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run races offline with the configured roster",
	Long: `Runs races on a fixed tick without storage or wagering and prints the
finishing order of each, followed by the win count of every competitor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := buildRoster(rosterConfig(cfg))
		if err != nil {
			return err
		}

		seed := simSeed
		if seed == 0 {
			seed = cfg.Race.Seed
		}
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		report, err := simulate(lifecycle.FromAppConfig(cfg).Race, roster, seed, simRaces, simTick)
		if err != nil {
			return err
		}
		if simJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

// SimulatedRace is one offline race
type SimulatedRace struct {
	Seed     int64          `json:"seed"`
	Ticks    int            `json:"ticks"`
	Finishes []SimulatedRun `json:"finishes"`
}

// SimulatedRun is one competitor's finish
type SimulatedRun struct {
	Rank      int     `json:"rank"`
	Name      string  `json:"name"`
	Time      float64 `json:"time"`
	BaseSpeed float64 `json:"base_speed"`
}

// SimulationReport collects a batch of offline races
type SimulationReport struct {
	Races []SimulatedRace `json:"races"`
	Wins  map[string]int  `json:"wins"`
}

func simulate(rc race.Config, roster []*models.Competitor, seed int64, n int, tick float64) (*SimulationReport, error) {
	if n <= 0 {
		return nil, fmt.Errorf("number of races must be positive")
	}
	if tick <= 0 {
		return nil, fmt.Errorf("tick must be positive")
	}

	names := make(map[uuid.UUID]string, len(roster))
	report := &SimulationReport{Wins: make(map[string]int, len(roster))}
	for _, c := range roster {
		names[c.ID] = c.Name
		report.Wins[c.Name] = 0
	}

	for i := 0; i < n; i++ {
		raceSeed := seed + int64(i)
		sim, err := race.NewSimulator(rc, roster, rng.NewSeeded(raceSeed))
		if err != nil {
			return nil, err
		}
		snap, ok := race.RunFixedStep(sim, tick, maxSimulatedTicks)
		if !ok {
			return nil, fmt.Errorf("race with seed %d did not finish within %d ticks", raceSeed, maxSimulatedTicks)
		}
		order, _ := sim.FinishOrder()

		speeds := make(map[uuid.UUID]float64, len(roster))
		for _, e := range sim.Entrants() {
			speeds[e.CompetitorID] = e.BaseSpeed
		}

		out := SimulatedRace{Seed: raceSeed, Ticks: snap.Tick, Finishes: make([]SimulatedRun, len(order))}
		for rank, f := range order {
			out.Finishes[rank] = SimulatedRun{
				Rank:      rank + 1,
				Name:      names[f.CompetitorID],
				Time:      f.Time,
				BaseSpeed: speeds[f.CompetitorID],
			}
		}
		report.Wins[out.Finishes[0].Name]++
		report.Races = append(report.Races, out)
	}
	return report, nil
}

func printReport(w io.Writer, report *SimulationReport) {
	for i, r := range report.Races {
		fmt.Fprintf(w, "Race %d (seed %d, %d ticks)\n", i+1, r.Seed, r.Ticks)
		for _, f := range r.Finishes {
			fmt.Fprintf(w, "  %d. %-16s %7.2fs  base speed %.2f\n", f.Rank, f.Name, f.Time, f.BaseSpeed)
		}
	}
	if len(report.Races) > 1 {
		fmt.Fprintln(w, "Wins:")
		for _, f := range report.Races[0].Finishes {
			fmt.Fprintf(w, "  %-16s %d\n", f.Name, report.Wins[f.Name])
		}
	}
}
