package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/paddock/internal/database"
	"github.com/yourusername/paddock/internal/models"
)

// PostgresStore implements Store on PostgreSQL through pgx
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store on an open pool. The schema must already be applied.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const raceColumns = `id, sequence, status, winner_id, started_at, completed_at, created_at`

func scanRace(row pgx.Row) (*models.Race, error) {
	var race models.Race
	var status string
	err := row.Scan(&race.ID, &race.Sequence, &status, &race.WinnerID, &race.StartedAt, &race.CompletedAt, &race.CreatedAt)
	if err != nil {
		return nil, err
	}
	race.Status = models.RaceStatus(status)
	return &race, nil
}

// CreateRace inserts a pending race; the sequence comes from the table's serial column
func (s *PostgresStore) CreateRace(ctx context.Context, race *models.Race) error {
	query := `
		INSERT INTO races (id, status, created_at)
		VALUES ($1, $2, $3)
		RETURNING sequence
	`
	err := s.db.GetPool().QueryRow(ctx, query, race.ID, string(race.Status), race.CreatedAt).Scan(&race.Sequence)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create race: %w", err)
	}
	return nil
}

// GetRace retrieves a race by ID
func (s *PostgresStore) GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	race, err := scanRace(s.db.GetPool().QueryRow(ctx, `SELECT `+raceColumns+` FROM races WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get race: %w", err)
	}
	return race, nil
}

// ListRaces returns the most recent races, newest first
func (s *PostgresStore) ListRaces(ctx context.Context, limit int) ([]*models.Race, error) {
	rows, err := s.db.GetPool().Query(ctx, `SELECT `+raceColumns+` FROM races ORDER BY sequence DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan race: %w", err)
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

// TransitionRace moves a race between statuses with a guarded update
func (s *PostgresStore) TransitionRace(ctx context.Context, id uuid.UUID, from, to models.RaceStatus, at time.Time) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	query := `
		UPDATE races
		SET status = $3, started_at = CASE WHEN $3 = 'running' THEN $4 ELSE started_at END
		WHERE id = $1 AND status = $2
	`
	tag, err := s.db.GetPool().Exec(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return fmt.Errorf("failed to transition race: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRace(ctx, id); err != nil {
			return err
		}
		return models.ErrStaleTransition
	}
	return nil
}

// CreateCompetitor adds a competitor to the roster
func (s *PostgresStore) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	query := `
		INSERT INTO competitors (id, name, color, speed_rating, stamina_rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.GetPool().Exec(ctx, query, c.ID, c.Name, c.Color, c.SpeedRating, c.StaminaRating, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create competitor: %w", err)
	}
	return nil
}

const competitorColumns = `id, name, color, speed_rating, stamina_rating, created_at`

func scanCompetitor(row pgx.Row) (*models.Competitor, error) {
	var c models.Competitor
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.SpeedRating, &c.StaminaRating, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCompetitor retrieves a competitor by ID
func (s *PostgresStore) GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error) {
	c, err := scanCompetitor(s.db.GetPool().QueryRow(ctx, `SELECT `+competitorColumns+` FROM competitors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get competitor: %w", err)
	}
	return c, nil
}

// ListCompetitors returns the roster in entry order
func (s *PostgresStore) ListCompetitors(ctx context.Context) ([]*models.Competitor, error) {
	rows, err := s.db.GetPool().Query(ctx, `SELECT `+competitorColumns+` FROM competitors ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	var out []*models.Competitor
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateWager inserts a wager only while its race is pending or running
func (s *PostgresStore) CreateWager(ctx context.Context, w *models.Wager) error {
	query := `
		INSERT INTO wagers (id, race_id, competitor_id, bettor, stake, odds, placed_at)
		SELECT $1, r.id, $3, $4, $5, $6, $7
		FROM races r
		WHERE r.id = $2 AND r.status IN ('pending', 'running')
	`
	tag, err := s.db.GetPool().Exec(ctx, query, w.ID, w.RaceID, w.CompetitorID, w.Bettor, w.Stake, w.Odds, w.PlacedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create wager: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRace(ctx, w.RaceID); err != nil {
			return err
		}
		return models.ErrRaceClosed
	}
	return nil
}

// ListWagersByRace returns the wagers of a race in placement order
func (s *PostgresStore) ListWagersByRace(ctx context.Context, raceID uuid.UUID) ([]*models.Wager, error) {
	query := `
		SELECT id, race_id, competitor_id, bettor, stake, odds, payout, placed_at, settled_at
		FROM wagers
		WHERE race_id = $1
		ORDER BY placed_at, id
	`
	rows, err := s.db.GetPool().Query(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		var w models.Wager
		if err := rows.Scan(&w.ID, &w.RaceID, &w.CompetitorID, &w.Bettor, &w.Stake, &w.Odds, &w.Payout, &w.PlacedAt, &w.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan wager: %w", err)
		}
		wagers = append(wagers, &w)
	}
	return wagers, rows.Err()
}

// ListResultsByRace returns results ordered by rank
func (s *PostgresStore) ListResultsByRace(ctx context.Context, raceID uuid.UUID) ([]models.RaceResult, error) {
	rows, err := s.db.GetPool().Query(ctx, `
		SELECT race_id, competitor_id, rank, finish_time
		FROM race_results
		WHERE race_id = $1
		ORDER BY rank
	`, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []models.RaceResult
	for rows.Next() {
		var r models.RaceResult
		if err := rows.Scan(&r.RaceID, &r.CompetitorID, &r.Rank, &r.FinishTime); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CommitSettlement writes results, completion and payouts in one transaction.
// The race row is locked first so concurrent settlements serialize on it.
func (s *PostgresStore) CommitSettlement(ctx context.Context, st *models.Settlement) error {
	if err := checkSettlement(st); err != nil {
		return err
	}

	return s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM races WHERE id = $1 FOR UPDATE`, st.RaceID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to lock race: %w", err)
		}
		switch models.RaceStatus(status) {
		case models.RaceStatusCompleted:
			return models.ErrAlreadySettled
		case models.RaceStatusRunning:
		default:
			return models.ErrStaleTransition
		}

		rows := make([][]interface{}, 0, len(st.Results))
		for _, r := range st.Results {
			rows = append(rows, []interface{}{r.RaceID, r.CompetitorID, r.Rank, r.FinishTime})
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"race_results"},
			[]string{"race_id", "competitor_id", "rank", "finish_time"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return models.ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert results: %w", err)
		}
		if copied != int64(len(rows)) {
			return fmt.Errorf("inserted %d of %d results", copied, len(rows))
		}

		tag, err := tx.Exec(ctx, `
			UPDATE races
			SET status = 'completed', winner_id = $2, completed_at = $3
			WHERE id = $1 AND status = 'running'
		`, st.RaceID, st.WinnerID, st.CompletedAt)
		if err != nil {
			return fmt.Errorf("failed to complete race: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrAlreadySettled
		}

		batch := &pgx.Batch{}
		for _, p := range st.Payouts {
			batch.Queue(`
				UPDATE wagers
				SET payout = $2, settled_at = $3
				WHERE id = $1 AND race_id = $4 AND payout IS NULL
			`, p.WagerID, p.Amount, st.CompletedAt, st.RaceID)
		}
		results := tx.SendBatch(ctx, batch)
		for range st.Payouts {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return fmt.Errorf("failed to write payout: %w", err)
			}
			if tag.RowsAffected() != 1 {
				results.Close()
				return models.ErrAlreadySettled
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to write payouts: %w", err)
		}

		var open int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM wagers WHERE race_id = $1 AND payout IS NULL`, st.RaceID).Scan(&open); err != nil {
			return fmt.Errorf("failed to verify payouts: %w", err)
		}
		if open > 0 {
			return ErrUnsettledWagers
		}
		return nil
	})
}

// SaveSpin records a slot spin
func (s *PostgresStore) SaveSpin(ctx context.Context, spin *models.SpinResult) error {
	_, err := s.db.GetPool().Exec(ctx, `
		INSERT INTO spin_results (id, player, symbols, bet_amount, win_amount, is_winner, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, spin.ID, spin.Player, spin.Symbols, spin.BetAmount, spin.WinAmount, spin.IsWinner, spin.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save spin: %w", err)
	}
	return nil
}

// RecentSpins returns the latest spins, newest first
func (s *PostgresStore) RecentSpins(ctx context.Context, limit int) ([]*models.SpinResult, error) {
	rows, err := s.db.GetPool().Query(ctx, `
		SELECT id, player, symbols, bet_amount, win_amount, is_winner, created_at
		FROM spin_results
		ORDER BY created_at DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list spins: %w", err)
	}
	defer rows.Close()

	var spins []*models.SpinResult
	for rows.Next() {
		var spin models.SpinResult
		if err := rows.Scan(&spin.ID, &spin.Player, &spin.Symbols, &spin.BetAmount, &spin.WinAmount, &spin.IsWinner, &spin.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan spin: %w", err)
		}
		spins = append(spins, &spin)
	}
	return spins, rows.Err()
}

// SaveDiceRoll records a dice roll
func (s *PostgresStore) SaveDiceRoll(ctx context.Context, roll *models.DiceRoll) error {
	_, err := s.db.GetPool().Exec(ctx, `
		INSERT INTO dice_rolls (id, player, prediction, result, bet_amount, payout, won, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, roll.ID, roll.Player, roll.Prediction, roll.Result, roll.BetAmount, roll.Payout, roll.Won, roll.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save dice roll: %w", err)
	}
	return nil
}

// RecentDiceRolls returns the latest rolls, newest first
func (s *PostgresStore) RecentDiceRolls(ctx context.Context, limit int) ([]*models.DiceRoll, error) {
	rows, err := s.db.GetPool().Query(ctx, `
		SELECT id, player, prediction, result, bet_amount, payout, won, created_at
		FROM dice_rolls
		ORDER BY created_at DESC
		LIMIT $1
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list dice rolls: %w", err)
	}
	defer rows.Close()

	var rolls []*models.DiceRoll
	for rows.Next() {
		var roll models.DiceRoll
		if err := rows.Scan(&roll.ID, &roll.Player, &roll.Prediction, &roll.Result, &roll.BetAmount, &roll.Payout, &roll.Won, &roll.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dice roll: %w", err)
		}
		rolls = append(rolls, &roll)
	}
	return rolls, rows.Err()
}

// Ping verifies database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
