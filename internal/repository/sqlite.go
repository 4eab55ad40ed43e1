package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteStore implements Store on a single SQLite file
type SQLiteStore struct {
	sqlDB *sql.DB
}

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

func nullableTime(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromNanos(value.Int64)
	return &t
}

// OpenSQLite opens the database at path and applies the schema
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps settlement and wager checks serialized.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateRace inserts a pending race with the next sequence number
func (s *SQLiteStore) CreateRace(ctx context.Context, race *models.Race) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM races`).Scan(&next); err != nil {
			return fmt.Errorf("next race sequence: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO races (id, sequence, status, created_at) VALUES (?, ?, ?, ?)`,
			race.ID.String(), next, string(race.Status), toNanos(race.CreatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return models.ErrDuplicateKey
			}
			return fmt.Errorf("insert race: %w", err)
		}
		race.Sequence = next
		return nil
	})
}

const sqliteRaceColumns = `id, sequence, status, winner_id, started_at, completed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRace(row rowScanner) (*models.Race, error) {
	var (
		race      models.Race
		status    string
		winner    uuid.NullUUID
		started   sql.NullInt64
		completed sql.NullInt64
		created   int64
	)
	if err := row.Scan(&race.ID, &race.Sequence, &status, &winner, &started, &completed, &created); err != nil {
		return nil, err
	}
	race.Status = models.RaceStatus(status)
	if winner.Valid {
		id := winner.UUID
		race.WinnerID = &id
	}
	race.StartedAt = nullableTime(started)
	race.CompletedAt = nullableTime(completed)
	race.CreatedAt = fromNanos(created)
	return &race, nil
}

// GetRace retrieves a race by ID
func (s *SQLiteStore) GetRace(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	race, err := scanSQLiteRace(s.sqlDB.QueryRowContext(ctx, `SELECT `+sqliteRaceColumns+` FROM races WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get race: %w", err)
	}
	return race, nil
}

// ListRaces returns the most recent races, newest first
func (s *SQLiteStore) ListRaces(ctx context.Context, limit int) ([]*models.Race, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+sqliteRaceColumns+` FROM races ORDER BY sequence DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	defer rows.Close()

	var races []*models.Race
	for rows.Next() {
		race, err := scanSQLiteRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		races = append(races, race)
	}
	return races, rows.Err()
}

// TransitionRace moves a race between statuses with a guarded update
func (s *SQLiteStore) TransitionRace(ctx context.Context, id uuid.UUID, from, to models.RaceStatus, at time.Time) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE races SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(to), toNanos(at), id.String(), string(from),
	)
	if err != nil {
		return fmt.Errorf("transition race: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetRace(ctx, id); err != nil {
			return err
		}
		return models.ErrStaleTransition
	}
	return nil
}

// CreateCompetitor adds a competitor at the end of the roster
func (s *SQLiteStore) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO competitors (id, entry, name, color, speed_rating, stamina_rating, created_at)
		VALUES (?, (SELECT COALESCE(MAX(entry), 0) + 1 FROM competitors), ?, ?, ?, ?, ?)
	`, c.ID.String(), c.Name, c.Color, c.SpeedRating, c.StaminaRating, toNanos(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateKey
		}
		return fmt.Errorf("insert competitor: %w", err)
	}
	return nil
}

const sqliteCompetitorColumns = `id, name, color, speed_rating, stamina_rating, created_at`

func scanSQLiteCompetitor(row rowScanner) (*models.Competitor, error) {
	var c models.Competitor
	var created int64
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.SpeedRating, &c.StaminaRating, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = fromNanos(created)
	return &c, nil
}

// GetCompetitor retrieves a competitor by ID
func (s *SQLiteStore) GetCompetitor(ctx context.Context, id uuid.UUID) (*models.Competitor, error) {
	c, err := scanSQLiteCompetitor(s.sqlDB.QueryRowContext(ctx, `SELECT `+sqliteCompetitorColumns+` FROM competitors WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get competitor: %w", err)
	}
	return c, nil
}

// ListCompetitors returns the roster in entry order
func (s *SQLiteStore) ListCompetitors(ctx context.Context) ([]*models.Competitor, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+sqliteCompetitorColumns+` FROM competitors ORDER BY entry`)
	if err != nil {
		return nil, fmt.Errorf("list competitors: %w", err)
	}
	defer rows.Close()

	var out []*models.Competitor
	for rows.Next() {
		c, err := scanSQLiteCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competitor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateWager inserts a wager only while its race is pending or running
func (s *SQLiteStore) CreateWager(ctx context.Context, w *models.Wager) error {
	res, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO wagers (id, race_id, competitor_id, bettor, stake, odds, placed_at)
		SELECT ?, id, ?, ?, ?, ?, ?
		FROM races
		WHERE id = ? AND status IN ('pending', 'running')
	`, w.ID.String(), w.CompetitorID.String(), w.Bettor, w.Stake.String(), w.Odds.String(), toNanos(w.PlacedAt), w.RaceID.String())
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return models.ErrDuplicateKey
		case isForeignKeyViolation(err):
			return models.ErrNotFound
		}
		return fmt.Errorf("insert wager: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetRace(ctx, w.RaceID); err != nil {
			return err
		}
		return models.ErrRaceClosed
	}
	return nil
}

// ListWagersByRace returns the wagers of a race in placement order
func (s *SQLiteStore) ListWagersByRace(ctx context.Context, raceID uuid.UUID) ([]*models.Wager, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, race_id, competitor_id, bettor, stake, odds, payout, placed_at, settled_at
		FROM wagers
		WHERE race_id = ?
		ORDER BY placed_at, rowid
	`, raceID.String())
	if err != nil {
		return nil, fmt.Errorf("list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		var (
			w       models.Wager
			payout  decimal.NullDecimal
			placed  int64
			settled sql.NullInt64
		)
		if err := rows.Scan(&w.ID, &w.RaceID, &w.CompetitorID, &w.Bettor, &w.Stake, &w.Odds, &payout, &placed, &settled); err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		if payout.Valid {
			amount := payout.Decimal
			w.Payout = &amount
		}
		w.PlacedAt = fromNanos(placed)
		w.SettledAt = nullableTime(settled)
		wagers = append(wagers, &w)
	}
	return wagers, rows.Err()
}

// ListResultsByRace returns results ordered by rank
func (s *SQLiteStore) ListResultsByRace(ctx context.Context, raceID uuid.UUID) ([]models.RaceResult, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT race_id, competitor_id, rank, finish_time
		FROM race_results
		WHERE race_id = ?
		ORDER BY rank
	`, raceID.String())
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []models.RaceResult
	for rows.Next() {
		var r models.RaceResult
		if err := rows.Scan(&r.RaceID, &r.CompetitorID, &r.Rank, &r.FinishTime); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// CommitSettlement writes results, completion and payouts in one transaction
func (s *SQLiteStore) CommitSettlement(ctx context.Context, st *models.Settlement) error {
	if err := checkSettlement(st); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM races WHERE id = ?`, st.RaceID.String()).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrNotFound
			}
			return fmt.Errorf("read race status: %w", err)
		}
		switch models.RaceStatus(status) {
		case models.RaceStatusCompleted:
			return models.ErrAlreadySettled
		case models.RaceStatusRunning:
		default:
			return models.ErrStaleTransition
		}

		insertResult, err := tx.PrepareContext(ctx, `INSERT INTO race_results (race_id, competitor_id, rank, finish_time) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare result insert: %w", err)
		}
		defer insertResult.Close()
		for _, r := range st.Results {
			if _, err := insertResult.ExecContext(ctx, r.RaceID.String(), r.CompetitorID.String(), r.Rank, r.FinishTime); err != nil {
				if isUniqueViolation(err) {
					return models.ErrDuplicateKey
				}
				return fmt.Errorf("insert result: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE races SET status = 'completed', winner_id = ?, completed_at = ? WHERE id = ? AND status = 'running'`,
			st.WinnerID.String(), toNanos(st.CompletedAt), st.RaceID.String(),
		)
		if err != nil {
			return fmt.Errorf("complete race: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrAlreadySettled
		}

		updatePayout, err := tx.PrepareContext(ctx, `UPDATE wagers SET payout = ?, settled_at = ? WHERE id = ? AND race_id = ? AND payout IS NULL`)
		if err != nil {
			return fmt.Errorf("prepare payout update: %w", err)
		}
		defer updatePayout.Close()
		for _, p := range st.Payouts {
			res, err := updatePayout.ExecContext(ctx, p.Amount.String(), toNanos(st.CompletedAt), p.WagerID.String(), st.RaceID.String())
			if err != nil {
				return fmt.Errorf("write payout: %w", err)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return models.ErrAlreadySettled
			}
		}

		var open int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM wagers WHERE race_id = ? AND payout IS NULL`, st.RaceID.String()).Scan(&open); err != nil {
			return fmt.Errorf("verify payouts: %w", err)
		}
		if open > 0 {
			return ErrUnsettledWagers
		}
		return nil
	})
}

// SaveSpin records a slot spin
func (s *SQLiteStore) SaveSpin(ctx context.Context, spin *models.SpinResult) error {
	symbols, err := json.Marshal(spin.Symbols)
	if err != nil {
		return fmt.Errorf("encode symbols: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
		INSERT INTO spin_results (id, player, symbols, bet_amount, win_amount, is_winner, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, spin.ID.String(), spin.Player, string(symbols), spin.BetAmount.String(), spin.WinAmount.String(), spin.IsWinner, toNanos(spin.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert spin: %w", err)
	}
	return nil
}

// RecentSpins returns the latest spins, newest first
func (s *SQLiteStore) RecentSpins(ctx context.Context, limit int) ([]*models.SpinResult, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, player, symbols, bet_amount, win_amount, is_winner, created_at
		FROM spin_results
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list spins: %w", err)
	}
	defer rows.Close()

	var spins []*models.SpinResult
	for rows.Next() {
		var (
			spin    models.SpinResult
			symbols string
			created int64
		)
		if err := rows.Scan(&spin.ID, &spin.Player, &symbols, &spin.BetAmount, &spin.WinAmount, &spin.IsWinner, &created); err != nil {
			return nil, fmt.Errorf("scan spin: %w", err)
		}
		if err := json.Unmarshal([]byte(symbols), &spin.Symbols); err != nil {
			return nil, fmt.Errorf("decode symbols: %w", err)
		}
		spin.CreatedAt = fromNanos(created)
		spins = append(spins, &spin)
	}
	return spins, rows.Err()
}

// SaveDiceRoll records a dice roll
func (s *SQLiteStore) SaveDiceRoll(ctx context.Context, roll *models.DiceRoll) error {
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO dice_rolls (id, player, prediction, result, bet_amount, payout, won, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, roll.ID.String(), roll.Player, roll.Prediction, roll.Result, roll.BetAmount.String(), roll.Payout.String(), roll.Won, toNanos(roll.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert dice roll: %w", err)
	}
	return nil
}

// RecentDiceRolls returns the latest rolls, newest first
func (s *SQLiteStore) RecentDiceRolls(ctx context.Context, limit int) ([]*models.DiceRoll, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT id, player, prediction, result, bet_amount, payout, won, created_at
		FROM dice_rolls
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list dice rolls: %w", err)
	}
	defer rows.Close()

	var rolls []*models.DiceRoll
	for rows.Next() {
		var (
			roll    models.DiceRoll
			created int64
		)
		if err := rows.Scan(&roll.ID, &roll.Player, &roll.Prediction, &roll.Result, &roll.BetAmount, &roll.Payout, &roll.Won, &created); err != nil {
			return nil, fmt.Errorf("scan dice roll: %w", err)
		}
		roll.CreatedAt = fromNanos(created)
		rolls = append(rolls, &roll)
	}
	return rolls, rows.Err()
}

// Ping verifies the database handle
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the SQLite handle
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
