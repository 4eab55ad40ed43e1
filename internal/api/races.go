package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourusername/paddock/internal/models"
)

// RaceView is a race with its results once settled
type RaceView struct {
	*models.Race
	Results []models.RaceResult `json:"results,omitempty"`
}

// WagerBody is the request to place a wager
type WagerBody struct {
	CompetitorID uuid.UUID       `json:"competitor_id"`
	Bettor       string          `json:"bettor"`
	Stake        decimal.Decimal `json:"stake"`
}

// CancelBody is the request to stop the running race
type CancelBody struct {
	Reason string `json:"reason"`
}

func raceID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, models.NewValidationError("invalid_id", fmt.Sprintf("race id %q is not a UUID", c.Params("id")))
	}
	return id, nil
}

func listLimit(c *fiber.Ctx) (int, error) {
	limit := c.QueryInt("limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		return 0, models.NewValidationError("invalid_limit", fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
	}
	return limit, nil
}

func (s *Server) listCompetitors(c *fiber.Ctx) error {
	roster, err := s.store.ListCompetitors(c.UserContext())
	if err != nil {
		return models.NewPersistenceError("list competitors", err)
	}
	return c.JSON(roster)
}

func (s *Server) listRaces(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}
	races, err := s.store.ListRaces(c.UserContext(), limit)
	if err != nil {
		return models.NewPersistenceError("list races", err)
	}
	return c.JSON(races)
}

func (s *Server) createRace(c *fiber.Ctx) error {
	r, err := s.ctrl.CreateRace(c.UserContext())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (s *Server) getRace(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	r, err := s.store.GetRace(c.UserContext(), id)
	if err != nil {
		return wrapLookup("get race", err)
	}

	view := RaceView{Race: r}
	if r.Status == models.RaceStatusCompleted {
		if view.Results, err = s.store.ListResultsByRace(c.UserContext(), id); err != nil {
			return models.NewPersistenceError("list results", err)
		}
	}
	return c.JSON(view)
}

func (s *Server) raceField(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	field, err := s.ctrl.Field(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(field)
}

func (s *Server) raceBoard(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	board, err := s.ctrl.Board(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(board)
}

func (s *Server) listWagers(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	if _, err := s.store.GetRace(c.UserContext(), id); err != nil {
		return wrapLookup("get race", err)
	}
	wagers, err := s.store.ListWagersByRace(c.UserContext(), id)
	if err != nil {
		return models.NewPersistenceError("list wagers", err)
	}
	return c.JSON(wagers)
}

func (s *Server) placeWager(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	var body WagerBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(err)
	}

	w, err := s.ctrl.PlaceWager(c.UserContext(), models.WagerRequest{
		RaceID:       id,
		CompetitorID: body.CompetitorID,
		Bettor:       body.Bettor,
		Stake:        body.Stake,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (s *Server) startRace(c *fiber.Ctx) error {
	id, err := raceID(c)
	if err != nil {
		return err
	}
	r, err := s.ctrl.StartRace(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(r)
}

func (s *Server) trackStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

func (s *Server) trackPositions(c *fiber.Ctx) error {
	p, ok := s.ctrl.Positions()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no race is on the track")
	}
	return c.JSON(p)
}

func (s *Server) cancelRace(c *fiber.Ctx) error {
	var body CancelBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return invalidBody(err)
		}
	}
	if body.Reason == "" {
		body.Reason = "cancelled by operator"
	}
	if err := s.ctrl.Cancel(c.UserContext(), body.Reason); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) retrySettlement(c *fiber.Ctx) error {
	if err := s.ctrl.RetrySettlement(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(s.ctrl.Status())
}

// wrapLookup keeps ErrNotFound visible and turns anything else into a persistence failure
func wrapLookup(op string, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return models.NewPersistenceError(op, err)
}
