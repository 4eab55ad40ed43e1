package api

import (
	"github.com/gofiber/fiber/v2"
)

// SpinBody is the request to spin the slot machine
type SpinBody struct {
	Player string `json:"player"`
	Bet    int64  `json:"bet"`
}

// RollBody is the request to roll the dice
type RollBody struct {
	Player     string `json:"player"`
	Bet        int64  `json:"bet"`
	Prediction int    `json:"prediction"`
}

func (s *Server) gameLimits(c *fiber.Ctx) error {
	return c.JSON(s.games.Limits())
}

func (s *Server) spin(c *fiber.Ctx) error {
	var body SpinBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(err)
	}
	play, err := s.games.Spin(c.UserContext(), body.Player, body.Bet)
	if err != nil {
		return err
	}
	return c.JSON(play)
}

func (s *Server) roll(c *fiber.Ctx) error {
	var body RollBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(err)
	}
	play, err := s.games.Roll(c.UserContext(), body.Player, body.Bet, body.Prediction)
	if err != nil {
		return err
	}
	return c.JSON(play)
}

func (s *Server) spinHistory(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}
	spins, err := s.games.RecentSpins(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(spins)
}

func (s *Server) rollHistory(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}
	rolls, err := s.games.RecentDiceRolls(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(rolls)
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	return c.JSON(s.sessions.Snapshots())
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Params("player"))
	if err != nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) resetSession(c *fiber.Ctx) error {
	snap, err := s.sessions.Reset(c.Params("player"))
	if err != nil {
		return err
	}
	return c.JSON(snap)
}
