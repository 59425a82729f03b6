package server

import (
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// VotePost records the caller's vote on a post (protected). Voting the same
// direction again is a server-side no-op thanks to upsert semantics; clients
// are expected to skip the request entirely in that case.
func (s *Server) VotePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Direction models.VoteDirection `json:"direction"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	post, err := s.voteService.Apply(ctx, service.ApplyVoteInput{
		UserID:    userID,
		PostID:    postID,
		Direction: req.Direction,
	})
	if err != nil {
		return models.RespondWithError(c, statusForError(err), err)
	}

	return c.JSON(post)
}
