package server

import (
	"murmur/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetThread returns a post plus its complete descendant set (public).
// Replies are an unordered flat list; each carries its parent_post_id so
// clients rebuild the tree themselves.
func (s *Server) GetThread(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	payload, err := s.postService.FetchThread(ctx, postID, viewerID(c))
	if err != nil {
		return models.RespondWithError(c, statusForError(err), err)
	}

	return c.JSON(payload)
}
