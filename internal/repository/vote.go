package repository

import (
	"context"
	"errors"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// VoteRepository defines interface for vote operations
type VoteRepository interface {
	// Upsert writes the user's vote on a post. A second vote for the same
	// (user, post) pair replaces the direction; it never accumulates.
	Upsert(ctx context.Context, userID, postID uint, direction models.VoteDirection) error
	Get(ctx context.Context, userID, postID uint) (*models.Vote, error)
}

type voteRepository struct {
	db *gorm.DB
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) Upsert(ctx context.Context, userID, postID uint, direction models.VoteDirection) error {
	// INSERT ... ON CONFLICT DO UPDATE is atomic and avoids a read-then-write
	// race between two requests from the same user.
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO votes (user_id, post_id, direction, created_at, updated_at)
		 VALUES (?, ?, ?, NOW(), NOW())
		 ON CONFLICT (user_id, post_id) DO UPDATE SET direction = EXCLUDED.direction, updated_at = NOW()`,
		userID, postID, direction,
	)
	if result.Error != nil {
		return models.NewStorageError(result.Error)
	}
	return nil
}

func (r *voteRepository) Get(ctx context.Context, userID, postID uint) (*models.Vote, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Take(&vote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Vote", postID)
		}
		return nil, models.NewStorageError(err)
	}
	return &vote, nil
}
