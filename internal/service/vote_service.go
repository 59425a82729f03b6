package service

import (
	"context"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
)

// VoteService applies a viewer's vote and recomputes the post's public
// counters. The two steps run on independent pooled connections, not in one
// transaction: a crash in between leaves the counters stale only until the
// next recompute, because the recompute sets absolute counted totals.
type VoteService struct {
	voteRepo repository.VoteRepository
	postRepo repository.PostRepository
}

type ApplyVoteInput struct {
	UserID    uint
	PostID    uint
	Direction models.VoteDirection
}

// NewVoteService creates a new VoteService
func NewVoteService(voteRepo repository.VoteRepository, postRepo repository.PostRepository) *VoteService {
	return &VoteService{
		voteRepo: voteRepo,
		postRepo: postRepo,
	}
}

// Apply upserts the vote and refreshes the post counters from the counted
// totals. Returns the refreshed post so callers see authoritative counts.
func (s *VoteService) Apply(ctx context.Context, in ApplyVoteInput) (*models.Post, error) {
	if !in.Direction.Valid() {
		return nil, models.NewValidationError("Direction must be 'up' or 'down'")
	}

	// Distinct 404 before any mutation.
	if _, err := s.postRepo.GetByID(ctx, in.PostID, 0); err != nil {
		return nil, err
	}

	if err := s.voteRepo.Upsert(ctx, in.UserID, in.PostID, in.Direction); err != nil {
		return nil, err
	}
	if err := s.postRepo.RecomputeVoteCounts(ctx, in.PostID); err != nil {
		return nil, err
	}
	observability.VotesApplied.WithLabelValues(string(in.Direction)).Inc()

	if rootID, err := s.postRepo.ThreadRootID(ctx, in.PostID); err == nil {
		cache.InvalidateThread(ctx, rootID)
	}

	return s.postRepo.GetByID(ctx, in.PostID, in.UserID)
}
