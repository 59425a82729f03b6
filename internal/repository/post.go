// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	// FetchSubtree returns every descendant of the post at any depth. The
	// result order is unspecified; callers reconstruct structure from each
	// row's ParentPostID.
	FetchSubtree(ctx context.Context, postID uint, viewerID uint) ([]*models.Post, error)
	// ThreadRootID walks parent links up to the post with no parent.
	ThreadRootID(ctx context.Context, postID uint) (uint, error)
	Update(ctx context.Context, post *models.Post) error
	// Delete removes the post; the database cascade removes every
	// descendant at every depth plus their votes and hashtag links.
	Delete(ctx context.Context, id uint) error
	// RecomputeVoteCounts overwrites the post's counters with the counted
	// totals from the votes table. Absolute set, never an increment, so a
	// missed update heals on the next recompute.
	RecomputeVoteCounts(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewStorageError(err)
	}
	// A new reply changes the parent's computed reply count.
	if post.ParentPostID != nil {
		cache.InvalidatePost(ctx, *post.ParentPostID)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(r.db.WithContext(ctx), viewerID).
		Preload("User").
		Preload("ReplyToUser").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewStorageError(err)
	}
	return &post, nil
}

func (r *postRepository) FetchSubtree(ctx context.Context, postID uint, viewerID uint) (_ []*models.Post, err error) {
	defer observability.TrackQuery("fetch_subtree", "posts")()
	ctx, span := observability.StartSpan(ctx, "posts.fetch_subtree",
		attribute.Int("post.id", int(postID)))
	defer func() {
		observability.SpanError(span, err)
		span.End()
	}()

	// Recursive closure over the parent link: seed with direct children,
	// then repeatedly join the children of the previous level. Each pass
	// returns one whole depth level, so rows come out depth ascending and
	// created ascending within a level. That order is a convenience only.
	var all []*models.Post
	frontier := []uint{postID}
	for len(frontier) > 0 {
		var level []*models.Post
		err := r.applyPostDetails(r.db.WithContext(ctx), viewerID).
			Preload("User").
			Preload("ReplyToUser").
			Where("parent_post_id IN ?", frontier).
			Order("created_at ASC").
			Find(&level).Error
		if err != nil {
			return nil, models.NewStorageError(err)
		}
		if len(level) == 0 {
			break
		}
		all = append(all, level...)

		frontier = frontier[:0]
		for _, p := range level {
			frontier = append(frontier, p.ID)
		}
	}
	return all, nil
}

func (r *postRepository) ThreadRootID(ctx context.Context, postID uint) (uint, error) {
	id := postID
	for {
		var row struct {
			ID           uint
			ParentPostID *uint
		}
		err := r.db.WithContext(ctx).
			Model(&models.Post{}).
			Select("id", "parent_post_id").
			Where("id = ?", id).
			Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, models.NewNotFoundError("Post", id)
			}
			return 0, models.NewStorageError(err)
		}
		if row.ParentPostID == nil {
			return row.ID, nil
		}
		id = *row.ParentPostID
	}
}

// applyPostDetails adds subqueries to fetch the reply count and the viewer's
// own vote in a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM posts AS replies WHERE replies.parent_post_id = posts.id) as replies_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", (SELECT direction FROM votes WHERE votes.post_id = posts.id AND votes.user_id = ?) as viewer_vote", viewerID)
	}

	return db.Select(selectQuery + ", NULL as viewer_vote")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Save(post).Error; err != nil {
		return models.NewStorageError(err)
	}
	cache.InvalidatePost(ctx, post.ID)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		return models.NewStorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}

func (r *postRepository) RecomputeVoteCounts(ctx context.Context, id uint) (err error) {
	defer observability.TrackQuery("recompute_votes", "posts")()
	ctx, span := observability.StartSpan(ctx, "posts.recompute_votes",
		attribute.Int("post.id", int(id)))
	defer func() {
		observability.SpanError(span, err)
		span.End()
	}()

	result := r.db.WithContext(ctx).Exec(
		`UPDATE posts SET
			upvotes   = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.direction = 'up'),
			downvotes = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.direction = 'down')
		 WHERE id = ?`,
		id,
	)
	if result.Error != nil {
		return models.NewStorageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	cache.InvalidatePost(ctx, id)
	return nil
}
