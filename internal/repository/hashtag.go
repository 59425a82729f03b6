package repository

import (
	"context"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// HashtagRepository defines interface for hashtag link operations
type HashtagRepository interface {
	// ReplaceForPost drops every hashtag link for the post and re-inserts
	// links for tags. No incremental diffing: edits recompute from scratch.
	ReplaceForPost(ctx context.Context, postID uint, tags []string) error
	ListForPost(ctx context.Context, postID uint) ([]string, error)
	// ListForPosts returns tags for many posts in one query, keyed by post id.
	ListForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error)
}

type hashtagRepository struct {
	db *gorm.DB
}

// NewHashtagRepository creates a new HashtagRepository
func NewHashtagRepository(db *gorm.DB) HashtagRepository {
	return &hashtagRepository{db: db}
}

func (r *hashtagRepository) ReplaceForPost(ctx context.Context, postID uint, tags []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostHashtag{}).Error; err != nil {
			return err
		}
		for _, tag := range tags {
			var ht models.Hashtag
			if err := tx.Where(models.Hashtag{Tag: tag}).FirstOrCreate(&ht).Error; err != nil {
				return err
			}
			link := models.PostHashtag{PostID: postID, HashtagID: ht.ID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.NewStorageError(err)
	}
	return nil
}

func (r *hashtagRepository) ListForPost(ctx context.Context, postID uint) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Where("post_hashtags.post_id = ?", postID).
		Order("hashtags.tag ASC").
		Pluck("hashtags.tag", &tags).Error
	if err != nil {
		return nil, models.NewStorageError(err)
	}
	return tags, nil
}

func (r *hashtagRepository) ListForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	if len(postIDs) == 0 {
		return map[uint][]string{}, nil
	}

	var rows []struct {
		PostID uint
		Tag    string
	}
	err := r.db.WithContext(ctx).
		Model(&models.PostHashtag{}).
		Select("post_hashtags.post_id, hashtags.tag").
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Where("post_hashtags.post_id IN ?", postIDs).
		Order("hashtags.tag ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewStorageError(err)
	}

	byPost := make(map[uint][]string, len(postIDs))
	for _, row := range rows {
		byPost[row.PostID] = append(byPost[row.PostID], row.Tag)
	}
	return byPost, nil
}
