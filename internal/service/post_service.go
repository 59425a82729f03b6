// Package service contains the business logic orchestrating repositories.
package service

import (
	"context"
	"strings"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"

	"github.com/samber/lo"
)

// ExtractTagsFunc extracts hashtags from content. Hashtag storage and
// discovery are owned by an external collaborator; the pipeline only needs
// the extraction step.
type ExtractTagsFunc func(content string) []string

// PostService implements the mutation pipeline: create, edit and delete of
// posts and replies, including the auto-mention rule and the wholesale
// hashtag-link recomputation.
type PostService struct {
	postRepo    repository.PostRepository
	hashtagRepo repository.HashtagRepository
	extractTags ExtractTagsFunc
}

type CreatePostInput struct {
	UserID  uint
	Content string
}

type CreateReplyInput struct {
	UserID       uint
	ParentPostID uint
	Content      string
}

type EditPostInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// ThreadPayload is the wire shape of a fetched thread: the root plus the
// complete, unordered descendant set. Each reply carries its own
// ParentPostID so the client can reconstruct structure regardless of order.
type ThreadPayload struct {
	Root    *models.Post   `json:"root"`
	Replies []*models.Post `json:"replies"`
}

// NewPostService creates a new PostService
func NewPostService(
	postRepo repository.PostRepository,
	hashtagRepo repository.HashtagRepository,
	extractTags ExtractTagsFunc,
) *PostService {
	return &PostService{
		postRepo:    postRepo,
		hashtagRepo: hashtagRepo,
		extractTags: extractTags,
	}
}

// CreatePost creates a thread root.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := models.ValidateContent(in.Content); err != nil {
		return nil, err
	}

	post := &models.Post{
		Content: in.Content,
		UserID:  in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	if err := s.linkHashtags(ctx, post.ID, post.Content); err != nil {
		return nil, err
	}
	observability.PostMutations.WithLabelValues("create").Inc()

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// CreateReply creates a reply to the given target post. When the target is
// itself a reply the stored content is prefixed with a mention of the
// target's author (unless already present) and the reply-to attribution is
// recorded. Replies made directly to a thread root get neither: attribution
// is needed once a conversation branches, but is noise at the top level.
func (s *PostService) CreateReply(ctx context.Context, in CreateReplyInput) (*models.Post, error) {
	if err := models.ValidateContent(in.Content); err != nil {
		return nil, err
	}

	target, err := s.postRepo.GetByID(ctx, in.ParentPostID, 0)
	if err != nil {
		return nil, err
	}

	content := in.Content
	var replyToUserID *uint
	if !target.IsRoot() {
		mention := "@" + target.User.Username
		// The existing mention must end at a token boundary: a reply to bob
		// starting with "@bobby" still needs the "@bob " prefix.
		if content != mention && !strings.HasPrefix(content, mention+" ") {
			content = mention + " " + content
		}
		// The prefixed content must still fit the storage constraint.
		if err := models.ValidateContent(content); err != nil {
			return nil, err
		}
		uid := target.UserID
		replyToUserID = &uid
	}

	parentID := target.ID
	post := &models.Post{
		Content:       content,
		UserID:        in.UserID,
		ParentPostID:  &parentID,
		ReplyToUserID: replyToUserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	if err := s.linkHashtags(ctx, post.ID, post.Content); err != nil {
		return nil, err
	}
	s.invalidateThread(ctx, post.ID)
	observability.PostMutations.WithLabelValues("reply").Inc()

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// EditPost replaces the content wholesale and recomputes hashtag links from
// the new content. No incremental diffing of either.
func (s *PostService) EditPost(ctx context.Context, in EditPostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own posts")
	}
	if err := models.ValidateContent(in.Content); err != nil {
		return nil, err
	}

	post.Content = in.Content
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	if err := s.linkHashtags(ctx, post.ID, post.Content); err != nil {
		return nil, err
	}
	s.invalidateThread(ctx, post.ID)
	observability.PostMutations.WithLabelValues("edit").Inc()

	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// DeletePost removes the post and, through the store cascade, every
// descendant of every depth plus their votes and hashtag links.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only delete your own posts")
	}

	// Resolve the thread root before the row disappears so the cached
	// thread payload can be dropped.
	rootID, err := s.postRepo.ThreadRootID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return nil, err
	}
	cache.InvalidateThread(ctx, rootID)
	observability.PostMutations.WithLabelValues("delete").Inc()

	return post, nil
}

// GetPost returns a single post. Anonymous reads are served cache-aside
// under the post key; every mutation that can change the row (edit, delete,
// vote recompute, a new direct reply) invalidates it. Authenticated reads
// always hit the store because each row carries the viewer's own vote.
func (s *PostService) GetPost(ctx context.Context, postID uint, viewerID uint) (*models.Post, error) {
	if viewerID != 0 {
		return s.postRepo.GetByID(ctx, postID, viewerID)
	}

	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(postID), &post, cache.PostTTL, func() error {
		p, err := s.postRepo.GetByID(ctx, postID, 0)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// FetchThread returns the post plus its complete descendant set. Anonymous
// reads go through the cache-aside path; authenticated reads always hit the
// store because each row carries the viewer's own vote.
func (s *PostService) FetchThread(ctx context.Context, postID uint, viewerID uint) (*ThreadPayload, error) {
	var payload ThreadPayload

	fetch := func() error {
		root, err := s.postRepo.GetByID(ctx, postID, viewerID)
		if err != nil {
			return err
		}
		replies, err := s.postRepo.FetchSubtree(ctx, postID, viewerID)
		if err != nil {
			return err
		}
		payload = ThreadPayload{Root: root, Replies: replies}
		return s.attachHashtags(ctx, &payload)
	}

	if viewerID == 0 {
		if err := cache.Aside(ctx, cache.ThreadKey(postID), &payload, cache.ThreadTTL, fetch); err != nil {
			return nil, err
		}
		observability.ThreadFetches.WithLabelValues("anonymous").Inc()
	} else {
		if err := fetch(); err != nil {
			return nil, err
		}
		observability.ThreadFetches.WithLabelValues("viewer").Inc()
	}

	return &payload, nil
}

func (s *PostService) attachHashtags(ctx context.Context, payload *ThreadPayload) error {
	ids := lo.Map(payload.Replies, func(p *models.Post, _ int) uint { return p.ID })
	ids = append(ids, payload.Root.ID)

	byPost, err := s.hashtagRepo.ListForPosts(ctx, ids)
	if err != nil {
		return err
	}
	payload.Root.Hashtags = byPost[payload.Root.ID]
	for _, p := range payload.Replies {
		p.Hashtags = byPost[p.ID]
	}
	return nil
}

func (s *PostService) linkHashtags(ctx context.Context, postID uint, content string) error {
	return s.hashtagRepo.ReplaceForPost(ctx, postID, s.extractTags(content))
}

// invalidateThread drops the cached payload for the tree containing postID.
// Best-effort: a failed root lookup only means a stale cache entry until TTL.
func (s *PostService) invalidateThread(ctx context.Context, postID uint) {
	if rootID, err := s.postRepo.ThreadRootID(ctx, postID); err == nil {
		cache.InvalidateThread(ctx, rootID)
	}
}
