package service

import (
	"context"
	"strings"
	"testing"

	"murmur/internal/cache"
	"murmur/internal/hashtag"
	"murmur/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postRepoStub struct {
	createFn              func(context.Context, *models.Post) error
	getByIDFn             func(context.Context, uint, uint) (*models.Post, error)
	fetchSubtreeFn        func(context.Context, uint, uint) ([]*models.Post, error)
	threadRootIDFn        func(context.Context, uint) (uint, error)
	updateFn              func(context.Context, *models.Post) error
	deleteFn              func(context.Context, uint) error
	recomputeVoteCountsFn func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) FetchSubtree(ctx context.Context, postID, viewerID uint) ([]*models.Post, error) {
	return s.fetchSubtreeFn(ctx, postID, viewerID)
}
func (s *postRepoStub) ThreadRootID(ctx context.Context, postID uint) (uint, error) {
	return s.threadRootIDFn(ctx, postID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) RecomputeVoteCounts(ctx context.Context, id uint) error {
	return s.recomputeVoteCountsFn(ctx, id)
}

type hashtagRepoStub struct {
	replaceForPostFn func(context.Context, uint, []string) error
	listForPostFn    func(context.Context, uint) ([]string, error)
	listForPostsFn   func(context.Context, []uint) (map[uint][]string, error)
}

func (s *hashtagRepoStub) ReplaceForPost(ctx context.Context, postID uint, tags []string) error {
	return s.replaceForPostFn(ctx, postID, tags)
}
func (s *hashtagRepoStub) ListForPost(ctx context.Context, postID uint) ([]string, error) {
	return s.listForPostFn(ctx, postID)
}
func (s *hashtagRepoStub) ListForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	return s.listForPostsFn(ctx, postIDs)
}

func noopPostRepo() *postRepoStub {
	nextID := uint(100)
	return &postRepoStub{
		createFn: func(_ context.Context, post *models.Post) error {
			nextID++
			post.ID = nextID
			return nil
		},
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		fetchSubtreeFn:        func(context.Context, uint, uint) ([]*models.Post, error) { return nil, nil },
		threadRootIDFn:        func(_ context.Context, postID uint) (uint, error) { return postID, nil },
		updateFn:              func(context.Context, *models.Post) error { return nil },
		deleteFn:              func(context.Context, uint) error { return nil },
		recomputeVoteCountsFn: func(context.Context, uint) error { return nil },
	}
}

func noopHashtagRepo() *hashtagRepoStub {
	return &hashtagRepoStub{
		replaceForPostFn: func(context.Context, uint, []string) error { return nil },
		listForPostFn:    func(context.Context, uint) ([]string, error) { return nil, nil },
		listForPostsFn: func(context.Context, []uint) (map[uint][]string, error) {
			return map[uint][]string{}, nil
		},
	}
}

func newTestPostService(posts *postRepoStub, tags *hashtagRepoStub) *PostService {
	return NewPostService(posts, tags, hashtag.Extract)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestPostService_CreatePost(t *testing.T) {
	t.Parallel()

	t.Run("empty content rejected", func(t *testing.T) {
		t.Parallel()
		svc := newTestPostService(noopPostRepo(), noopHashtagRepo())
		_, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: 1})
		assertErrorCode(t, err, models.CodeValidation)
	})

	t.Run("281 scalar values rejected, 280 accepted", func(t *testing.T) {
		t.Parallel()
		svc := newTestPostService(noopPostRepo(), noopHashtagRepo())

		// Multi-byte runes: the bound is on Unicode scalar values, not bytes.
		_, err := svc.CreatePost(context.Background(), CreatePostInput{
			UserID: 1, Content: strings.Repeat("ü", 281),
		})
		assertErrorCode(t, err, models.CodeValidation)

		_, err = svc.CreatePost(context.Background(), CreatePostInput{
			UserID: 1, Content: strings.Repeat("ü", 280),
		})
		require.NoError(t, err)
	})

	t.Run("links extracted hashtags", func(t *testing.T) {
		t.Parallel()
		tags := noopHashtagRepo()
		var linked []string
		tags.replaceForPostFn = func(_ context.Context, _ uint, got []string) error {
			linked = got
			return nil
		}
		svc := newTestPostService(noopPostRepo(), tags)

		_, err := svc.CreatePost(context.Background(), CreatePostInput{
			UserID: 1, Content: "shipping #Go and more #go plus #testing",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "testing"}, linked)
	})
}

func TestPostService_CreateReply_MentionRule(t *testing.T) {
	t.Parallel()

	storedRoot := &models.Post{
		ID: 1, Content: "thread start", UserID: 10,
		User: models.User{ID: 10, Username: "alice"},
	}
	rootID := uint(1)
	storedReply := &models.Post{
		ID: 2, Content: "Nice!", UserID: 20,
		User:         models.User{ID: 20, Username: "bob"},
		ParentPostID: &rootID,
	}

	lookup := func(posts map[uint]*models.Post) func(context.Context, uint, uint) (*models.Post, error) {
		return func(_ context.Context, id, _ uint) (*models.Post, error) {
			if p, ok := posts[id]; ok {
				return p, nil
			}
			return nil, models.NewNotFoundError("Post", id)
		}
	}

	t.Run("reply to root gets no mention and no attribution", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		base := repo.createFn
		var created *models.Post
		repo.createFn = func(ctx context.Context, p *models.Post) error {
			created = p
			return base(ctx, p)
		}
		getByID := lookup(map[uint]*models.Post{1: storedRoot})
		repo.getByIDFn = func(ctx context.Context, id, viewerID uint) (*models.Post, error) {
			if created != nil && id == created.ID {
				return created, nil
			}
			return getByID(ctx, id, viewerID)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		post, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 20, ParentPostID: 1, Content: "Nice!",
		})
		require.NoError(t, err)
		assert.Equal(t, "Nice!", post.Content)
		assert.Nil(t, post.ReplyToUserID)
		require.NotNil(t, post.ParentPostID)
		assert.Equal(t, uint(1), *post.ParentPostID)
	})

	t.Run("reply to a reply gets the author mention and attribution", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		base := repo.createFn
		var created *models.Post
		repo.createFn = func(ctx context.Context, p *models.Post) error {
			created = p
			return base(ctx, p)
		}
		getByID := lookup(map[uint]*models.Post{2: storedReply})
		repo.getByIDFn = func(ctx context.Context, id, viewerID uint) (*models.Post, error) {
			if created != nil && id == created.ID {
				return created, nil
			}
			return getByID(ctx, id, viewerID)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		post, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 2, Content: "Agreed",
		})
		require.NoError(t, err)
		assert.Equal(t, "@bob Agreed", post.Content)
		require.NotNil(t, post.ReplyToUserID)
		assert.Equal(t, uint(20), *post.ReplyToUserID)
	})

	t.Run("existing mention is not doubled", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		var created *models.Post
		base := repo.createFn
		repo.createFn = func(ctx context.Context, p *models.Post) error {
			created = p
			return base(ctx, p)
		}
		getByID := lookup(map[uint]*models.Post{2: storedReply})
		repo.getByIDFn = func(ctx context.Context, id, viewerID uint) (*models.Post, error) {
			if created != nil && id == created.ID {
				return created, nil
			}
			return getByID(ctx, id, viewerID)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		post, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 2, Content: "@bob sure thing",
		})
		require.NoError(t, err)
		assert.Equal(t, "@bob sure thing", post.Content)
	})

	t.Run("mention of a longer username still gets the prefix", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		var created *models.Post
		base := repo.createFn
		repo.createFn = func(ctx context.Context, p *models.Post) error {
			created = p
			return base(ctx, p)
		}
		getByID := lookup(map[uint]*models.Post{2: storedReply})
		repo.getByIDFn = func(ctx context.Context, id, viewerID uint) (*models.Post, error) {
			if created != nil && id == created.ID {
				return created, nil
			}
			return getByID(ctx, id, viewerID)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		// "@bobby" is a mention of a different user, not of bob.
		post, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 2, Content: "@bobby is wrong",
		})
		require.NoError(t, err)
		assert.Equal(t, "@bob @bobby is wrong", post.Content)
	})

	t.Run("bare mention is left alone", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		var created *models.Post
		base := repo.createFn
		repo.createFn = func(ctx context.Context, p *models.Post) error {
			created = p
			return base(ctx, p)
		}
		getByID := lookup(map[uint]*models.Post{2: storedReply})
		repo.getByIDFn = func(ctx context.Context, id, viewerID uint) (*models.Post, error) {
			if created != nil && id == created.ID {
				return created, nil
			}
			return getByID(ctx, id, viewerID)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		post, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 2, Content: "@bob",
		})
		require.NoError(t, err)
		assert.Equal(t, "@bob", post.Content)
	})

	t.Run("mention prefix pushing past the limit is rejected", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = lookup(map[uint]*models.Post{2: storedReply})
		svc := newTestPostService(repo, noopHashtagRepo())

		// Fits on its own but not once "@bob " is prepended.
		_, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 2, Content: strings.Repeat("x", 278),
		})
		assertErrorCode(t, err, models.CodeValidation)
	})

	t.Run("unknown parent is a distinct not-found", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = lookup(map[uint]*models.Post{})
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.CreateReply(context.Background(), CreateReplyInput{
			UserID: 30, ParentPostID: 404, Content: "hello",
		})
		assertErrorCode(t, err, models.CodeNotFound)
	})
}

func TestPostService_EditPost(t *testing.T) {
	t.Parallel()

	t.Run("only the author may edit", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10, Content: "original"}, nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.EditPost(context.Background(), EditPostInput{
			UserID: 99, PostID: 1, Content: "hijacked",
		})
		assertErrorCode(t, err, models.CodeUnauthorized)
	})

	t.Run("replaces content and recomputes hashtag links wholesale", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		stored := &models.Post{ID: 1, UserID: 10, Content: "was #old news"}
		repo.getByIDFn = func(context.Context, uint, uint) (*models.Post, error) {
			return stored, nil
		}
		var updated *models.Post
		repo.updateFn = func(_ context.Context, p *models.Post) error {
			updated = p
			return nil
		}
		tags := noopHashtagRepo()
		var linked []string
		tags.replaceForPostFn = func(_ context.Context, _ uint, got []string) error {
			linked = got
			return nil
		}
		svc := newTestPostService(repo, tags)

		_, err := svc.EditPost(context.Background(), EditPostInput{
			UserID: 10, PostID: 1, Content: "now #fresh takes",
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "now #fresh takes", updated.Content)
		assert.Equal(t, []string{"fresh"}, linked, "tags from the old content must be gone")
	})
}

func TestPostService_DeletePost(t *testing.T) {
	t.Parallel()

	t.Run("only the author may delete", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		deleted := false
		repo.deleteFn = func(context.Context, uint) error {
			deleted = true
			return nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 99, PostID: 1})
		assertErrorCode(t, err, models.CodeUnauthorized)
		assert.False(t, deleted)
	})

	t.Run("resolves the thread root before the row disappears", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		parent := uint(1)
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10, ParentPostID: &parent}, nil
		}
		var calls []string
		repo.threadRootIDFn = func(_ context.Context, postID uint) (uint, error) {
			calls = append(calls, "root")
			return 1, nil
		}
		repo.deleteFn = func(_ context.Context, id uint) error {
			calls = append(calls, "delete")
			return nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		post, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 10, PostID: 5})
		require.NoError(t, err)
		assert.Equal(t, uint(5), post.ID)
		assert.Equal(t, []string{"root", "delete"}, calls)
	})

	t.Run("unknown post is not found", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 10, PostID: 404})
		assertErrorCode(t, err, models.CodeNotFound)
	})

	t.Run("cascade removes nested replies from subsequent fetches", func(t *testing.T) {
		t.Parallel()

		// Root 1 <- reply 2 <- nested reply 3, all stored. The stub mimics
		// the store cascade: deleting 2 takes 3 with it.
		rootID, aID := uint(1), uint(2)
		posts := map[uint]*models.Post{
			1: {ID: 1, UserID: 10},
			2: {ID: 2, UserID: 20, ParentPostID: &rootID},
			3: {ID: 3, UserID: 30, ParentPostID: &aID},
		}

		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			if p, ok := posts[id]; ok {
				return p, nil
			}
			return nil, models.NewNotFoundError("Post", id)
		}
		repo.fetchSubtreeFn = func(_ context.Context, postID, _ uint) ([]*models.Post, error) {
			var out []*models.Post
			frontier := []uint{postID}
			for len(frontier) > 0 {
				var next []uint
				for _, p := range posts {
					for _, parent := range frontier {
						if p.ParentPostID != nil && *p.ParentPostID == parent {
							out = append(out, p)
							next = append(next, p.ID)
						}
					}
				}
				frontier = next
			}
			return out, nil
		}
		repo.deleteFn = func(_ context.Context, id uint) error {
			delete(posts, id)
			for pid, p := range posts {
				if p.ParentPostID != nil && *p.ParentPostID == id {
					delete(posts, pid)
				}
			}
			return nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 20, PostID: 2})
		require.NoError(t, err)

		payload, err := svc.FetchThread(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Empty(t, payload.Replies, "both the reply and its nested reply are gone")
	})
}

func TestPostService_FetchThread(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	rootID := uint(1)
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, Content: "root"}, nil
	}
	repo.fetchSubtreeFn = func(context.Context, uint, uint) ([]*models.Post, error) {
		return []*models.Post{
			{ID: 2, ParentPostID: &rootID},
			{ID: 3, ParentPostID: &rootID},
		}, nil
	}
	tags := noopHashtagRepo()
	tags.listForPostsFn = func(_ context.Context, ids []uint) (map[uint][]string, error) {
		assert.ElementsMatch(t, []uint{1, 2, 3}, ids)
		return map[uint][]string{1: {"intro"}, 3: {"aside"}}, nil
	}
	svc := newTestPostService(repo, tags)

	payload, err := svc.FetchThread(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(1), payload.Root.ID)
	require.Len(t, payload.Replies, 2)
	assert.Equal(t, []string{"intro"}, payload.Root.Hashtags)
	assert.Equal(t, []string{"aside"}, payload.Replies[1].Hashtags)
}

// No t.Parallel: the cache client is package-global.
func TestPostService_GetPost(t *testing.T) {
	setupCache := func(t *testing.T) {
		t.Helper()
		mr := miniredis.RunT(t)
		cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { cache.SetClient(nil) })
	}

	t.Run("anonymous reads are served cache-aside", func(t *testing.T) {
		setupCache(t)

		fetches := 0
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, viewerID uint) (*models.Post, error) {
			fetches++
			assert.Zero(t, viewerID)
			return &models.Post{ID: id, Content: "hello", Upvotes: 3}, nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		first, err := svc.GetPost(context.Background(), 7, 0)
		require.NoError(t, err)
		second, err := svc.GetPost(context.Background(), 7, 0)
		require.NoError(t, err)

		assert.Equal(t, 1, fetches)
		assert.Equal(t, first.Content, second.Content)
		assert.Equal(t, first.Upvotes, second.Upvotes)
	})

	t.Run("authenticated reads always hit the store", func(t *testing.T) {
		setupCache(t)

		fetches := 0
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, viewerID uint) (*models.Post, error) {
			fetches++
			assert.Equal(t, uint(42), viewerID)
			return &models.Post{ID: id}, nil
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		for i := 0; i < 2; i++ {
			_, err := svc.GetPost(context.Background(), 7, 42)
			require.NoError(t, err)
		}
		assert.Equal(t, 2, fetches)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		setupCache(t)

		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc := newTestPostService(repo, noopHashtagRepo())

		_, err := svc.GetPost(context.Background(), 404, 0)
		assertErrorCode(t, err, models.CodeNotFound)

		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, Content: "late"}, nil
		}
		post, err := svc.GetPost(context.Background(), 404, 0)
		require.NoError(t, err)
		assert.Equal(t, "late", post.Content)
	})
}
