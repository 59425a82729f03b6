package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"murmur/internal/hashtag"
	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	args := m.Called(ctx, id, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) FetchSubtree(ctx context.Context, postID uint, viewerID uint) ([]*models.Post, error) {
	args := m.Called(ctx, postID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) ThreadRootID(ctx context.Context, postID uint) (uint, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) RecomputeVoteCounts(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockHashtagRepository is a mock of the HashtagRepository interface
type MockHashtagRepository struct {
	mock.Mock
}

func (m *MockHashtagRepository) ReplaceForPost(ctx context.Context, postID uint, tags []string) error {
	args := m.Called(ctx, postID, tags)
	return args.Error(0)
}

func (m *MockHashtagRepository) ListForPost(ctx context.Context, postID uint) ([]string, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockHashtagRepository) ListForPosts(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	args := m.Called(ctx, postIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint][]string), args.Error(1)
}

// MockVoteRepository is a mock of the VoteRepository interface
type MockVoteRepository struct {
	mock.Mock
}

func (m *MockVoteRepository) Upsert(ctx context.Context, userID, postID uint, direction models.VoteDirection) error {
	args := m.Called(ctx, userID, postID, direction)
	return args.Error(0)
}

func (m *MockVoteRepository) Get(ctx context.Context, userID, postID uint) (*models.Vote, error) {
	args := m.Called(ctx, userID, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vote), args.Error(1)
}

type handlerMocks struct {
	posts *MockPostRepository
	tags  *MockHashtagRepository
	votes *MockVoteRepository
}

func newTestServer() (*Server, handlerMocks) {
	mocks := handlerMocks{
		posts: new(MockPostRepository),
		tags:  new(MockHashtagRepository),
		votes: new(MockVoteRepository),
	}
	s := &Server{
		postRepo:    mocks.posts,
		voteRepo:    mocks.votes,
		hashtagRepo: mocks.tags,
	}
	s.postService = service.NewPostService(mocks.posts, mocks.tags, hashtag.Extract)
	s.voteService = service.NewVoteService(mocks.votes, mocks.posts)
	return s, mocks
}

func authApp(userID uint) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	return app
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreatePostHandler(t *testing.T) {
	t.Run("creates and returns 201", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(1)
		app.Post("/posts", s.CreatePost)

		mocks.posts.On("Create", mock.Anything, mock.AnythingOfType("*models.Post")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Post).ID = 42
			}).Return(nil)
		mocks.tags.On("ReplaceForPost", mock.Anything, uint(42), []string{"intro"}).Return(nil)
		mocks.posts.On("GetByID", mock.Anything, uint(42), uint(1)).
			Return(&models.Post{ID: 42, Content: "hello #intro", UserID: 1}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/posts", fiber.Map{"content": "hello #intro"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var created models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, uint(42), created.ID)
		mocks.posts.AssertExpectations(t)
		mocks.tags.AssertExpectations(t)
	})

	t.Run("empty content is a 400", func(t *testing.T) {
		s, _ := newTestServer()
		app := authApp(1)
		app.Post("/posts", s.CreatePost)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/posts", fiber.Map{"content": ""}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body models.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, models.CodeValidation, body.Code)
	})
}

func TestCreateReplyHandler(t *testing.T) {
	t.Run("mention prefix comes back in the stored reply", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(30)
		app.Post("/posts/:id/replies", s.CreateReply)

		rootID := uint(1)
		target := &models.Post{
			ID: 2, Content: "Nice!", UserID: 20,
			User:         models.User{ID: 20, Username: "bob"},
			ParentPostID: &rootID,
		}
		mocks.posts.On("GetByID", mock.Anything, uint(2), uint(0)).Return(target, nil)
		mocks.posts.On("Create", mock.Anything, mock.AnythingOfType("*models.Post")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Post).ID = 43
			}).Return(nil)
		mocks.tags.On("ReplaceForPost", mock.Anything, uint(43), []string{}).Return(nil)
		mocks.posts.On("ThreadRootID", mock.Anything, uint(43)).Return(uint(1), nil)
		mocks.posts.On("GetByID", mock.Anything, uint(43), uint(30)).
			Return(&models.Post{ID: 43, Content: "@bob Agreed", UserID: 30}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/posts/2/replies", fiber.Map{"content": "Agreed"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var created models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
		assert.Equal(t, "@bob Agreed", created.Content)
	})

	t.Run("unknown parent is a 404", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(30)
		app.Post("/posts/:id/replies", s.CreateReply)

		mocks.posts.On("GetByID", mock.Anything, uint(404), uint(0)).
			Return(nil, models.NewNotFoundError("Post", uint(404)))

		resp, err := app.Test(jsonRequest(http.MethodPost, "/posts/404/replies", fiber.Map{"content": "hello"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("non-numeric id is a 400", func(t *testing.T) {
		s, _ := newTestServer()
		app := authApp(30)
		app.Post("/posts/:id/replies", s.CreateReply)

		resp, err := app.Test(jsonRequest(http.MethodPost, "/posts/abc/replies", fiber.Map{"content": "hello"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetThreadHandler(t *testing.T) {
	t.Run("returns root plus flat descendant set", func(t *testing.T) {
		s, mocks := newTestServer()
		app := fiber.New()
		app.Get("/posts/:id/thread", s.GetThread)

		rootID := uint(1)
		mocks.posts.On("GetByID", mock.Anything, uint(1), uint(0)).
			Return(&models.Post{ID: 1, Content: "root"}, nil)
		mocks.posts.On("FetchSubtree", mock.Anything, uint(1), uint(0)).
			Return([]*models.Post{
				{ID: 2, ParentPostID: &rootID},
				{ID: 3, ParentPostID: &rootID},
			}, nil)
		mocks.tags.On("ListForPosts", mock.Anything, mock.Anything).
			Return(map[uint][]string{}, nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/1/thread", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var payload service.ThreadPayload
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
		assert.Equal(t, uint(1), payload.Root.ID)
		assert.Len(t, payload.Replies, 2)
	})

	t.Run("missing thread is a 404", func(t *testing.T) {
		s, mocks := newTestServer()
		app := fiber.New()
		app.Get("/posts/:id/thread", s.GetThread)

		mocks.posts.On("GetByID", mock.Anything, uint(9), uint(0)).
			Return(nil, models.NewNotFoundError("Post", uint(9)))

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/9/thread", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestEditPostHandler(t *testing.T) {
	t.Run("editing someone else's post is a 403", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(99)
		app.Put("/posts/:id", s.EditPost)

		mocks.posts.On("GetByID", mock.Anything, uint(1), uint(0)).
			Return(&models.Post{ID: 1, UserID: 10, Content: "original"}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPut, "/posts/1", fiber.Map{"content": "hijacked"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestDeletePostHandler(t *testing.T) {
	t.Run("owner delete succeeds", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(10)
		app.Delete("/posts/:id", s.DeletePost)

		mocks.posts.On("GetByID", mock.Anything, uint(5), uint(0)).
			Return(&models.Post{ID: 5, UserID: 10}, nil)
		mocks.posts.On("ThreadRootID", mock.Anything, uint(5)).Return(uint(1), nil)
		mocks.posts.On("Delete", mock.Anything, uint(5)).Return(nil)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mocks.posts.AssertExpectations(t)
	})
}

func TestVotePostHandler(t *testing.T) {
	t.Run("invalid direction is a 400", func(t *testing.T) {
		s, _ := newTestServer()
		app := authApp(1)
		app.Put("/posts/:id/vote", s.VotePost)

		resp, err := app.Test(jsonRequest(http.MethodPut, "/posts/1/vote", fiber.Map{"direction": "sideways"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("vote refreshes the counters", func(t *testing.T) {
		s, mocks := newTestServer()
		app := authApp(7)
		app.Put("/posts/:id/vote", s.VotePost)

		mocks.posts.On("GetByID", mock.Anything, uint(3), uint(0)).
			Return(&models.Post{ID: 3}, nil)
		mocks.votes.On("Upsert", mock.Anything, uint(7), uint(3), models.VoteUp).Return(nil)
		mocks.posts.On("RecomputeVoteCounts", mock.Anything, uint(3)).Return(nil)
		mocks.posts.On("ThreadRootID", mock.Anything, uint(3)).Return(uint(3), nil)
		mocks.posts.On("GetByID", mock.Anything, uint(3), uint(7)).
			Return(&models.Post{ID: 3, Upvotes: 8}, nil)

		resp, err := app.Test(jsonRequest(http.MethodPut, "/posts/3/vote", fiber.Map{"direction": "up"}))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var post models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
		assert.Equal(t, 8, post.Upvotes)
		mocks.votes.AssertExpectations(t)
	})
}
