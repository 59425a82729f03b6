// Package client implements the thread-view client: a typed API client, the
// optimistic vote ledger and the single-goroutine session that keeps tree,
// expansion and selection state mutually consistent across mutations.
package client

import (
	"context"
	"fmt"
	"time"

	"murmur/internal/models"

	"resty.dev/v3"
)

// Thread is the wire shape of a fetched thread: the root post plus its
// complete, unordered descendant set.
type Thread struct {
	Root    *models.Post   `json:"root"`
	Replies []*models.Post `json:"replies"`
}

// API is a typed client for the Murmur HTTP API.
type API struct {
	client *resty.Client
}

// NewAPI creates a client for the given base URL. token may be empty for
// anonymous reads.
func NewAPI(baseURL, token string) *API {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &API{client: client}
}

// Close releases the underlying transport.
func (a *API) Close() error {
	return a.client.Close()
}

func (a *API) r(ctx context.Context) *resty.Request {
	return a.client.R().WithContext(ctx).SetError(&models.ErrorResponse{})
}

// apiError converts a non-2xx response into an AppError carrying the
// server's error code, so callers can switch on it the same way services do.
func apiError(res *resty.Response) error {
	if payload, ok := res.Error().(*models.ErrorResponse); ok && payload.Error != "" {
		return &models.AppError{Code: payload.Code, Message: payload.Error}
	}
	return fmt.Errorf("unexpected status %s", res.Status())
}

// Fetch returns the thread rooted at id.
func (a *API) Fetch(ctx context.Context, id uint) (*Thread, error) {
	res, err := a.r(ctx).
		SetResult(&Thread{}).
		Get(fmt.Sprintf("/api/posts/%d/thread", id))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Result().(*Thread), nil
}

// CreatePost creates a new thread root.
func (a *API) CreatePost(ctx context.Context, content string) (*models.Post, error) {
	res, err := a.r(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&models.Post{}).
		Post("/api/posts")
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Result().(*models.Post), nil
}

// CreateReply creates a reply to parentID and returns the stored post,
// including any server-added mention prefix.
func (a *API) CreateReply(ctx context.Context, parentID uint, content string) (*models.Post, error) {
	res, err := a.r(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&models.Post{}).
		Post(fmt.Sprintf("/api/posts/%d/replies", parentID))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Result().(*models.Post), nil
}

// Edit replaces a post's content wholesale.
func (a *API) Edit(ctx context.Context, id uint, content string) (*models.Post, error) {
	res, err := a.r(ctx).
		SetBody(map[string]string{"content": content}).
		SetResult(&models.Post{}).
		Put(fmt.Sprintf("/api/posts/%d", id))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Result().(*models.Post), nil
}

// Delete removes a post and its whole subtree.
func (a *API) Delete(ctx context.Context, id uint) error {
	res, err := a.r(ctx).
		Delete(fmt.Sprintf("/api/posts/%d", id))
	if err != nil {
		return err
	}
	if res.IsError() {
		return apiError(res)
	}
	return nil
}

// Vote records the caller's vote. Counters are authoritative after the next
// fetch; the response carries the server's current view.
func (a *API) Vote(ctx context.Context, id uint, direction models.VoteDirection) (*models.Post, error) {
	res, err := a.r(ctx).
		SetBody(map[string]string{"direction": string(direction)}).
		SetResult(&models.Post{}).
		Put(fmt.Sprintf("/api/posts/%d/vote", id))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, apiError(res)
	}
	return res.Result().(*models.Post), nil
}
