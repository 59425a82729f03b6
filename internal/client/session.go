package client

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/thread"
)

// Session drives one open thread view. All state (tree, expansion,
// selection, ledger) is mutated exclusively by the goroutine running Run,
// which drains the effects channel; network calls are dispatched as
// independent goroutines whose results are delivered back as effects and
// applied by fully recomputing the assemble/project pipeline, never by
// incremental patching.
type Session struct {
	api    *API
	rootID uint
	view   *thread.View
	ledger *Ledger

	effects chan func()
	// done is closed at teardown so in-flight workers blocked on a full
	// effects channel can abandon their results instead of leaking.
	done chan struct{}

	// generation guards against late-arriving responses: a result from a
	// dispatch that predates a teardown is silently dropped rather than
	// applied against stale state. In-flight requests are never cancelled.
	generation uint64
	closed     bool

	onChange func()
	onError  func(error)
	onClosed func()
}

// SessionOption customizes a session.
type SessionOption func(*Session)

// OnChange registers a hook invoked after every visible-state change.
func OnChange(fn func()) SessionOption {
	return func(s *Session) { s.onChange = fn }
}

// OnError registers a hook for recoverable failures (a failed vote
// confirmation, create or delete). The view stays consistent; the user can
// retry.
func OnError(fn func(error)) SessionOption {
	return func(s *Session) { s.onError = fn }
}

// OnClosed registers a hook invoked when the session tears down, e.g. after
// the thread root was deleted. The caller returns to whatever view was
// active before the thread opened.
func OnClosed(fn func()) SessionOption {
	return func(s *Session) { s.onClosed = fn }
}

// OpenSession fetches the thread and builds the initial view state.
func OpenSession(ctx context.Context, api *API, rootID uint, opts ...SessionOption) (*Session, error) {
	th, err := api.Fetch(ctx, rootID)
	if err != nil {
		return nil, err
	}

	s := &Session{
		api:      api,
		rootID:   rootID,
		effects:  make(chan func(), 16),
		done:     make(chan struct{}),
		ledger:   NewLedger(),
		onChange: func() {},
		onError:  func(error) {},
		onClosed: func() {},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.view = thread.Open(th.Root, th.Replies)
	s.trackAll(th)
	return s, nil
}

// Run processes effects until the context ends. Everything that touches
// session state runs here.
func (s *Session) Run(ctx context.Context) {
	for {
		select {
		case fn := <-s.effects:
			fn()
		case <-ctx.Done():
			s.teardown()
			return
		}
	}
}

// Do enqueues fn onto the session goroutine. All public mutating methods
// below must be called through Do (or from within an effect).
func (s *Session) Do(fn func()) {
	s.effects <- fn
}

// View returns the view for rendering. Only safe from the session goroutine.
func (s *Session) View() *thread.View {
	return s.view
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	return s.closed
}

// MoveDown moves the selection one visible row down.
func (s *Session) MoveDown() {
	s.view.MoveDown()
	s.onChange()
}

// MoveUp moves the selection one visible row up.
func (s *Session) MoveUp() {
	s.view.MoveUp()
	s.onChange()
}

// ToggleSelected flips the expansion of the selected node.
func (s *Session) ToggleSelected() {
	s.view.ToggleSelected()
	s.onChange()
}

// Vote applies the vote optimistically and confirms it asynchronously. A
// repeat of the current direction is a no-op with no network call. On
// confirmation failure the exact pre-vote state is restored and the error
// surfaced; it is never fatal.
func (s *Session) Vote(ctx context.Context, direction models.VoteDirection) {
	id, ok := s.view.SelectedID()
	if !ok {
		return
	}
	node := s.view.Tree().Node(id)
	if _, tracked := s.ledger.Entry(id); !tracked {
		s.ledger.Track(node.Post)
	}

	if !s.ledger.Apply(id, direction) {
		return
	}
	s.ledger.WriteBack(node.Post)
	s.onChange()

	s.dispatch(func() func() {
		_, err := s.api.Vote(ctx, id, direction)
		return func() {
			if err != nil {
				s.ledger.Rollback(id)
				if n := s.view.Tree().Node(id); n != nil {
					s.ledger.WriteBack(n.Post)
				}
				s.onChange()
				s.onError(err)
				return
			}
			s.ledger.Confirm(id)
		}
	})
}

// Reply creates a reply to the selected post. On success the thread is
// re-fetched, every ancestor of the new reply is expanded so it is visible,
// and the selection jumps to it. On failure the view is left untouched.
func (s *Session) Reply(ctx context.Context, content string) {
	targetID, ok := s.view.SelectedID()
	if !ok {
		return
	}

	s.dispatch(func() func() {
		created, err := s.api.CreateReply(ctx, targetID, content)
		if err != nil {
			return func() { s.onError(err) }
		}
		th, err := s.api.Fetch(ctx, s.rootID)
		if err != nil {
			return func() { s.onError(err) }
		}
		return func() {
			s.applyThread(th)
			s.view.RevealReply(created.ID)
			s.onChange()
		}
	})
}

// EditSelected replaces the selected post's content wholesale.
func (s *Session) EditSelected(ctx context.Context, content string) {
	id, ok := s.view.SelectedID()
	if !ok {
		return
	}

	s.dispatch(func() func() {
		if _, err := s.api.Edit(ctx, id, content); err != nil {
			return func() { s.onError(err) }
		}
		th, err := s.api.Fetch(ctx, s.rootID)
		if err != nil {
			return func() { s.onError(err) }
		}
		return func() {
			s.applyThread(th)
			s.onChange()
		}
	})
}

// DeleteSelected deletes the selected post and its whole subtree. Deleting
// the root tears the session down; otherwise the sequence is recomputed and
// the previous numeric selection clamps onto whatever now occupies it.
func (s *Session) DeleteSelected(ctx context.Context) {
	id, ok := s.view.SelectedID()
	if !ok {
		return
	}

	if id == s.rootID {
		s.dispatch(func() func() {
			if err := s.api.Delete(ctx, id); err != nil {
				return func() { s.onError(err) }
			}
			return func() { s.teardown() }
		})
		return
	}

	s.dispatch(func() func() {
		if err := s.api.Delete(ctx, id); err != nil {
			return func() { s.onError(err) }
		}
		th, err := s.api.Fetch(ctx, s.rootID)
		if err != nil {
			return func() { s.onError(err) }
		}
		return func() {
			s.applyThread(th)
			s.onChange()
		}
	})
}

// Refresh re-fetches the thread; this is the only way other viewers' edits
// and votes become visible.
func (s *Session) Refresh(ctx context.Context) {
	s.dispatch(func() func() {
		th, err := s.api.Fetch(ctx, s.rootID)
		if err != nil {
			return func() { s.onError(err) }
		}
		return func() {
			s.applyThread(th)
			s.onChange()
		}
	})
}

// Close tears the session down explicitly.
func (s *Session) Close() {
	s.teardown()
}

// dispatch runs work on its own goroutine and funnels the resulting apply
// closure back through the effects channel. The closure is dropped when the
// session was closed in the meantime; once nothing drains the channel the
// done case lets the worker exit rather than block on a full buffer.
func (s *Session) dispatch(work func() func()) {
	gen := s.generation
	go func() {
		apply := work()
		select {
		case s.effects <- func() {
			if s.closed || gen != s.generation {
				return
			}
			if apply != nil {
				apply()
			}
		}:
		case <-s.done:
		}
	}()
}

// applyThread replaces all derived state from a fresh fetch. Fetched posts
// are authoritative, so the ledger reseeds from them.
func (s *Session) applyThread(th *Thread) {
	s.view.Reload(th.Root, th.Replies)
	s.trackAll(th)
}

func (s *Session) trackAll(th *Thread) {
	s.ledger.Track(th.Root)
	for _, p := range th.Replies {
		s.ledger.Track(p)
	}
}

func (s *Session) teardown() {
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	close(s.done)
	s.onClosed()
}
