package client

import (
	"murmur/internal/models"
)

// Entry is the ledger's per-post state: the public counters as last known to
// this client and the viewer's own vote. It reflects only the viewer's
// actions; other viewers' votes only show up after a full re-fetch.
type Entry struct {
	Upvotes   int
	Downvotes int
	Vote      *models.VoteDirection
}

// Ledger applies votes optimistically and can restore the exact pre-vote
// state when the confirmation request fails. Rollback is always a full
// snapshot restore, never a delta correction.
type Ledger struct {
	entries   map[uint]Entry
	snapshots map[uint]Entry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries:   make(map[uint]Entry),
		snapshots: make(map[uint]Entry),
	}
}

// Track seeds (or reseeds) the entry for a post from fetched server state.
func (l *Ledger) Track(post *models.Post) {
	var vote *models.VoteDirection
	if post.ViewerVote != nil {
		d := models.VoteDirection(*post.ViewerVote)
		vote = &d
	}
	l.entries[post.ID] = Entry{
		Upvotes:   post.Upvotes,
		Downvotes: post.Downvotes,
		Vote:      vote,
	}
	delete(l.snapshots, post.ID)
}

// Entry returns the current state for a post.
func (l *Ledger) Entry(postID uint) (Entry, bool) {
	e, ok := l.entries[postID]
	return e, ok
}

// Apply records the vote locally and returns true when a confirmation
// request should be issued. Voting the same direction again is the
// idempotent re-vote guard: no state change, no network call.
func (l *Ledger) Apply(postID uint, direction models.VoteDirection) bool {
	entry := l.entries[postID]
	if entry.Vote != nil && *entry.Vote == direction {
		return false
	}

	// Full pre-update snapshot; restored bit-for-bit on failure.
	l.snapshots[postID] = entry

	if entry.Vote != nil {
		// Switching direction: the old counter gives one back.
		switch *entry.Vote {
		case models.VoteUp:
			entry.Upvotes--
		case models.VoteDown:
			entry.Downvotes--
		}
	}
	switch direction {
	case models.VoteUp:
		entry.Upvotes++
	case models.VoteDown:
		entry.Downvotes++
	}
	d := direction
	entry.Vote = &d
	l.entries[postID] = entry
	return true
}

// Confirm drops the snapshot after a successful confirmation; the local
// state is already correct.
func (l *Ledger) Confirm(postID uint) {
	delete(l.snapshots, postID)
}

// Rollback restores the exact snapshot taken by the last Apply. The error
// stays recoverable: the user can simply vote again.
func (l *Ledger) Rollback(postID uint) {
	snapshot, ok := l.snapshots[postID]
	if !ok {
		return
	}
	l.entries[postID] = snapshot
	delete(l.snapshots, postID)
}

// WriteBack copies the entry's state onto the post for display.
func (l *Ledger) WriteBack(post *models.Post) {
	entry, ok := l.entries[post.ID]
	if !ok {
		return
	}
	post.Upvotes = entry.Upvotes
	post.Downvotes = entry.Downvotes
	if entry.Vote != nil {
		s := string(*entry.Vote)
		post.ViewerVote = &s
	} else {
		post.ViewerVote = nil
	}
}
