package models

import (
	"time"
	"unicode/utf8"
)

// MaxPostLen is the maximum post length in Unicode scalar values.
const MaxPostLen = 280

// Post represents a message in the Murmur application. A post with a nil
// ParentPostID is a thread root; any other post is a reply participating in
// exactly one tree. The parent link is a plain id reference, never an
// embedded struct, so reply trees are reconstructed in memory rather than
// loaded recursively through associations.
type Post struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Content string `gorm:"type:varchar(280);not null" json:"content"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user"`

	// ParentPostID is nil for thread roots. The self-FK cascades on delete:
	// removing any post removes its entire subtree server-side.
	ParentPostID *uint `gorm:"index" json:"parent_post_id,omitempty"`
	ParentPost   *Post `gorm:"foreignKey:ParentPostID;constraint:OnDelete:CASCADE" json:"-"`

	// ReplyToUserID is the attribution target for nested replies. Set null
	// when the referenced user is deleted.
	ReplyToUserID *uint `gorm:"index" json:"reply_to_user_id,omitempty"`
	ReplyToUser   *User `gorm:"foreignKey:ReplyToUserID;constraint:OnDelete:SET NULL" json:"reply_to_user,omitempty"`

	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`

	// RepliesCount is not persisted; computed at query time
	RepliesCount int `gorm:"->" json:"replies_count"`
	// ViewerVote is the requesting user's own vote ("up"/"down"), computed per request
	ViewerVote *string `gorm:"->" json:"viewer_vote,omitempty"`

	// Hashtags is populated out-of-band by the hashtag collaborator.
	Hashtags []string `gorm:"-" json:"hashtags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the post is the top of a discussion tree.
func (p *Post) IsRoot() bool {
	return p.ParentPostID == nil
}

// ValidateContent checks the content rule shared by create and edit. Length
// is counted in Unicode scalar values, not bytes; the database enforces the
// same bound as a last line of defense.
func ValidateContent(content string) error {
	if content == "" {
		return NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > MaxPostLen {
		return NewValidationError("Content exceeds 280 characters")
	}
	return nil
}
