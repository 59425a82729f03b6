package models

import "time"

// VoteDirection is the direction of a user's vote on a post.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Valid reports whether the direction is one of the two allowed values.
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Vote records a single user's vote on a single post. The composite primary
// key gives one vote per (user, post) pair; a repeated vote replaces the
// direction, it never accumulates.
type Vote struct {
	UserID    uint          `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint          `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Post      Post          `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Direction VoteDirection `gorm:"type:varchar(4);not null" json:"direction"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
