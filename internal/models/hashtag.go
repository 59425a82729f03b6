package models

import "time"

// Hashtag is a normalized tag. Extraction and follow-graph features live in
// the external hashtag service; the threading engine only owns the links so
// they can be recomputed wholesale on edit and dropped on cascade delete.
type Hashtag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Tag       string    `gorm:"unique;not null" json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

// PostHashtag links a post to a hashtag. Links are never diffed: an edit
// deletes every link for the post and re-inserts from the new content.
type PostHashtag struct {
	PostID    uint    `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	Post      Post    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	HashtagID uint    `gorm:"primaryKey;autoIncrement:false" json:"hashtag_id"`
	Hashtag   Hashtag `gorm:"foreignKey:HashtagID;constraint:OnDelete:CASCADE" json:"-"`
}
