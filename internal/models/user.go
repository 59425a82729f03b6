// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents an account in the Murmur application. Credentials and
// session issuance live in the external auth service; this row only carries
// what the threading engine needs for attribution.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"unique;not null" json:"username"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Posts       []Post    `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}
