package database

import (
	"fmt"
	"log/slog"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for the threading schema and installs the
// constraints GORM tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Post{},
		&models.Vote{},
		&models.Hashtag{},
		&models.PostHashtag{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Last line of defense for the content rule; services validate first.
	// char_length counts Unicode scalar values, matching the client-side rune count.
	constraints := []string{
		`ALTER TABLE posts DROP CONSTRAINT IF EXISTS chk_posts_content_len`,
		`ALTER TABLE posts ADD CONSTRAINT chk_posts_content_len CHECK (char_length(content) BETWEEN 1 AND 280)`,
		`ALTER TABLE votes DROP CONSTRAINT IF EXISTS chk_votes_direction`,
		`ALTER TABLE votes ADD CONSTRAINT chk_votes_direction CHECK (direction IN ('up', 'down'))`,
	}
	for _, stmt := range constraints {
		if err := db.Exec(stmt).Error; err != nil {
			middleware.Logger.Warn("Failed to install constraint (ignoring if already present)",
				slog.String("stmt", stmt), slog.String("error", err.Error()))
		}
	}

	return nil
}
