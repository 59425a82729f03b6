// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"

	"murmur/internal/hashtag"
	"murmur/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers   int
	NumThreads int
	// MaxReplies bounds the number of replies generated per thread. Reply
	// parents are picked from anything already in the thread, so trees come
	// out with realistic uneven depth.
	MaxReplies  int
	ShouldClean bool
	// Seed fixes the random source so repeated runs produce the same data.
	Seed int64
}

var topics = []string{
	"go", "postgres", "redis", "homelab", "coffee", "climbing",
	"synths", "gamedev", "cycling", "sourdough",
}

// Run populates the database with users, threads, nested replies and votes.
func Run(db *gorm.DB, opts Options) error {
	if opts.NumUsers <= 0 {
		opts.NumUsers = 20
	}
	if opts.NumThreads <= 0 {
		opts.NumThreads = 10
	}
	if opts.MaxReplies <= 0 {
		opts.MaxReplies = 30
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	gofakeit.Seed(opts.Seed)

	if opts.ShouldClean {
		if err := Clean(db); err != nil {
			return err
		}
	}

	users, err := seedUsers(db, opts.NumUsers)
	if err != nil {
		return err
	}

	var postCount int
	for i := 0; i < opts.NumThreads; i++ {
		n, err := seedThread(db, rng, users, opts.MaxReplies)
		if err != nil {
			return err
		}
		postCount += n
	}

	log.Printf("Seeded %d users and %d posts across %d threads", len(users), postCount, opts.NumThreads)
	return nil
}

// Clean removes all seeded data. Votes and hashtag links go with their posts
// through the cascades; users are removed last.
func Clean(db *gorm.DB) error {
	for _, stmt := range []string{
		"DELETE FROM posts WHERE parent_post_id IS NULL",
		"DELETE FROM hashtags",
		"DELETE FROM users",
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("clean: %w", err)
		}
	}
	return nil
}

func seedUsers(db *gorm.DB, n int) ([]models.User, error) {
	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		user := models.User{
			Username:    fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), i),
			DisplayName: gofakeit.Name(),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("seed user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

func seedThread(db *gorm.DB, rng *rand.Rand, users []models.User, maxReplies int) (int, error) {
	author := users[rng.Intn(len(users))]
	root := models.Post{
		Content: postContent(rng),
		UserID:  author.ID,
	}
	if err := createPost(db, &root); err != nil {
		return 0, err
	}

	// Thread members so far; reply parents are drawn from here.
	thread := []models.Post{root}
	byID := map[uint]models.User{root.ID: author}

	numReplies := rng.Intn(maxReplies + 1)
	for i := 0; i < numReplies; i++ {
		parent := thread[rng.Intn(len(thread))]
		replier := users[rng.Intn(len(users))]

		content := postContent(rng)
		var replyTo *uint
		if parent.ParentPostID != nil {
			// Match production behavior for nested replies: mention the
			// parent's author and record the attribution.
			content = "@" + byID[parent.ID].Username + " " + content
			uid := parent.UserID
			replyTo = &uid
		}

		pid := parent.ID
		reply := models.Post{
			Content:       content,
			UserID:        replier.ID,
			ParentPostID:  &pid,
			ReplyToUserID: replyTo,
		}
		if err := createPost(db, &reply); err != nil {
			return 0, err
		}
		thread = append(thread, reply)
		byID[reply.ID] = replier
	}

	if err := seedVotes(db, rng, users, thread); err != nil {
		return 0, err
	}
	return len(thread), nil
}

func createPost(db *gorm.DB, post *models.Post) error {
	if err := db.Create(post).Error; err != nil {
		return fmt.Errorf("seed post: %w", err)
	}
	for _, tag := range hashtag.Extract(post.Content) {
		var ht models.Hashtag
		if err := db.Where(models.Hashtag{Tag: tag}).FirstOrCreate(&ht).Error; err != nil {
			return fmt.Errorf("seed hashtag: %w", err)
		}
		link := models.PostHashtag{PostID: post.ID, HashtagID: ht.ID}
		if err := db.Create(&link).Error; err != nil {
			return fmt.Errorf("seed hashtag link: %w", err)
		}
	}
	return nil
}

func seedVotes(db *gorm.DB, rng *rand.Rand, users []models.User, posts []models.Post) error {
	for _, post := range posts {
		for _, user := range users {
			roll := rng.Float64()
			var direction models.VoteDirection
			switch {
			case roll < 0.25:
				direction = models.VoteUp
			case roll < 0.32:
				direction = models.VoteDown
			default:
				continue
			}
			vote := models.Vote{UserID: user.ID, PostID: post.ID, Direction: direction}
			if err := db.Create(&vote).Error; err != nil {
				return fmt.Errorf("seed vote: %w", err)
			}
		}
		// Counters are always the counted totals, same as the vote path.
		err := db.Exec(
			`UPDATE posts SET
				upvotes   = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.direction = 'up'),
				downvotes = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.direction = 'down')
			 WHERE id = ?`, post.ID,
		).Error
		if err != nil {
			return fmt.Errorf("seed vote counts: %w", err)
		}
	}
	return nil
}

func postContent(rng *rand.Rand) string {
	content := gofakeit.Sentence(4 + rng.Intn(10))
	if rng.Float64() < 0.4 {
		content += " #" + topics[rng.Intn(len(topics))]
	}
	if len(content) > models.MaxPostLen {
		content = content[:models.MaxPostLen]
	}
	return content
}
