// Command seed populates the database with demo users, threads and votes.
package main

import (
	"flag"
	"log"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	users := flag.Int("users", 20, "number of users to create")
	threads := flag.Int("threads", 10, "number of threads to create")
	replies := flag.Int("replies", 30, "maximum replies per thread")
	clean := flag.Bool("clean", false, "delete existing data first")
	randSeed := flag.Int64("seed", 1, "random seed for reproducible data")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	err = seed.Run(db, seed.Options{
		NumUsers:    *users,
		NumThreads:  *threads,
		MaxReplies:  *replies,
		ShouldClean: *clean,
		Seed:        *randSeed,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
