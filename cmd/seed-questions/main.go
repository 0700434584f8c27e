package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/logger"
)

// seed-questions fills the question directory tables with placeholder
// questions for local development. Production questions come from the
// question directory service.
func main() {
	var (
		perCategory int
		rolesFlag   string
	)
	flag.IntVar(&perCategory, "per-category", 15, "Questions to create per category and role")
	flag.StringVar(&rolesFlag, "roles", "1,2,3", "Comma-separated role IDs to bind the questions to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	roles, err := parseRoles(rolesFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid -roles")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	fmt.Printf("=== Seeding %d questions per category for roles %v ===\n", perCategory, roles)

	batch := &pgx.Batch{}
	for _, roleID := range roles {
		for _, category := range cfg.CategoryOrder {
			for i := 1; i <= perCategory; i++ {
				id := uuid.New()
				text := fmt.Sprintf("[%s] Role %d practice question #%d", category, roleID, i)
				options := []string{"Option A", "Option B", "Option C", "Option D"}

				batch.Queue(
					`INSERT INTO questions (id, question_text, options, correct_option, category)
					 VALUES ($1, $2, $3::jsonb, $4, $5)`,
					id, text, options, i%len(options), string(category),
				)
				batch.Queue(
					`INSERT INTO question_roles (question_id, role_id) VALUES ($1, $2)`,
					id, roleID,
				)
			}
		}
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed questions")
	}

	total := perCategory * len(cfg.CategoryOrder) * len(roles)
	fmt.Printf("\nSeed completed! Added %d questions across %d categories.\n", total, len(cfg.CategoryOrder))
}

func parseRoles(raw string) ([]int, error) {
	var roles []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid role id %q", part)
		}
		roles = append(roles, id)
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("no roles given")
	}
	return roles, nil
}
