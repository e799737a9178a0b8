package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/todmy/visa-advisor/internal/storage"
)

var (
	seedDatabaseURL string
	seedOverwrite   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the rule set into the database",
	Long: `Load the rule set into the rules table.

Existing rules with the same name are skipped unless --overwrite
is given, in which case they are replaced in place.

Examples:
  rulectl seed
  rulectl seed --visa-type E --overwrite
  rulectl seed --file rules.yaml`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedDatabaseURL, "database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	seedCmd.Flags().BoolVar(&seedOverwrite, "overwrite", false, "Replace rules that already exist")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	defs, err := loadDefinitions()
	if err != nil {
		return err
	}

	dbURL := seedDatabaseURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return errors.New("no database URL: set --database-url or DATABASE_URL")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	repo := storage.NewPostgresRuleRepository(db)
	ctx := cmd.Context()

	created, updated, skipped := 0, 0, 0
	for _, def := range defs {
		existing, err := repo.GetByName(ctx, def.Name)
		if err != nil && !errors.Is(err, storage.ErrRuleNotFound) {
			return err
		}

		if existing != nil {
			if !seedOverwrite {
				skipped++
				continue
			}
			record := storage.RecordFromDefinition(def)
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			if err := repo.Update(ctx, record); err != nil {
				return fmt.Errorf("failed to update rule %s: %w", def.Name, err)
			}
			updated++
			continue
		}

		if err := repo.Create(ctx, storage.RecordFromDefinition(def)); err != nil {
			return fmt.Errorf("failed to create rule %s: %w", def.Name, err)
		}
		created++
	}

	fmt.Printf("Seeded %d rules: %d created, %d updated, %d skipped\n",
		len(defs), created, updated, skipped)
	return nil
}
