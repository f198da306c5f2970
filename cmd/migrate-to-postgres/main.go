// migrate-to-postgres copies stored solutions from SQLite to PostgreSQL.
//
// Usage:
//
//	go run ./cmd/migrate-to-postgres \
//	    -sqlite data/solutions.db \
//	    -pg-host localhost \
//	    -pg-port 5432 \
//	    -pg-user tilecollapse \
//	    -pg-password tilecollapse \
//	    -pg-database tilecollapse
package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/lawnchairsociety/tilecollapse/internal/store"
)

func main() {
	_ = godotenv.Load()

	sqlitePath := flag.String("sqlite", "data/solutions.db", "Path to SQLite database")
	pgHost := flag.String("pg-host", envOr("TILECOLLAPSE_PG_HOST", "localhost"), "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", envOr("TILECOLLAPSE_PG_USER", "tilecollapse"), "PostgreSQL user")
	pgPassword := flag.String("pg-password", os.Getenv("TILECOLLAPSE_PG_PASSWORD"), "PostgreSQL password")
	pgDatabase := flag.String("pg-database", envOr("TILECOLLAPSE_PG_DATABASE", "tilecollapse"), "PostgreSQL database name")
	pgSSLMode := flag.String("pg-sslmode", "disable", "PostgreSQL SSL mode")
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()

	log.Println("SQLite to PostgreSQL Migration Tool")
	log.Println("====================================")

	if _, err := os.Stat(*sqlitePath); err != nil {
		log.Fatalf("SQLite database not found: %v", err)
	}

	log.Printf("Opening SQLite database: %s", *sqlitePath)
	src, err := store.Open(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to open SQLite database: %v", err)
	}
	defer src.Close()

	ids, err := src.SolutionIDs()
	if err != nil {
		log.Fatalf("Failed to read solutions: %v", err)
	}
	log.Printf("Found %d solutions", len(ids))

	if *dryRun {
		log.Println("DRY RUN MODE - No changes will be made")
		for _, id := range ids {
			saved, err := src.GetSolution(id)
			if err != nil {
				log.Fatalf("Failed to read solution %d: %v", id, err)
			}
			log.Printf("  would migrate %d %q (%s %dx%d)", saved.ID, saved.Name,
				saved.Snapshot.RuleSet, saved.Snapshot.Width, saved.Snapshot.Height)
		}
		return
	}

	pgCfg := store.DefaultPostgresConfig()
	pgCfg.Host = *pgHost
	pgCfg.Port = *pgPort
	pgCfg.User = *pgUser
	pgCfg.Password = *pgPassword
	pgCfg.Database = *pgDatabase
	pgCfg.SSLMode = *pgSSLMode

	// Opening runs the schema migrations on the target
	log.Printf("Opening PostgreSQL database: %s@%s:%d/%s", *pgUser, *pgHost, *pgPort, *pgDatabase)
	dst, err := store.OpenWithConfig(store.Config{Driver: "postgres", Postgres: pgCfg})
	if err != nil {
		log.Fatalf("Failed to open PostgreSQL database: %v", err)
	}
	defer dst.Close()

	var migrated, skipped int
	for _, id := range ids {
		saved, err := src.GetSolution(id)
		if err != nil {
			log.Fatalf("Failed to read solution %d: %v", id, err)
		}

		newID, err := dst.ImportSolution(saved)
		if err != nil {
			if errors.Is(err, store.ErrNameTaken) {
				// Already migrated by an earlier run
				log.Printf("  skipping %d: name %q already exists", id, saved.Name)
				skipped++
				continue
			}
			log.Fatalf("Failed to migrate solution %d: %v", id, err)
		}
		log.Printf("  %d -> %d", id, newID)
		migrated++
	}

	log.Println("====================================")
	log.Printf("Migration complete! Migrated %d, skipped %d", migrated, skipped)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
