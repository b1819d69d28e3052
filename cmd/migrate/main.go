// Package main applies schema migrations for the fund ledger stores:
// the Postgres journal/lot history and the ClickHouse decode archive.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fund-ledger/internal/config"
	"github.com/fund-ledger/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Target store: postgres, clickhouse")
		path   = flag.String("path", "", "Migrations directory (defaults to migrations/<db>)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dir := *path
	if dir == "" {
		dir = "migrations/" + *dbType
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Fatalf("Migrations directory not found: %s", dir)
	}

	switch *dbType {
	case "postgres":
		err = migratePostgres(cfg, *action, dir)
	case "clickhouse":
		err = migrateClickHouse(cfg, *action, dir)
	default:
		err = fmt.Errorf("unknown store: %s", *dbType)
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func migratePostgres(cfg *config.Config, action, dir string) error {
	pg := cfg.Database.Postgres
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pg.User, pg.Password, pg.Host, pg.Port, pg.Database,
	)

	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, dir); err != nil {
			return err
		}
		log.Println("Postgres migrations applied")
		return nil
	case "down":
		if err := storage.RollbackMigrations(databaseURL, dir); err != nil {
			return err
		}
		log.Println("Postgres migration rolled back")
		return nil
	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, dir)
		if err != nil {
			return err
		}
		log.Printf("Postgres schema version: %d (dirty: %v)", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

// migrateClickHouse applies the archive DDL. The archive is append-only
// so there is no rollback path.
func migrateClickHouse(cfg *config.Config, action, dir string) error {
	if action != "up" {
		return fmt.Errorf("clickhouse migrations support only the up action")
	}

	db, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing ClickHouse connection: %v", err)
		}
	}()

	if err := storage.RunClickHouseMigrations(db, dir); err != nil {
		return err
	}
	log.Println("ClickHouse migrations applied")
	return nil
}
