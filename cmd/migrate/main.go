package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/quizbattle/quizbattle-api/internal/config"
)

// Утилита для ручного управления миграциями: up, down <n>, force <version>.
// Сервер применяет миграции сам при старте; эта команда нужна для отката
// и починки dirty-состояния.
func main() {
	sourcePath := flag.String("source", "file://migrations", "migrations source URL")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[Migrate] Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("[Migrate] Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("[Migrate] Failed to ping database: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("[Migrate] Failed to create migrate driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance(*sourcePath, "postgres", driver)
	if err != nil {
		log.Fatalf("[Migrate] Failed to create migrate instance: %v", err)
	}

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			if _, scanErr := fmt.Sscanf(args[1], "%d", &steps); scanErr != nil {
				usage()
			}
		}
		err = m.Steps(-steps)
	case "force":
		if len(args) < 2 {
			usage()
		}
		version := 0
		if _, scanErr := fmt.Sscanf(args[1], "%d", &version); scanErr != nil {
			usage()
		}
		err = m.Force(version)
	case "version":
		version, dirty, vErr := m.Version()
		if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
			log.Fatalf("[Migrate] Failed to read version: %v", vErr)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return
	default:
		usage()
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("[Migrate] Command %q failed: %v", args[0], err)
	}
	log.Printf("[Migrate] Command %q completed", args[0])
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: migrate [-source URL] up | down [n] | force <version> | version")
	os.Exit(2)
}
