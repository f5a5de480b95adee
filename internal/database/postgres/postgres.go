package postgres

import (
	"fmt"
	"log"
	"os"

	"satellite-service/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens and pings the service database.
func Connect(cfg config.PostgresConfig) (*sqlx.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ExecSchema applies schema.sql if present. Bootstrap failures are logged
// rather than fatal so a manually managed schema keeps working.
func ExecSchema(db *sqlx.DB, path string) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("schema file %s not found, skipping bootstrap", path)
			return nil
		}
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	log.Printf("schema applied from %s", path)
	return nil
}
