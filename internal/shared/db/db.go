package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// ConnectPostgres abre e valida a conexão com o Postgres.
func ConnectPostgres(dsn string) (*sql.DB, error) {
	pg, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pg, nil
}
