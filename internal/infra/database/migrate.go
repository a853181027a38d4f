package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// RunMigrations aplica (up) ou desfaz (down) as migrations embutidas.
// Já estar na versão alvo não é erro.
func RunMigrations(dsn, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL não definido; crie um .env a partir do .env.example")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction deve ser up ou down, recebido %q", direction)
	}

	source, err := iofs.New(MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if direction == "up" {
		err = m.Up()
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
