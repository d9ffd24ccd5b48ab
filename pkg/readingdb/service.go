// ReadingDB holds the readings logged from the meter.
// It is written by ut61e_logger and read by reading_summary.
package readingdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/NotCoffee418/dbmigrator"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Open connects to the database at path, creating and migrating it as needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(
		db,
		migrationFS,
		"migrations",
	)
	if err := checkSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logrus.WithField("path", path).Debug("Reading database ready")
	return &Store{db: db}, nil
}

// checkSchema fails when the migrations did not leave a readings table.
func checkSchema(db *sql.DB) error {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'readings'",
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSchemaMissing
	}
	return err
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
