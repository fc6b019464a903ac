package calib

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
	_ "modernc.org/sqlite"
)

// ResultStore keeps fit results and run conditions in a SQL database.
type ResultStore struct {
	db        *sqlx.DB
	verbosity int
}

// ConnectToDatabase opens a mysql or sqlite database. The environment
// overrides the configuration.
func ConnectToDatabase(c DatabaseConfig) (*ResultStore, error) {
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	var dbURI string
	switch c.Driver {
	case "mysql":
		port := c.Port
		if port == "" {
			port = "3306"
		}
		dbURI = fmt.Sprintf("%s:%s@(%s:%s)/%s?parseTime=true", c.User, c.Passwd, c.Host, port, c.DBName)
	case "sqlite":
		dbURI = c.DSN
	default:
		return nil, &ErrConfig{Option: "database.driver", Reason: fmt.Sprintf("unknown driver %q (mysql or sqlite)", c.Driver)}
	}
	db, err := sqlx.Connect(c.Driver, dbURI)
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s database: %w", c.Driver, err)
	}
	return &ResultStore{db: db}, nil
}

// NewResultStore wraps an open connection.
func NewResultStore(db *sqlx.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) SetVerbosity(v int) {
	s.verbosity = v
}

func (s *ResultStore) Close() error {
	return s.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS FitResults (
		Source VARCHAR(255) NOT NULL,
		Name VARCHAR(255) NOT NULL,
		Position INTEGER NOT NULL,
		Label VARCHAR(255) NOT NULL,
		Value DOUBLE NOT NULL,
		Error DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS RunConditions (
		Campaign VARCHAR(255) NOT NULL,
		MinRun INTEGER NOT NULL,
		MaxRun INTEGER NOT NULL,
		Particle VARCHAR(64) NOT NULL,
		Energy DOUBLE NOT NULL
	)`,
}

func (s *ResultStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}
	return nil
}

// RecordFitResults replaces the rows stored for (source, res.Name).
func (s *ResultStore) RecordFitResults(ctx context.Context, source string, res *FitResults) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	query := tx.Rebind("DELETE FROM FitResults WHERE Source = ? AND Name = ?")
	if _, err = tx.ExecContext(ctx, query, source, res.Name); err != nil {
		return fmt.Errorf("error deleting previous results: %w", err)
	}
	query = tx.Rebind("INSERT INTO FitResults (Source, Name, Position, Label, Value, Error) VALUES (?, ?, ?, ?, ?, ?)")
	for i, row := range res.Rows {
		if _, err = tx.ExecContext(ctx, query, source, res.Name, i+1, row.Label, row.Value, row.Error); err != nil {
			return fmt.Errorf("error inserting %s: %w", row.Label, err)
		}
	}
	if s.verbosity > 0 {
		logger.Info(fmt.Sprintf("Recorded %d results of %s from %s", len(res.Rows), res.Name, source), "database")
	}
	return tx.Commit()
}

func (s *ResultStore) LoadFitResults(ctx context.Context, source, name string) (*FitResults, error) {
	query := s.db.Rebind("SELECT Label, Value, Error FROM FitResults WHERE Source = ? AND Name = ? ORDER BY Position")
	if s.verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}
	res := NewFitResults(name)
	if err := s.db.SelectContext(ctx, &res.Rows, query, source, name); err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil, &ErrMissingObject{Filename: source, Name: fitResultsPrefix + name}
	}
	return res, nil
}

// RunConditions is the beam delivered during a range of runs.
type RunConditions struct {
	Campaign string  `db:"Campaign"`
	MinRun   int     `db:"MinRun"`
	MaxRun   int     `db:"MaxRun"`
	Particle string  `db:"Particle"`
	Energy   float64 `db:"Energy"`
}

func (s *ResultStore) AddRunConditions(ctx context.Context, rc RunConditions) error {
	query := s.db.Rebind("INSERT INTO RunConditions (Campaign, MinRun, MaxRun, Particle, Energy) VALUES (?, ?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, rc.Campaign, rc.MinRun, rc.MaxRun, rc.Particle, rc.Energy); err != nil {
		return fmt.Errorf("error inserting run conditions: %w", err)
	}
	return nil
}

func (s *ResultStore) RunConditionsFor(ctx context.Context, campaign string, run int) (RunConditions, error) {
	query := s.db.Rebind("SELECT Campaign, MinRun, MaxRun, Particle, Energy FROM RunConditions WHERE Campaign = ? AND MinRun <= ? AND MaxRun >= ?")
	if s.verbosity > 2 {
		logger.Info(fmt.Sprintf("Query: %s", query), "database")
	}
	var rc RunConditions
	err := s.db.GetContext(ctx, &rc, query, campaign, run, run)
	if errors.Is(err, sql.ErrNoRows) {
		return rc, fmt.Errorf("no run conditions for campaign %q run %d", campaign, run)
	}
	if err != nil {
		return rc, fmt.Errorf("error querying database: %w", err)
	}
	return rc, nil
}

// OpenStore connects when the stage needs the database and returns nil
// otherwise.
func OpenStore(ctx context.Context, c DatabaseConfig, verbosity int) (*ResultStore, error) {
	if !c.Enabled() {
		return nil, nil
	}
	store, err := ConnectToDatabase(c)
	if err != nil {
		return nil, err
	}
	store.SetVerbosity(verbosity)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, errors.Join(err, store.Close())
	}
	return store, nil
}
