package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/bookowl/botross/pkg/logger"
)

type dialect struct {
	driver      string
	createTable string
	insert      string
}

var (
	postgresDialect = dialect{
		driver: "pgx",
		createTable: `CREATE TABLE IF NOT EXISTS config (
			id               SERIAL PRIMARY KEY,
			delete_pin_confs BOOL
		)`,
		insert: "INSERT INTO config (delete_pin_confs) VALUES ($1)",
	}
	sqliteDialect = dialect{
		driver: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS config (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			delete_pin_confs BOOLEAN
		)`,
		insert: "INSERT INTO config (delete_pin_confs) VALUES (?)",
	}
)

// SQLStore keeps Settings as the only row of a "config" table. Each Load
// and Save opens its own connection and closes it before returning.
//
// postgres:// and postgresql:// URLs go through pgx; the connection is
// first attempted with TLS required and retried without TLS if that fails,
// unless the URL already names an sslmode. sqlite:// and file: URLs go
// through modernc sqlite.
type SQLStore struct {
	dialect dialect
	dsns    []string
}

// NewSQLStore validates databaseURL and prepares the connection attempts.
// No connection is made until Load or Save.
func NewSQLStore(databaseURL string) (*SQLStore, error) {
	raw := strings.TrimSpace(databaseURL)
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		dsns, err := postgresAttempts(raw)
		if err != nil {
			return nil, err
		}
		return &SQLStore{dialect: postgresDialect, dsns: dsns}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return &SQLStore{dialect: sqliteDialect, dsns: []string{strings.TrimPrefix(raw, "sqlite://")}}, nil
	case strings.HasPrefix(raw, "file:"):
		return &SQLStore{dialect: sqliteDialect, dsns: []string{raw}}, nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme in %q", redactedScheme(raw))
	}
}

func postgresAttempts(raw string) ([]string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	if q.Get("sslmode") != "" {
		return []string{raw}, nil
	}

	attempts := make([]string, 0, 2)
	for _, mode := range []string{"require", "disable"} {
		q.Set("sslmode", mode)
		u.RawQuery = q.Encode()
		attempts = append(attempts, u.String())
	}
	return attempts, nil
}

func redactedScheme(raw string) string {
	if i := strings.Index(raw, ":"); i >= 0 {
		return raw[:i]
	}
	return "<none>"
}

func (s *SQLStore) connect(ctx context.Context) (*sql.DB, error) {
	var errs []error
	for i, dsn := range s.dsns {
		db, err := sql.Open(s.dialect.driver, dsn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		db.SetMaxOpenConns(1)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			errs = append(errs, err)
			if i+1 < len(s.dsns) {
				logger.WarnCF("state", "Encrypted database connection failed, retrying without TLS", map[string]any{
					"error": err.Error(),
				})
			}
			continue
		}
		return db, nil
	}
	return nil, fmt.Errorf("failed to connect to database: %w", errors.Join(errs...))
}

func (s *SQLStore) ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("failed to create config table: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context) (Settings, error) {
	db, err := s.connect(ctx)
	if err != nil {
		return Settings{}, err
	}
	defer db.Close()

	if err := s.ensureSchema(ctx, db); err != nil {
		return Settings{}, err
	}

	var v bool
	err = db.QueryRowContext(ctx, "SELECT delete_pin_confs FROM config ORDER BY id LIMIT 1").Scan(&v)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		def := DefaultSettings()
		if _, err := db.ExecContext(ctx, s.dialect.insert, def.DeletePinConfirmations); err != nil {
			return Settings{}, fmt.Errorf("failed to insert default settings: %w", err)
		}
		logger.InfoC("state", "No stored settings, initialised defaults")
		return def, nil
	case err != nil:
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	return Settings{DeletePinConfirmations: v}, nil
}

func (s *SQLStore) Save(ctx context.Context, settings Settings) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := s.ensureSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM config"); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.dialect.insert, settings.DeletePinConfirmations); err != nil {
		return fmt.Errorf("failed to insert settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}
