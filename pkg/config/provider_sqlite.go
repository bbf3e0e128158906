package config

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/chrissnell/echomap/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationTable tracks the schema version of a configuration database.
const MigrationTable = "config_migrations"

// ErrNoConfig is returned when the database holds no stored configuration.
var ErrNoConfig = errors.New("no configuration stored in database")

const defaultConfigName = "default"

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, Migrations(), nil)
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Migrations returns the embedded configuration schema migrations.
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", MigrationTable)
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	var configID int64
	err := s.db.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&configID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query configs: %w", err)
	}

	cfg := &ConfigData{}
	if err := s.loadDataset(configID, &cfg.Dataset); err != nil {
		return nil, fmt.Errorf("failed to load dataset config: %w", err)
	}
	if err := s.loadREST(configID, &cfg.REST); err != nil {
		return nil, fmt.Errorf("failed to load rest config: %w", err)
	}
	if err := s.loadRender(configID, &cfg.Render); err != nil {
		return nil, fmt.Errorf("failed to load render config: %w", err)
	}
	if err := s.loadQuery(configID, &cfg.Query); err != nil {
		return nil, fmt.Errorf("failed to load query config: %w", err)
	}
	return cfg, nil
}

// A missing section row leaves the section at its zero value so that
// ApplyDefaults fills it.
func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *SQLiteProvider) loadDataset(configID int64, d *DatasetData) error {
	return noRows(s.db.QueryRow(`
		SELECT path, warm_on_start, warm_retries
		FROM dataset_configs WHERE config_id = ?`, configID).
		Scan(&d.Path, &d.WarmOnStart, &d.WarmRetries))
}

func (s *SQLiteProvider) loadREST(configID int64, r *RESTServerData) error {
	var cert, key, listenAddr, readTimeout, writeTimeout, assetsDir sql.NullString
	var port sql.NullInt64
	err := s.db.QueryRow(`
		SELECT tls_cert, tls_key, port, listen_addr, read_timeout, write_timeout, assets_dir
		FROM rest_configs WHERE config_id = ?`, configID).
		Scan(&cert, &key, &port, &listenAddr, &readTimeout, &writeTimeout, &assetsDir)
	if err != nil {
		return noRows(err)
	}
	r.Cert = cert.String
	r.Key = key.String
	r.Port = int(port.Int64)
	r.ListenAddr = listenAddr.String
	r.ReadTimeout = readTimeout.String
	r.WriteTimeout = writeTimeout.String
	r.AssetsDir = assetsDir.String
	return nil
}

func (s *SQLiteProvider) loadRender(configID int64, r *RenderData) error {
	var outputDir sql.NullString
	var workers, memoryEntries, width, height sql.NullInt64
	var vmin, vmax sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT output_dir, workers, memory_entries, default_vmin, default_vmax, width, height
		FROM render_configs WHERE config_id = ?`, configID).
		Scan(&outputDir, &workers, &memoryEntries, &vmin, &vmax, &width, &height)
	if err != nil {
		return noRows(err)
	}
	r.OutputDir = outputDir.String
	r.Workers = int(workers.Int64)
	r.MemoryEntries = int(memoryEntries.Int64)
	r.DefaultVMin = vmin.Float64
	r.DefaultVMax = vmax.Float64
	r.Width = int(width.Int64)
	r.Height = int(height.Int64)
	return nil
}

func (s *SQLiteProvider) loadQuery(configID int64, q *QueryData) error {
	var cacheEntries sql.NullInt64
	err := s.db.QueryRow(`SELECT cache_entries FROM query_configs WHERE config_id = ?`, configID).Scan(&cacheEntries)
	if err != nil {
		return noRows(err)
	}
	q.CacheEntries = int(cacheEntries.Int64)
	return nil
}

// IsReadOnly returns false since SQLite supports read/write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration in a single transaction
func (s *SQLiteProvider) SaveConfig(cfg *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"dataset_configs", "rest_configs", "render_configs", "query_configs"} {
		q := `DELETE FROM ` + table + ` WHERE config_id IN (SELECT id FROM configs WHERE name = ?)`
		if _, err := tx.Exec(q, defaultConfigName); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM configs WHERE name = ?`, defaultConfigName); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}
	res, err := tx.Exec(`INSERT INTO configs (name) VALUES (?)`, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	configID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read config id: %w", err)
	}

	stmts := []struct {
		section string
		query   string
		args    []interface{}
	}{
		{"dataset", `INSERT INTO dataset_configs (config_id, path, warm_on_start, warm_retries) VALUES (?, ?, ?, ?)`,
			[]interface{}{configID, cfg.Dataset.Path, cfg.Dataset.WarmOnStart, cfg.Dataset.WarmRetries}},
		{"rest", `INSERT INTO rest_configs (config_id, tls_cert, tls_key, port, listen_addr, read_timeout, write_timeout, assets_dir) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]interface{}{configID, nullString(cfg.REST.Cert), nullString(cfg.REST.Key), cfg.REST.Port, nullString(cfg.REST.ListenAddr),
				nullString(cfg.REST.ReadTimeout), nullString(cfg.REST.WriteTimeout), nullString(cfg.REST.AssetsDir)}},
		{"render", `INSERT INTO render_configs (config_id, output_dir, workers, memory_entries, default_vmin, default_vmax, width, height) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			[]interface{}{configID, nullString(cfg.Render.OutputDir), cfg.Render.Workers, cfg.Render.MemoryEntries,
				cfg.Render.DefaultVMin, cfg.Render.DefaultVMax, cfg.Render.Width, cfg.Render.Height}},
		{"query", `INSERT INTO query_configs (config_id, cache_entries) VALUES (?, ?)`,
			[]interface{}{configID, cfg.Query.CacheEntries}},
	}
	for _, st := range stmts {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("failed to insert %s config: %w", st.section, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit config: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
