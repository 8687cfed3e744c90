package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type ConnectionConfig struct {
	Driver string `yaml:"driver"`
	// DSN may reference environment variables as ${NAME}.
	DSN string `yaml:"dsn"`
}

type connectionsFile struct {
	Version     int                         `yaml:"version"`
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

func LoadConnectionsFile(path string) (map[string]ConnectionConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conns, err := ParseConnections(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return conns, nil
}

func ParseConnections(b []byte) (map[string]ConnectionConfig, error) {
	var f connectionsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if f.Version != 1 {
		return nil, fmt.Errorf("unsupported connections version: %d", f.Version)
	}
	var errs []error
	for name, c := range f.Connections {
		switch strings.ToLower(c.Driver) {
		case DriverSQLite, DriverPostgres:
		default:
			errs = append(errs, fmt.Errorf("connection %q: unsupported driver %q", name, c.Driver))
		}
		if strings.TrimSpace(c.DSN) == "" {
			errs = append(errs, fmt.Errorf("connection %q: dsn is required", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Connections, nil
}

var (
	sqlLiteralPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
	sqliteParamRef    = regexp.MustCompile(`[:@$]([A-Za-z_][A-Za-z0-9_]*)`)
	postgresParamRef  = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)
)

// referencedParams returns the sorted parameter names that appear as bind
// placeholders outside string literals and are present in params.
func referencedParams(query string, pattern *regexp.Regexp, params map[string]any) []string {
	if len(params) == 0 {
		return nil
	}
	stripped := sqlLiteralPattern.ReplaceAllString(query, "''")
	seen := map[string]bool{}
	var out []string
	for _, m := range pattern.FindAllStringSubmatch(stripped, -1) {
		name := m[1]
		if _, ok := params[name]; !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SQLExecutor runs rendered queries against named connections. Handles are
// opened lazily and shared across calls; pool limits are the driver's.
type SQLExecutor struct {
	conns  map[string]ConnectionConfig
	logger *slog.Logger

	mu    sync.Mutex
	dbs   map[string]*sql.DB
	pools map[string]*pgxpool.Pool

	openSQL  func(driver string, dsn string) (*sql.DB, error)
	openPool func(ctx context.Context, dsn string) (*pgxpool.Pool, error)
}

var _ ports.QueryExecutor = (*SQLExecutor)(nil)

func NewSQLExecutor(conns map[string]ConnectionConfig, logger *slog.Logger) *SQLExecutor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLExecutor{
		conns:    conns,
		logger:   logger,
		dbs:      map[string]*sql.DB{},
		pools:    map[string]*pgxpool.Pool{},
		openSQL:  sql.Open,
		openPool: pgxpool.New,
	}
}

func (e *SQLExecutor) Execute(ctx context.Context, query string, connectionRef string, params map[string]any) ([]types.Row, error) {
	cfg, ok := e.conns[connectionRef]
	if !ok {
		return nil, fmt.Errorf("unknown connection_ref %q", connectionRef)
	}
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite:
		db, err := e.sqlDB(connectionRef, cfg)
		if err != nil {
			return nil, err
		}
		return querySQL(ctx, db, query, params)
	case DriverPostgres:
		pool, err := e.pgPool(ctx, connectionRef, cfg)
		if err != nil {
			return nil, err
		}
		return queryPG(ctx, pool, query, params)
	default:
		return nil, fmt.Errorf("connection %q: unsupported driver %q", connectionRef, cfg.Driver)
	}
}

func (e *SQLExecutor) sqlDB(ref string, cfg ConnectionConfig) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if db, ok := e.dbs[ref]; ok {
		return db, nil
	}
	db, err := e.openSQL(DriverSQLite, os.ExpandEnv(cfg.DSN))
	if err != nil {
		return nil, err
	}
	e.dbs[ref] = db
	e.logger.Info("opened connection", "connection_ref", ref, "driver", DriverSQLite)
	return db, nil
}

func (e *SQLExecutor) pgPool(ctx context.Context, ref string, cfg ConnectionConfig) (*pgxpool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pools[ref]; ok {
		return p, nil
	}
	p, err := e.openPool(ctx, os.ExpandEnv(cfg.DSN))
	if err != nil {
		return nil, err
	}
	e.pools[ref] = p
	e.logger.Info("opened connection", "connection_ref", ref, "driver", DriverPostgres)
	return p, nil
}

func (e *SQLExecutor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ref, db := range e.dbs {
		_ = db.Close()
		delete(e.dbs, ref)
	}
	for ref, p := range e.pools {
		p.Close()
		delete(e.pools, ref)
	}
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func querySQL(ctx context.Context, db sqlQueryer, query string, params map[string]any) ([]types.Row, error) {
	var args []any
	for _, name := range referencedParams(query, sqliteParamRef, params) {
		args = append(args, sql.Named(name, params[name]))
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []types.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type pgQueryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryPG(ctx context.Context, pool pgQueryer, query string, params map[string]any) ([]types.Row, error) {
	var args []any
	if names := referencedParams(query, postgresParamRef, params); len(names) > 0 {
		named := pgx.NamedArgs{}
		for _, name := range names {
			named[name] = params[name]
		}
		args = append(args, named)
	}
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := []types.Row{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(types.Row, len(fields))
		for i, f := range fields {
			if i < len(vals) {
				row[f.Name] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
