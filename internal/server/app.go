package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/infrastructure/persistence"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/services"
)

const (
	storeCatalog  = "catalog"
	storePostgres = "postgres"
)

// App owns the long-lived resources behind the HTTP handler.
type App struct {
	Orchestrator *services.Orchestrator
	Metrics      *services.Metrics
	Registry     *prometheus.Registry

	executor *persistence.SQLExecutor
	pool     *pgxpool.Pool
}

type stores struct {
	metadata ports.MetadataStore
	policies ports.PolicyStore
	audits   ports.AuditStore
}

// storeConfig selects the catalog/audit backend. DSN is only set for the
// postgres store.
type storeConfig struct {
	Mode string
	DSN  string
}

func storeConfigFromEnv() (storeConfig, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("SEMANTIC_STORE")))
	switch mode {
	case "", storeCatalog:
		return storeConfig{Mode: storeCatalog}, nil
	case storePostgres:
		return storeConfig{Mode: storePostgres, DSN: postgresDSNFromEnv()}, nil
	default:
		return storeConfig{}, fmt.Errorf("invalid SEMANTIC_STORE: %q", mode)
	}
}

// postgresDSNFromEnv prefers DATABASE_URL and otherwise assembles a URL
// from the DB_* variables.
func postgresDSNFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	env := func(key, def string) string {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
		return def
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(env("DB_USER", "app"), env("DB_PASSWORD", "app")),
		Host:     net.JoinHostPort(env("DB_HOST", "127.0.0.1"), env("DB_PORT", "5438")),
		Path:     "/" + env("DB_NAME", "semantic_layer"),
		RawQuery: url.Values{"sslmode": {env("DB_SSLMODE", "disable")}}.Encode(),
	}
	return u.String()
}

func configPathFromEnv(key, rel string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, nil
	}
	return findConfigFile(rel)
}

func NewApp(ctx context.Context, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sc, err := storeConfigFromEnv()
	if err != nil {
		return nil, err
	}

	app := &App{Registry: prometheus.NewRegistry()}
	app.Metrics = services.NewMetrics(app.Registry)
	var st stores
	switch sc.Mode {
	case storePostgres:
		pool, err := pgxpool.New(ctx, sc.DSN)
		if err != nil {
			return nil, err
		}
		app.pool = pool
		st = stores{
			metadata: persistence.NewPGMetadataStore(pool),
			policies: persistence.NewPGPolicyStore(pool),
			audits:   persistence.NewPGAuditStore(pool),
		}
	default:
		catalogPath, err := configPathFromEnv("SEMANTIC_CATALOG_PATH", "config/semantic/catalog.yaml")
		if err != nil {
			return nil, err
		}
		c, err := persistence.LoadCatalogFile(catalogPath)
		if err != nil {
			return nil, err
		}
		cs, err := persistence.NewCatalogStore(c)
		if err != nil {
			return nil, err
		}
		st = stores{metadata: cs, policies: cs, audits: persistence.NewMemoryAuditStore()}
	}

	connsPath, err := configPathFromEnv("SEMANTIC_CONNECTIONS_PATH", "config/semantic/connections.yaml")
	if err != nil {
		app.Close()
		return nil, err
	}
	conns, err := persistence.LoadConnectionsFile(connsPath)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.executor = persistence.NewSQLExecutor(conns, logger)

	orch, err := services.NewOrchestrator(services.OrchestratorOptions{
		Metadata: st.metadata,
		Policies: st.policies,
		Audits:   st.audits,
		Executor: app.executor,
		Config:   services.ConfigFromEnv(),
		Metrics:  app.Metrics,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Orchestrator = orch
	logger.Info("semantic layer ready", "store", sc.Mode, "connections", len(conns))
	return app, nil
}

// Handler builds the HTTP surface over the app's orchestrator and registry.
func (a *App) Handler(logger *slog.Logger) (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{
		Facade:   a.Orchestrator,
		Gatherer: a.Registry,
		Logger:   logger,
	})
}

func (a *App) Close() {
	if a.executor != nil {
		a.executor.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
