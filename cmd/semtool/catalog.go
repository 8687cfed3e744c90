package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/infrastructure/persistence"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/services"
	"github.com/jacksonlee411/semantic-layer/pkg/metricref"
)

const (
	defaultCatalogPath     = "config/semantic/catalog.yaml"
	defaultConnectionsPath = "config/semantic/connections.yaml"
)

func catalogCheck(args []string) {
	fs := flag.NewFlagSet("catalog-check", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var catalogPath, connectionsPath string
	fs.StringVar(&catalogPath, "catalog", defaultCatalogPath, "catalog yaml")
	fs.StringVar(&connectionsPath, "connections", defaultConnectionsPath, "connection registry yaml (empty to skip)")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	c, err := persistence.LoadCatalogFile(catalogPath)
	if err != nil {
		fatal(err)
	}
	var conns map[string]persistence.ConnectionConfig
	if connectionsPath != "" {
		conns, err = persistence.LoadConnectionsFile(connectionsPath)
		if err != nil {
			fatal(err)
		}
	}

	problems := checkCatalog(c, conns)
	for _, p := range problems {
		_, _ = fmt.Fprintln(os.Stderr, p)
	}
	if len(problems) > 0 {
		fatalf("[catalog-check] FAIL: %d problem(s)", len(problems))
	}
	fmt.Printf("[catalog-check] OK: objects=%d versions=%d mappings=%d policies=%d\n",
		len(c.Objects), len(c.Versions), len(c.PhysicalMappings), len(c.Policies))
}

// checkCatalog reports what structural validation cannot see: CEL policy
// expressions that do not compile, metric references to undeclared objects,
// unparsable query templates and mappings whose connection is not registered.
// A nil conns skips the connection check.
func checkCatalog(c *persistence.Catalog, conns map[string]persistence.ConnectionConfig) []string {
	var problems []string

	for _, p := range c.Policies {
		if err := services.ValidateConditionExpr(p.ConditionExpr); err != nil {
			problems = append(problems, fmt.Sprintf("policy %d: condition_expr: %v", p.ID, err))
		}
	}

	known := c.ObjectNames()
	for _, d := range c.LogicalDefinitions {
		unresolved := metricref.Unresolved(d.Expression, func(name string) bool { return known[name] })
		for _, name := range unresolved {
			problems = append(problems, fmt.Sprintf("logical_definition %d: unresolved metric reference %q", d.ID, name))
		}
	}

	for _, m := range c.PhysicalMappings {
		if err := services.ValidateQueryTemplate(m); err != nil {
			problems = append(problems, fmt.Sprintf("physical_mapping %d: %v", m.ID, err))
		}
		if conns == nil {
			continue
		}
		cfg, ok := conns[m.ConnectionRef]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("physical_mapping %d: unknown connection_ref %q", m.ID, m.ConnectionRef))
		case cfg.Driver != m.EngineType:
			problems = append(problems, fmt.Sprintf("physical_mapping %d: engine_type %q but connection %q uses %q", m.ID, m.EngineType, m.ConnectionRef, cfg.Driver))
		}
	}

	sort.Strings(problems)
	return problems
}

func catalogLoad(args []string) {
	fs := flag.NewFlagSet("catalog-load", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url, catalogPath string
	var schema bool
	fs.StringVar(&url, "url", os.Getenv("DATABASE_URL"), "postgres connection string")
	fs.StringVar(&catalogPath, "catalog", defaultCatalogPath, "catalog yaml")
	fs.BoolVar(&schema, "schema", true, "apply the semantic schema before loading")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	c, err := persistence.LoadCatalogFile(catalogPath)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer pool.Close()

	if schema {
		if err := persistence.ApplySchema(ctx, pool); err != nil {
			fatal(err)
		}
	}
	if err := persistence.LoadCatalog(ctx, pool, c); err != nil {
		fatal(err)
	}
	fmt.Printf("[catalog-load] OK: objects=%d versions=%d mappings=%d policies=%d terms=%d\n",
		len(c.Objects), len(c.Versions), len(c.PhysicalMappings), len(c.Policies), len(c.Terms))
}
