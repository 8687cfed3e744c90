package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/infrastructure/persistence"
)

func demoData(args []string) {
	fs := flag.NewFlagSet("demo-data", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var path string
	fs.StringVar(&path, "db", "data/semantic_demo.db", "sqlite database file")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if err := seedDemo(context.Background(), path); err != nil {
		fatal(err)
	}
	fmt.Printf("[demo-data] OK: %s\n", path)
}

func seedDemo(ctx context.Context, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := persistence.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return persistence.SeedDemoData(ctx, db)
}
