package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jacksonlee411/semantic-layer/internal/server"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

func ask(args []string) {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var role, user, rawParams string
	var preview, verbose bool
	fs.StringVar(&role, "role", "anonymous", "caller role")
	fs.StringVar(&user, "user", "semtool", "caller user id")
	fs.StringVar(&rawParams, "params", "", "request parameters as a JSON object")
	fs.BoolVar(&preview, "preview", false, "render without executing")
	fs.BoolVar(&verbose, "v", false, "log pipeline stages to stderr")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fatalf("usage: semtool ask [flags] <question>")
	}
	params, err := parseParams(rawParams)
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	app, err := server.NewApp(ctx, cliLogger(verbose))
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	res := app.Orchestrator.Query(ctx, question, params, types.ExecutionContext{UserID: user, Role: role}, preview)
	if err := printJSON(os.Stdout, res); err != nil {
		fatal(err)
	}
	if res.Status != types.StatusSuccess && res.Status != types.StatusPreview {
		os.Exit(2)
	}
}

// replay needs a persistent audit store; with the default catalog store a
// fresh process has no audits to replay.
func replay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var verbose bool
	fs.BoolVar(&verbose, "v", false, "log pipeline stages to stderr")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if fs.NArg() != 1 {
		fatalf("usage: semtool replay [flags] <audit_id>")
	}

	ctx := context.Background()
	app, err := server.NewApp(ctx, cliLogger(verbose))
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	res, err := app.Orchestrator.Replay(ctx, fs.Arg(0))
	if err != nil {
		fatal(err)
	}
	if err := printJSON(os.Stdout, res); err != nil {
		fatal(err)
	}
	if res.Refused || res.New == nil || res.New.Status != types.StatusSuccess {
		os.Exit(2)
	}
}

func parseParams(raw string) (map[string]any, error) {
	params := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return params, nil
	}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, errors.New("invalid --params: expected a JSON object")
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}

func cliLogger(verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
