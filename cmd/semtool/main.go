package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: semtool <catalog-check|catalog-load|demo-data|ask|replay> [args]")
	}

	switch os.Args[1] {
	case "catalog-check":
		catalogCheck(os.Args[2:])
	case "catalog-load":
		catalogLoad(os.Args[2:])
	case "demo-data":
		demoData(os.Args[2:])
	case "ask":
		ask(os.Args[2:])
	case "replay":
		replay(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
