package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"RiskLab/internal/di"
	"RiskLab/pkg/config"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitUsage    = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	start := flag.String("start", "", "window start, YYYY-MM-DD (default run.start or "+config.DefaultStart+")")
	end := flag.String("end", "", "window end, YYYY-MM-DD (default run.end or today)")
	series := flag.String("series", "", "comma-separated series ids to ingest (default all)")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return exitUsage
	}
	if *start != "" {
		cfg.Run.Start = *start
	}
	if *end != "" {
		cfg.Run.End = *end
	}

	from, to, err := cfg.Window()
	if err != nil {
		log.Printf("invalid window: %v", err)
		return exitUsage
	}
	tasks, err := cfg.Tasks(from, to, splitList(*series))
	if err != nil {
		log.Printf("invalid series selection: %v", err)
		return exitUsage
	}

	ingest, cleanup, err := di.InitializeIngest(cfg)
	if err != nil {
		log.Printf("ingest initialization failed: %v", err)
		return exitUsage
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ingest.Run(ctx, tasks, os.Stdout).ExitCode() != 0 {
		return exitFailures
	}
	return exitOK
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
