// Command trigger evaluates every asset once and buys those whose target
// time has come. Exits non-zero when a buy went through but its date could
// not be recorded, so the invoking scheduler surfaces it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"DCAClock/internal/di"
	"DCAClock/pkg/config"
	"DCAClock/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	at := flag.String("at", "", "evaluation instant (RFC3339 or unix seconds); default now")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	var now time.Time
	if *at != "" {
		t, ok := util.ParseTime(*at)
		if !ok {
			log.Fatalf("invalid -at %q", *at)
		}
		now = t
	}

	jobs, cleanup, err := di.InitializeJobs(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	report := jobs.Trigger(ctx, now)
	cancel()
	cleanup()

	_ = json.NewEncoder(os.Stdout).Encode(report)
	if report.Err != nil || len(report.PersistenceFailures()) > 0 {
		os.Exit(1)
	}
}
