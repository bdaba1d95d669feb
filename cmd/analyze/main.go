// Command analyze runs one slot analysis pass and stores each asset's target
// time. Intended for an external daily scheduler.
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
	asOf := flag.String("as-of", "", "analysis instant (RFC3339 or unix seconds); default now")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	var at time.Time
	if *asOf != "" {
		t, ok := util.ParseTime(*asOf)
		if !ok {
			log.Fatalf("invalid -as-of %q", *asOf)
		}
		at = t
	}

	jobs, cleanup, err := di.InitializeJobs(cfg)
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	report := jobs.Analyze(ctx, at)
	cancel()
	cleanup()

	_ = json.NewEncoder(os.Stdout).Encode(report)
	if report.Failed() {
		os.Exit(1)
	}
}
