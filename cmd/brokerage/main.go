package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/argo-brokerage/internal/config"
	"github.com/rxtech-lab/argo-brokerage/internal/credit"
	"github.com/rxtech-lab/argo-brokerage/internal/executor"
	"github.com/rxtech-lab/argo-brokerage/internal/fee"
	"github.com/rxtech-lab/argo-brokerage/internal/logger"
	"github.com/rxtech-lab/argo-brokerage/internal/matcher"
	"github.com/rxtech-lab/argo-brokerage/internal/oracle"
	"github.com/rxtech-lab/argo-brokerage/internal/repository"
	"github.com/rxtech-lab/argo-brokerage/internal/scheduler"
	"github.com/rxtech-lab/argo-brokerage/internal/server"
)

func main() {
	// Define command-line flags
	configFlag := flag.String("config", "", "Path to YAML config file (defaults apply if omitted)")
	quotesFlag := flag.String("quotes", "", "Path to YAML quote file backing the price oracle")
	schemaFlag := flag.Bool("config-schema", false, "Print the config JSON schema and exit")

	flag.Parse()

	if *schemaFlag {
		schema, err := config.Schema()
		if err != nil {
			log.Fatalf("Failed to generate config schema: %v", err)
		}

		fmt.Println(schema)
		os.Exit(0)
	}

	// Load configuration
	cfg := config.DefaultConfig()

	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		cfg = loaded
	}

	appLogger, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	// Open the ledger store
	repo, err := repository.NewDuckDBRepository(cfg.Database.Path, cfg.AtomicMaxRetries, appLogger)
	if err != nil {
		log.Fatalf("Failed to open repository: %v", err)
	}
	defer repo.Close()

	// Price oracle: file-backed unless a live adapter replaces it
	var src oracle.Source = oracle.NewStaticSource(nil, nil)

	if *quotesFlag != "" {
		loaded, err := oracle.LoadStaticSource(*quotesFlag)
		if err != nil {
			log.Fatalf("Failed to load quotes: %v", err)
		}

		src = loaded
	}

	exec := executor.NewExecutor(repo, fee.NewRateSchedule(cfg.SellFeeRate), appLogger)

	job, err := credit.NewJob(repo, exec, src, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to create interest job: %v", err)
	}

	match := matcher.NewMatcher(repo, exec, src, cfg.BaseCurrency, appLogger)

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}

	interval, err := cfg.Interval()
	if err != nil {
		log.Fatalf("Invalid matcher interval: %v", err)
	}

	sched := scheduler.NewScheduler(job, match, interval, location, appLogger)

	srv := server.NewServer(repo, exec, src, cfg.BaseCurrency, cfg.DefaultCreditLimit,
		cfg.Server.Addr, appLogger)

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go sched.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	fmt.Println("\nReceived interrupt signal, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}
