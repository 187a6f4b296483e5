package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"snapstate/internal/config"
	"snapstate/internal/engine"
	"snapstate/internal/kvstore"
	"snapstate/internal/version"
	"snapstate/pkg/cmdexec"
	"snapstate/pkg/crypto"
	"snapstate/pkg/log"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	templatePath := flag.String("template", "", "Path to the template document")
	operation := flag.String("operation", "", "Operation to run: Backup or Restore")
	stateDir := flag.String("state-dir", "", "Directory holding the captured state files")
	configPath := flag.String("config", "", "Path to configuration file")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	if *showVersion {
		fmt.Printf("snapstate version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log.InitLog(level)

	if *templatePath == "" || *operation == "" || *stateDir == "" {
		fmt.Fprintln(os.Stderr, "Usage: snapstate --template <path> --operation Backup|Restore --state-dir <path>")
		fmt.Fprintln(os.Stderr, "The passphrase for encrypted items is read from SNAPSTATE_PASSPHRASE.")
		os.Exit(2)
	}

	// Cancel the operation on SIGINT/SIGTERM; cancellation is checked
	// between items, never mid-item.
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, cancelling operation", sig)
		cancel()
	}()

	session := crypto.NewSession()
	defer session.ClearCache()

	eng := engine.New(
		cfg,
		cmdexec.NewShellRunner(cfg.CommandTimeout()),
		kvstore.NewFileStore(cfg.RegistryHive),
		session,
	)

	result, err := eng.Run(ctx, engine.Request{
		TemplatePath: *templatePath,
		Operation:    engine.Operation(*operation),
		StateDir:     *stateDir,
		Passphrase:   os.Getenv("SNAPSTATE_PASSPHRASE"),
	})
	if err != nil {
		log.Fatalf("Operation failed: %v", err)
	}

	for _, failure := range result.ItemsFailed {
		log.Error("Item failed", "item", failure.Item, "category", string(failure.Category), "kind", string(failure.Kind), "error", failure.Err)
	}

	log.Printf("%s finished: %d processed, %d skipped, %d failed",
		string(result.Operation), result.ItemsProcessed, result.ItemsSkipped, len(result.ItemsFailed))

	if len(result.ItemsFailed) > 0 {
		os.Exit(1)
	}
}
