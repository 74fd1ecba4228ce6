package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/tabkeeper/internal/client/api"
	"github.com/iudanet/tabkeeper/internal/client/auth"
	"github.com/iudanet/tabkeeper/internal/client/cli"
	"github.com/iudanet/tabkeeper/internal/client/iocli"
	"github.com/iudanet/tabkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/tabkeeper/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Глобальные флаги
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "tabkeeper-client.db", "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}

	// Ctrl+C останавливает watch режим штатно
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Локальное хранилище: сессия устройства и кеш dataset
	store, err := boltdb.New(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	apiClient := api.NewClient(*serverURL)
	authService := auth.NewService(apiClient, store)

	// ConfirmFunc замыкается на CLI, поэтому sync service собирается
	// вторым заходом
	c := cli.New(iocli.NewStdio(), apiClient, authService, nil, store)
	syncService := sync.NewService(apiClient, store, logger, c.ConfirmOverwrite)
	c.SetSyncService(syncService)

	if err := c.Run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("TabKeeper Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
