package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/config"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/logging"
	"github.com/fragmatic-io/CBT-LLM-Eval-Lab/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to cbtlab config YAML")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Printf("[cbtlab-server] fatal: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	opts, err := config.LoadOptions(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, logging.ParseLevel(opts.LogLevel))
	srv, err := server.New(server.Config{
		Host:       opts.Server.Host,
		Port:       opts.Server.Port,
		EnableCORS: opts.Server.EnableCORS,
		OutputDir:  opts.OutputDir,
		CacheSize:  opts.Server.CacheSize,
		Version:    Version,
	}, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
