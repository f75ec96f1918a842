package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"curator/internal/config"
	"curator/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	development := flag.Bool("development", false, "Enable development logging")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	level := *logLevel
	if level == "" {
		level = cfg.Logging.Level
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel:    level,
		Development: *development,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "curatord: %v\n", err)
		os.Exit(1)
	}
}
