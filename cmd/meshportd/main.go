package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"meshport/internal/config"
	"meshport/internal/daemonrun"
	"meshport/internal/services"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override logging.level")
	flag.Parse()

	if err := run(context.Background(), *configPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, configPath, logLevel string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{LogLevel: logLevel})
}

// exitCode distinguishes configuration problems (2) from runtime failures (1).
func exitCode(err error) int {
	if errors.Is(err, services.ErrConfiguration) {
		return 2
	}
	return 1
}
