package main

import (
	"fmt"
	"os"

	"ruraldash/internal/config"
	"ruraldash/internal/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewTo(cfg.Env, "stderr")
	defer logger.Sync()
	logging.ConfigWarnings(logger, cfg.Warnings)

	if err := SetupCommands(cfg, logger).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
