// Command portfolio-lab manages a local database of historical market data
// for tracked financial instruments.
package main

import (
	"fmt"
	"os"

	"portfolio-lab/internal/cli"
	"portfolio-lab/internal/config"
	"portfolio-lab/internal/logging"
)

func main() {
	configDir := configDirFromArgs(os.Args[1:])

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portfolio-lab: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.File = cfg.Logging.File
	logCfg.MaxSize = cfg.Logging.MaxSizeMB
	logCfg.MaxBackups = cfg.Logging.MaxBackups
	logCfg.MaxAge = cfg.Logging.MaxAgeDays
	logger := logging.NewLoggerWithConfig(logCfg)

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "portfolio-lab: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs extracts --config before cobra parses flags, since the
// config file must be loaded to build the command tree.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(arg) > len("--config=") && arg[:len("--config=")] == "--config=" {
			return arg[len("--config="):]
		}
	}
	return ""
}
