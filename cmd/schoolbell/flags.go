package main

import (
	"github.com/urfave/cli"

	"schoolbell/internal/config"
)

// FallbackLogPath receives the fatal line when the service dies, whatever log_file says.
const FallbackLogPath = "/var/log/schoolbell.log"

var (
	cfgPath     string
	logLevel    string
	fallbackLog string
)

var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:        "config, c",
		Usage:       "path to the schedule config (YAML)",
		EnvVar:      "SCHOOLBELL_CONFIG",
		Value:       config.DefaultPath,
		Destination: &cfgPath,
	},
	cli.StringFlag{
		Name:        "log-level, l",
		Usage:       "override settings.log_level (trace, debug, info, warn, error)",
		EnvVar:      "SCHOOLBELL_LOG_LEVEL",
		Destination: &logLevel,
	},
	cli.StringFlag{
		Name:        "fallback-log",
		Usage:       "file that records the fatal error when the service stops",
		Value:       FallbackLogPath,
		Destination: &fallbackLog,
		Hidden:      true,
	},
}
