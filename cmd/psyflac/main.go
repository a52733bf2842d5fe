// psyflac inspects, splits, seeks and decodes FLAC streams.
//
// Usage:
//
//	psyflac info FILE...
//	psyflac frames FILE
//	psyflac seek FILE MS...
//	psyflac decode [-f] FILE|URL...
//	psyflac encode [-f] FILE.wav...
//	psyflac gen [flags] FILE
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ausocean/utils/logging"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logging configuration.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

// Command line flags shared by the subcommands.
var (
	flagLogFile   string
	flagVerbosity string
	flagVerifyCRC bool
)

var rootCmd = &cobra.Command{
	Use:           "psyflac",
	Short:         "Inspect, split, seek and decode FLAC streams",
	SilenceUsage:  true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogFile, "log-file", "", "write logs to a rotated file instead of stderr")
	pf.StringVar(&flagVerbosity, "verbosity", "warning", "log level: debug, info, warning or error")
	pf.BoolVar(&flagVerifyCRC, "verify-crc", false, "check the CRC-16 of every frame")
	rootCmd.AddCommand(infoCmd, framesCmd, seekCmd, decodeCmd, encodeCmd, genCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newLogger returns the logger selected by the command line flags.
func newLogger() logging.Logger {
	var w io.Writer = os.Stderr
	if flagLogFile != "" {
		w = &lumberjack.Logger{
			Filename:   flagLogFile,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
	}
	return logging.New(logLevel(flagVerbosity), w, logSuppress)
}

// logLevel maps a level name to a logging level, defaulting to warnings.
func logLevel(name string) int8 {
	switch strings.ToLower(name) {
	case "debug":
		return logging.Debug
	case "info":
		return logging.Info
	case "error":
		return logging.Error
	}
	return logging.Warning
}
