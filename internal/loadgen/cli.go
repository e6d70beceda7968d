package loadgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vibeteen/mural/pkg/logger"
)

// SetupLogging sends log records to stdout and to logFile. An empty
// logFile gets a timestamped name.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "load_log_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Configure(logger.FormatText, io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file, nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Mural Load Tool
===============

Signs in synthetic members, sends impact submissions concurrently and then
checks that every member's stored XP matches what the service accepted.

Usage:
  mural-load [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -members int         Number of members to sign in (default 20)
  -submissions int     Number of impact submissions to send (default 1000)
  -repeat float        Share of submissions resent with the same id (default 0.05)
  -top int             Leaderboard entries to fetch (default 20)
  -workers int         Concurrent workers (default CPU cores)
  -timeout duration    HTTP request timeout (default 30s)
  -settle duration     Wait before verification (default 10s)
  -output string       Write sent submissions to this JSON file
  -log string          Log file (default: load_log_TIMESTAMP.log)
  -verbose             Log progress
  -help                Show this help message

The service's per-member rate limit applies; throttled submissions are
counted and left out of the expected XP.
`)
}
