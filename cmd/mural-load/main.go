package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/vibeteen/mural/internal/loadgen"
	"github.com/vibeteen/mural/pkg/logger"
)

const runTimeout = 10 * time.Minute

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		members     = flag.Int("members", loadgen.DefaultMembers, "Number of members to sign in")
		submissions = flag.Int("submissions", loadgen.DefaultSubmissions, "Number of impact submissions to send")
		repeat      = flag.Float64("repeat", loadgen.DefaultRepeatRatio, "Share of submissions resent with the same id")
		topN        = flag.Int("top", loadgen.DefaultTopN, "Number of leaderboard entries to fetch")
		workers     = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		timeout     = flag.Duration("timeout", loadgen.DefaultTimeout, "HTTP request timeout")
		settle      = flag.Duration("settle", loadgen.DefaultSettle, "Wait before verification")
		outputFile  = flag.String("output", "", "Write sent submissions to this JSON file")
		logFile     = flag.String("log", "", "Log file (default: load_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Log progress")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadgen.ShowHelp()
		return
	}

	closer, err := loadgen.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	_, err = loadgen.Run(ctx, &loadgen.Config{
		BaseURL:     *baseURL,
		Members:     *members,
		Submissions: *submissions,
		RepeatRatio: *repeat,
		TopN:        *topN,
		Workers:     *workers,
		Timeout:     *timeout,
		Settle:      *settle,
		OutputFile:  *outputFile,
		Verbose:     *verbose,
	})
	if err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
