package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/vibeteen/mural/internal/domain/scoring"
	"github.com/vibeteen/mural/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

func (c *Config) withDefaults() *Config {
	out := *c
	if out.Members <= 0 {
		out.Members = DefaultMembers
	}
	if out.Submissions <= 0 {
		out.Submissions = DefaultSubmissions
	}
	if out.RepeatRatio < 0 || out.RepeatRatio >= 1 {
		out.RepeatRatio = DefaultRepeatRatio
	}
	if out.TopN <= 0 {
		out.TopN = DefaultTopN
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Settle < 0 {
		out.Settle = DefaultSettle
	}
	if out.XPTable == nil {
		out.XPTable = scoring.DefaultXPTable()
	}
	return &out
}

// Run signs in members, sends impact submissions concurrently, then checks
// that every member's stored XP matches the accepted submissions.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	runID := uuid.NewString()[:8]

	log.Info(ctx, "starting mural load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("runID", runID),
		logger.Int("members", cfg.Members),
		logger.Int("submissions", cfg.Submissions),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	memberIDs, err := signInMembers(ctx, cfg, runID, stats)
	if err != nil {
		return stats, fmt.Errorf("sign-in failed: %w", err)
	}

	subs, err := generateSubmissions(ctx, cfg, memberIDs, stats)
	if err != nil {
		return stats, fmt.Errorf("generation failed: %w", err)
	}

	accepted := submitAll(ctx, cfg, subs, stats)

	log.Info(ctx, "waiting for writes to settle", logger.Duration("settle", cfg.Settle))
	select {
	case <-ctx.Done():
		return stats, ctx.Err()
	case <-time.After(cfg.Settle):
	}

	members, err := fetchMembers(ctx, cfg, memberIDs, stats)
	if err != nil {
		return stats, fmt.Errorf("member read-back failed: %w", err)
	}
	board, err := fetchLeaderboard(ctx, cfg, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	verifyErr := verifyResults(ctx, cfg, memberIDs, accepted, members, board)

	if cfg.OutputFile != "" {
		if err := saveSubmissions(ctx, cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, verifyErr
}

func checkServiceHealth(ctx context.Context, cfg *Config) error {
	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Get(ctx, cfg.BaseURL+"/healthz", "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if err := decodeResponse(resp, http.StatusOK, nil); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveSubmissions writes subs as a JSON array to filename.
func saveSubmissions(ctx context.Context, filename string, subs []Submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal submissions: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "submissions saved", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.SubmissionsSent > 0 {
		acceptRate = float64(stats.Accepted) / float64(stats.SubmissionsSent) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.SubmissionsSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("membersSignedIn", stats.MembersSignedIn),
		logger.Int("submissionsGenerated", stats.SubmissionsGenerated),
		logger.Int("submissionsSent", stats.SubmissionsSent),
		logger.Int("accepted", stats.Accepted),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("membersVerified", stats.MembersVerified),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
