package loadgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
)

const randomFloatDivisor = 1_000_000

var recipients = []string{"Rui", "Clara", "vizinho", "Dona Lúcia", "Pedro", "turma da escola", "Marta"}

// randomInt returns a uniform int in [0, n) using crypto/rand.
func randomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

// randomFloat returns a float64 in [0.0, 1.0) using crypto/rand.
func randomFloat() float64 {
	return float64(randomInt(randomFloatDivisor)) / randomFloatDivisor
}

// signInBody is the POST /session body for synthetic member i.
func signInBody(runID string, i int) map[string]string {
	n := strconv.Itoa(i)
	return map[string]string{
		"first_name": "Load" + n,
		"last_name":  "Runner",
		"email":      "load" + n + "." + runID + "@mural.test",
	}
}

// generateSubmissions spreads cfg.Submissions across memberIDs. Roughly
// cfg.RepeatRatio of them resend an earlier submission unchanged.
func generateSubmissions(ctx context.Context, cfg *Config, memberIDs []string, stats *Stats) ([]Submission, error) {
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("no members to submit for")
	}
	logger.Get().Info(ctx, "generating submissions",
		logger.Int("submissions", cfg.Submissions),
		logger.Int("members", len(memberIDs)))

	out := make([]Submission, 0, cfg.Submissions)
	for range cfg.Submissions {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		if len(out) > 0 && randomFloat() < cfg.RepeatRatio {
			out = append(out, out[randomInt(len(out))])
			continue
		}
		out = append(out, Submission{
			MemberID:     memberIDs[randomInt(len(memberIDs))],
			SubmissionID: uuid.NewString(),
			Kind:         string(model.ActionKinds[randomInt(len(model.ActionKinds))]),
			Recipient:    recipients[randomInt(len(recipients))],
		})
	}

	stats.SubmissionsGenerated = len(out)
	logger.Get().Info(ctx, "generated submissions", logger.Int("count", len(out)))
	return out, nil
}
