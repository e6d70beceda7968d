package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vibeteen/mural/internal/adapters/http/api"
	"github.com/vibeteen/mural/pkg/logger"
)

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request, acting as memberID when it is not empty.
func (c *HTTPClient) Get(ctx context.Context, url, memberID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if memberID != "" {
		req.Header.Set(api.MemberHeader, memberID)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body, acting as memberID when it is not empty.
func (c *HTTPClient) Post(ctx context.Context, url, memberID string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if memberID != "" {
		req.Header.Set(api.MemberHeader, memberID)
	}
	return c.client.Do(req)
}

// decodeResponse reads resp into v when the status is want.
func decodeResponse(resp *http.Response, want int, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// signInMembers signs in cfg.Members synthetic members and returns their ids.
func signInMembers(ctx context.Context, cfg *Config, runID string, stats *Stats) ([]string, error) {
	client := newHTTPClient(cfg.Timeout)
	ids := make([]string, 0, cfg.Members)
	for i := range cfg.Members {
		resp, err := client.Post(ctx, cfg.BaseURL+"/session", "", signInBody(runID, i))
		if err != nil {
			return nil, fmt.Errorf("sign in member %d: %w", i, err)
		}
		var m Member
		if err := decodeResponse(resp, http.StatusOK, &m); err != nil {
			return nil, fmt.Errorf("sign in member %d: %w", i, err)
		}
		ids = append(ids, m.ID)
	}
	stats.MembersSignedIn = len(ids)
	logger.Get().Info(ctx, "members signed in", logger.Int("count", len(ids)))
	return ids, nil
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeThrottled
	outcomeFailed
)

// submitAll sends subs with cfg.Workers concurrent workers and returns the
// submission ids the service accepted at least once.
func submitAll(ctx context.Context, cfg *Config, subs []Submission, stats *Stats) map[string]Submission {
	log := logger.Get()
	log.Info(ctx, "submitting impacts", logger.Int("submissions", len(subs)), logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.Timeout)
	url := cfg.BaseURL + "/impacts"

	var (
		sent, accepted, throttled, failed atomic.Int64
		lastReport                        atomic.Int64

		mu          sync.Mutex
		acceptedIDs = make(map[string]Submission)
	)

	ch := make(chan Submission, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range ch {
				if ctx.Err() != nil {
					return
				}
				switch submitOne(ctx, client, url, sub) {
				case outcomeAccepted:
					accepted.Add(1)
					mu.Lock()
					acceptedIDs[sub.SubmissionID] = sub
					mu.Unlock()
				case outcomeThrottled:
					throttled.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
				total := sent.Add(1)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "submission progress",
						logger.Int("sent", int(total)),
						logger.Int("of", len(subs)),
						logger.Int("throttled", int(throttled.Load())),
						logger.Int("failed", int(failed.Load())))
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case ch <- sub:
			}
		}
	}()
	wg.Wait()

	stats.SubmissionsSent = int(sent.Load())
	stats.Accepted = int(accepted.Load())
	stats.Throttled = int(throttled.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("unique", len(acceptedIDs)),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
	return acceptedIDs
}

func submitOne(ctx context.Context, client *HTTPClient, url string, sub Submission) outcome {
	body := map[string]string{
		"submission_id": sub.SubmissionID,
		"kind":          sub.Kind,
		"recipient":     sub.Recipient,
	}
	resp, err := client.Post(ctx, url, sub.MemberID, body)
	if err != nil {
		return outcomeFailed
	}
	_ = decodeResponse(resp, http.StatusAccepted, nil)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusTooManyRequests:
		return outcomeThrottled
	default:
		return outcomeFailed
	}
}

// fetchMembers reads every member document back, concurrently.
func fetchMembers(ctx context.Context, cfg *Config, ids []string, stats *Stats) (map[string]Member, error) {
	client := newHTTPClient(cfg.Timeout)
	var (
		mu      sync.Mutex
		members = make(map[string]Member, len(ids))
		errs    atomic.Int64
	)

	ch := make(chan string, cfg.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ch {
				resp, err := client.Get(ctx, cfg.BaseURL+"/members/"+id, id)
				var m Member
				if err == nil {
					err = decodeResponse(resp, http.StatusOK, &m)
				}
				if err != nil {
					errs.Add(1)
					if cfg.Verbose {
						logger.Get().Warn(ctx, "failed to read member", logger.String("memberID", id), logger.Error(err))
					}
					continue
				}
				mu.Lock()
				members[id] = m
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		ch <- id
	}
	close(ch)
	wg.Wait()

	stats.MembersVerified = len(members)
	if n := errs.Load(); n > 0 {
		return members, fmt.Errorf("%d member reads failed", n)
	}
	return members, nil
}

// fetchLeaderboard retrieves the top cfg.TopN entries.
func fetchLeaderboard(ctx context.Context, cfg *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(cfg.Timeout)
	resp, err := client.Get(ctx, fmt.Sprintf("%s/leaderboard?limit=%d", cfg.BaseURL, cfg.TopN), "")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var lb leaderboard
	if err := decodeResponse(resp, http.StatusOK, &lb); err != nil {
		return nil, err
	}
	stats.LeaderboardEntries = len(lb.Entries)
	return lb.Entries, nil
}
