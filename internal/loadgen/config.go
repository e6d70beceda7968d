package loadgen

import (
	"time"

	"github.com/vibeteen/mural/internal/domain/scoring"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Members     int           // Number of members to sign in
	Submissions int           // Number of impact submissions to send
	RepeatRatio float64       // Share of submissions that resend an earlier submission id
	TopN        int           // Number of leaderboard entries to fetch
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // Wait between the last submission and verification
	OutputFile  string        // Output file for sent submissions
	Verbose     bool          // Enable progress logging
	XPTable     scoring.XPTable
}

// Submission is one POST /impacts body plus the member sending it.
type Submission struct {
	MemberID     string `json:"member_id"`
	SubmissionID string `json:"submission_id"`
	Kind         string `json:"kind"`
	Recipient    string `json:"recipient"`
}

// Member is the subset of the member document the run reads back.
type Member struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	XP        int    `json:"xp"`
	Streak    int    `json:"streak"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank     int    `json:"rank"`
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	XP       int    `json:"xp"`
	Streak   int    `json:"streak"`
}

type leaderboard struct {
	Entries []Entry `json:"entries"`
}

// Stats holds run statistics.
type Stats struct {
	MembersSignedIn      int
	SubmissionsGenerated int
	SubmissionsSent      int
	Accepted             int
	Throttled            int
	Failed               int
	MembersVerified      int
	LeaderboardEntries   int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
