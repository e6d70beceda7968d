package loadgen

import "time"

// Defaults applied by Config.withDefaults.
const (
	DefaultMembers     = 20
	DefaultSubmissions = 1000
	DefaultRepeatRatio = 0.05
	DefaultTopN        = 20
	DefaultTimeout     = 30 * time.Second
	DefaultSettle      = 10 * time.Second
)

const (
	workerChannelMultiplier = 2
	progressInterval        = time.Second
	percentageMultiplier    = 100
)
