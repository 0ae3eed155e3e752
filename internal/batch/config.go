package batch

import (
	"time"
)

// Config holds the pacing of a column run.
type Config struct {
	SuccessDelay  time.Duration // pause after a successful row
	ErrorDelay    time.Duration // back-off after a failed row
	FlushEvery    int           // flush queued writes after this many rows
	FlushInterval time.Duration // or once this much time has passed
	RunLogDir     string        // per-run transcripts; empty disables
}

// DefaultConfig returns the default pacing.
func DefaultConfig() Config {
	return Config{
		SuccessDelay:  500 * time.Millisecond,
		ErrorDelay:    3 * time.Second,
		FlushEvery:    5,
		FlushInterval: 2 * time.Second,
		RunLogDir:     "run_logs",
	}
}

// ConfigFromMap creates a Config from a map (typically from TOML/JSON config)
func ConfigFromMap(configMap map[string]interface{}) Config {
	config := DefaultConfig()

	if d, ok := millis(configMap["success_delay_ms"]); ok {
		config.SuccessDelay = d
	}
	if d, ok := millis(configMap["error_delay_ms"]); ok {
		config.ErrorDelay = d
	}
	if n, ok := positiveInt(configMap["flush_every"]); ok {
		config.FlushEvery = n
	}
	if d, ok := millis(configMap["flush_interval_ms"]); ok && d > 0 {
		config.FlushInterval = d
	}
	if dir, ok := configMap["run_log_dir"].(string); ok {
		config.RunLogDir = dir
	}
	return config
}

// millis accepts non-negative integer or float milliseconds; zero disables
// a delay.
func millis(v interface{}) (time.Duration, bool) {
	switch n := v.(type) {
	case int:
		if n >= 0 {
			return time.Duration(n) * time.Millisecond, true
		}
	case int64:
		if n >= 0 {
			return time.Duration(n) * time.Millisecond, true
		}
	case float64:
		if n >= 0 {
			return time.Duration(n * float64(time.Millisecond)), true
		}
	}
	return 0, false
}

func positiveInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n > 0
	case int64:
		return int(n), n > 0
	case float64:
		return int(n), n >= 1
	}
	return 0, false
}
