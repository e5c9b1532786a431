package agent

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSettings = errors.New("invalid agent settings")

// Settings are the tunables of the decision rules and of the polling loop.
type Settings struct {
	PollInterval        time.Duration `json:"poll_interval"`
	DaylightThreshold   float64       `json:"daylight_threshold"`
	AutoBrightness      bool          `json:"auto_brightness"`
	MinBrightness       int           `json:"min_brightness"`
	MaxBrightness       int           `json:"max_brightness"`
	BrightnessTolerance int           `json:"brightness_tolerance"`
}

func DefaultSettings() Settings {
	return Settings{
		PollInterval:        500 * time.Millisecond,
		DaylightThreshold:   0.3,
		AutoBrightness:      true,
		MinBrightness:       30,
		MaxBrightness:       100,
		BrightnessTolerance: 0,
	}
}

func (s Settings) Validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrInvalidSettings, s.PollInterval)
	}
	if s.DaylightThreshold < 0 || s.DaylightThreshold > 1 {
		return fmt.Errorf("%w: daylight threshold %v out of range [0,1]", ErrInvalidSettings, s.DaylightThreshold)
	}
	if s.MinBrightness < 0 || s.MaxBrightness > 100 {
		return fmt.Errorf("%w: brightness bounds %d..%d outside [0,100]", ErrInvalidSettings, s.MinBrightness, s.MaxBrightness)
	}
	if s.MinBrightness > s.MaxBrightness {
		return fmt.Errorf("%w: min brightness %d above max %d", ErrInvalidSettings, s.MinBrightness, s.MaxBrightness)
	}
	if s.BrightnessTolerance < 0 {
		return fmt.Errorf("%w: brightness tolerance must not be negative", ErrInvalidSettings)
	}
	return nil
}
