package config

import (
	"fmt"
	"time"
)

// setTimezone resolves cfg.TZ into cfg.Location. Checkpoint file names are
// always written in UTC; the location only affects how saved timestamps are
// displayed. An empty TZ falls back to the local zone and is labelled
// "UTC" or "UTC±H".
func setTimezone(cfg *Core) error {
	if cfg.TZ != "" {
		loc, err := time.LoadLocation(cfg.TZ)
		if err != nil {
			return fmt.Errorf("%w: failed to load timezone %q: %v", ErrInvalidConfig, cfg.TZ, err)
		}
		cfg.Location = loc
		_, cfg.TzOffsetInSec = time.Now().In(loc).Zone()
		return nil
	}

	_, offset := time.Now().Zone()
	cfg.Location = time.Local
	cfg.TzOffsetInSec = offset
	if offset != 0 {
		cfg.TZ = fmt.Sprintf("UTC%+d", offset/3600)
	} else {
		cfg.TZ = "UTC"
	}
	return nil
}
