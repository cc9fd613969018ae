package ratelimit

import "fmt"

// Config for the inbound message limiter. A disabled limiter lets everything through.
type Config struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	BurstSize         int     `json:"burst_size"`
	Enabled           bool    `json:"enabled"`
}

// Validate fills a missing burst with the per-second rate, rounded up
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize < 0 {
		return fmt.Errorf("burst_size must not be negative, got %d", c.BurstSize)
	}
	if c.BurstSize == 0 {
		c.BurstSize = int(c.RequestsPerSecond)
		if float64(c.BurstSize) < c.RequestsPerSecond {
			c.BurstSize++
		}
	}
	return nil
}

// PerSecond returns an enabled config, or a disabled one when rps is not positive
func PerSecond(rps float64) Config {
	if rps <= 0 {
		return Config{}
	}
	return Config{RequestsPerSecond: rps, Enabled: true}
}
