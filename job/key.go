package job

import (
	"fmt"
	"strings"
)

// Platform identifies the prediction market a job researches.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
)

// ParsePlatform accepts the canonical names and their short aliases,
// case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kalshi", "k":
		return PlatformKalshi, nil
	case "polymarket", "poly", "p":
		return PlatformPolymarket, nil
	default:
		return "", fmt.Errorf("job: unknown platform %q", s)
	}
}

// Key is the logical identity of a research subject. Unlike a job id it
// survives follow-ups, which run under a new job id.
type Key struct {
	Platform Platform `json:"platform"`
	MarketID string   `json:"market_id"`
}

// String returns "platform/market_id".
func (k Key) String() string { return string(k.Platform) + "/" + k.MarketID }

// Validate reports whether both parts of the key are set.
func (k Key) Validate() error {
	if k.Platform == "" || k.MarketID == "" {
		return fmt.Errorf("job: incomplete key %q", k.String())
	}
	return nil
}
