package server

import (
	"errors"
	"strings"

	"github.com/smallbiznis/renewly/internal/calendar"
)

var errInvalidTier = errors.New("invalid_tier")

// parseTier accepts the decimal tier values 1, 3, 7 and 30.
func parseTier(value string) (calendar.Tier, error) {
	tier, ok := calendar.ParseTier(strings.TrimSpace(value))
	if !ok {
		return calendar.TierExcluded, errInvalidTier
	}
	return tier, nil
}

func parseOptionalTier(value string) (*calendar.Tier, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	tier, err := parseTier(trimmed)
	if err != nil {
		return nil, err
	}
	return &tier, nil
}
