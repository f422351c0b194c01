package pipeline

import (
	"fmt"
	"time"

	"github.com/smallbiznis/renewly/internal/calendar"
	"github.com/smallbiznis/renewly/internal/config"
)

// Config controls how runs resolve their reference date.
type Config struct {
	Location *time.Location
}

func ProvideConfig(cfg config.Config) (Config, error) {
	loc, err := calendar.LoadLocation(cfg.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return Config{Location: loc}, nil
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}
