package history

import (
	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

// NewStore opens the history store described by cfg.
func NewStore(cfg config.HistoryConfig) (Store, error) {
	if cfg.RedisURL == "" {
		return nil, errors.ValidationError("history redis_url is not configured")
	}
	return NewRedisStore(cfg.RedisURL, cfg.TTL)
}
