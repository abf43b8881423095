package bus

import (
	"fmt"
	"strings"

	"github.com/ricesearch/qac-eval/internal/config"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration.
// When an event log is configured the bus is wrapped in a LoggedBus.
// A memory bus is only accepted together with an event log.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	var b Bus

	switch strings.ToLower(cfg.Type) {
	case "memory":
		// In-process subscribers die with the process; the event log is the only sink.
		if cfg.EventLog == "" {
			return nil, errors.New(errors.CodeValidation, "memory bus requires bus.event_log")
		}
		b = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "qac-eval"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "qac-eval",
			Logger:        log,
		})
		if err != nil {
			return nil, err
		}
		b = kb

	case "none", "":
		return nil, errors.New(errors.CodeValidation, "event bus is disabled (bus.type is none)")

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.EventLog == "" {
		return b, nil
	}

	eventLogger, err := NewEventLogger(cfg.EventLog)
	if err != nil {
		b.Close()
		return nil, err
	}
	return NewLoggedBus(b, eventLogger, log), nil
}
