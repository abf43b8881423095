package main

import (
	"github.com/spf13/cobra"

	"github.com/ricesearch/qac-eval/internal/history"
	"github.com/ricesearch/qac-eval/internal/pkg/errors"
)

func (a *app) recordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record published runs from Kafka into run history",
		Long: `Consume eval.completed events from the Kafka topic and save each run
summary to the Redis history store, until interrupted.

This lets 'eval --publish' runs on other machines show up in 'history'.`,
		Example: `  QAC_BUS_TYPE=kafka QAC_KAFKA_BROKERS=localhost:9092 qac-eval record`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Bus.Type != "kafka" {
				return errors.ValidationError("record requires bus.type kafka").
					WithDetail("bus_type", cfg.Bus.Type)
			}

			store, err := a.newStore(cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()

			b, err := a.newBus(cfg.Bus, log)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := cmd.Context()
			if err := b.Subscribe(ctx, cfg.Bus.Topic, history.Recorder(store, log)); err != nil {
				log.WithError(err).Error("Failed to subscribe", "topic", cfg.Bus.Topic)
				return err
			}

			log.Info("Recording runs", "topic", cfg.Bus.Topic, "group", cfg.Bus.KafkaGroup)
			<-ctx.Done()
			log.Info("Stopping recorder")
			return nil
		},
	}
}
