package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"airguard/internal/config"
	"airguard/internal/dot11"
	"airguard/internal/normalize"
)

// StartKafka consumes capture messages published by remote taps. Each Kafka
// message holds one capture message or a JSON array of them; the message key,
// when set, names the tap.
func StartKafka(ctx context.Context, cfg *config.Manager, out chan<- dot11.Capture, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	go func() {
		defer reader.Close()
		backoff := 200 * time.Millisecond
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				if !BackoffSleep(ctx, backoff) {
					return
				}
				if backoff < 5*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = 200 * time.Millisecond
			handleKafkaMessage(ctx, m, out, logger)
		}
	}()
}

func handleKafkaMessage(ctx context.Context, m kafka.Message, out chan<- dot11.Capture, logger *slog.Logger) int {
	msgs, err := normalize.DecodeMessages(m.Value)
	if err != nil {
		if logger != nil {
			logger.Warn("kafka message rejected", "partition", m.Partition, "offset", m.Offset, "err", err)
		}
		return 0
	}
	tap := string(m.Key)
	if tap == "" {
		tap = "kafka"
	}
	sent := 0
	for _, msg := range msgs {
		c, err := normalize.Capture(msg, tap)
		if err != nil {
			if logger != nil {
				logger.Warn("kafka capture rejected", "offset", m.Offset, "err", err)
			}
			continue
		}
		if SendNonBlocking(ctx, out, c, "kafka", logger) {
			sent++
		}
	}
	return sent
}
