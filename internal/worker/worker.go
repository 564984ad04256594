package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"todoweb/internal/models"
	"todoweb/internal/queue"
	"todoweb/internal/repository"
	"todoweb/pkg/logger"
)

// Run starts the Kafka consumer: reads todo activity events and persists them
// to the todo_events audit table. Returns when ctx is canceled. One consumer
// per process; scale by running more replicas (the consumer group shares
// partitions).
func Run(ctx context.Context, events repository.EventRepo) {
	brokers := queue.Brokers()
	if len(brokers) == 0 {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    queue.Topic(),
		GroupID:  "todo-activity-workers",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	logger.Info(ctx, "Kafka consumer started", "topic", queue.Topic())
	consume(ctx, reader, events)
}

// messageSource is the slice of *kafka.Reader the consume loop needs.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func consume(ctx context.Context, src messageSource, events repository.EventRepo) {
	for {
		msg, err := src.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, events, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
			// Commit anyway to avoid a poison pill blocking the partition
			_ = src.CommitMessages(ctx, msg)
			continue
		}
		if err := src.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
	}
}

func handleMessage(ctx context.Context, events repository.EventRepo, payload []byte) error {
	var ev models.TodoEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	switch ev.Action {
	case "create", "update", "delete":
	default:
		return fmt.Errorf("unknown action %q", ev.Action)
	}
	return events.Insert(ctx, ev)
}
