package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"devconsole/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Tail reads audit events until ctx is cancelled, handing each decoded
// message to handle. Undecodable messages are committed and skipped.
func Tail(ctx context.Context, cfg ConsumerConfig, handle func(context.Context, streaming.Message) error) error {
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = defaultTopic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	tracer := otel.Tracer("devconsole/kafka")
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("event decode error", "offset", message.Offset, "err", err)
			_ = reader.CommitMessages(ctx, message)
			continue
		}

		msgCtx := extractTrace(ctx, &message)
		msgCtx, span := tracer.Start(msgCtx, "console.consume_event", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("message.type", string(decoded.Type)),
			attribute.Int64("project.id", decoded.ProjectID),
		)
		err = handle(msgCtx, decoded)
		span.End()
		if err != nil {
			return err
		}
		if err := reader.CommitMessages(ctx, message); err != nil {
			slog.Warn("kafka commit error", "err", err)
		}
	}
}
