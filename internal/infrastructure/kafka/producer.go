package kafka

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"devconsole/internal/domain"
	"devconsole/internal/infrastructure/telemetry"
	"devconsole/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopic = "devconsole-events"

// Publisher writes an audit copy of history and ledger writes to Kafka.
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

type PublisherConfig struct {
	Brokers []string
	Topic   string
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = defaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		MaxAttempts:            1,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             logFailedBatch,
	}
	return &Publisher{writer: writer, topic: cfg.Topic}, nil
}

// logFailedBatch reports delivery errors, which an async writer never
// returns to the caller.
func logFailedBatch(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	slog.Warn("kafka audit batch dropped", "messages", len(messages), "err", err)
}

// Close flushes buffered messages before returning.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	return p.publish(ctx, "console.publish_history", streaming.Message{
		Type:       streaming.MessageTypeCommand,
		ProjectID:  entry.ProjectID,
		OccurredAt: entry.Timestamp,
		History:    &entry,
	}, attribute.Int64("history.id", entry.ID), attribute.Int("command.exit_code", entry.ExitCode))
}

func (p *Publisher) PublishTransaction(ctx context.Context, tx domain.TransactionRequest) error {
	return p.publish(ctx, "console.publish_transaction", streaming.Message{
		Type:        streaming.MessageTypeTransaction,
		ProjectID:   tx.ProjectID,
		OccurredAt:  time.Now().UTC(),
		Transaction: &tx,
	}, attribute.Int64("tx.id", tx.ID), attribute.String("tx.status", string(tx.Status)), attribute.String("tx.network", tx.Network))
}

func (p *Publisher) publish(ctx context.Context, spanName string, msg streaming.Message, attrs ...attribute.KeyValue) error {
	tracer := otel.Tracer("devconsole/kafka")
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(append(attrs, attribute.Int64("project.id", msg.ProjectID))...)

	if sc := span.SpanContext(); sc.HasTraceID() {
		msg.TraceID = sc.TraceID().String()
	} else if _, traceIDHex, ok := telemetry.NewTraceID(); ok {
		msg.TraceID = traceIDHex
	}

	payload, err := streaming.Encode(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	out := kafka.Message{
		Key:   []byte(strconv.FormatInt(msg.ProjectID, 10)),
		Value: payload,
	}
	injectTrace(ctx, &out)
	if err = p.writer.WriteMessages(ctx, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
