package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/ShipBox/internal/metrics"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const defaultRetryBackoff = 500 * time.Millisecond

// ErrSkip: сообщение не обработать ни с какой попытки. Consumer коммитит его и идёт дальше.
var ErrSkip = errors.New("skip message")

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

type Handler func(ctx context.Context, msg Message) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// Retries: сколько раз повторить обработчик при ошибке, отличной от ErrSkip.
	Retries      int
	RetryBackoff time.Duration
}

type Consumer struct {
	r   messageReader
	cfg ConsumerConfig
	log *zap.Logger
}

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) *Consumer {
	rc := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if cfg.GroupID != "" {
		rc.GroupTopics = []string{cfg.Topic}
	} else {
		rc.Topic = cfg.Topic
	}
	return newConsumerWithReader(kafka.NewReader(rc), cfg, log)
}

func newConsumerWithReader(r messageReader, cfg ConsumerConfig, log *zap.Logger) *Consumer {
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{r: r, cfg: cfg, log: log}
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume читает сообщения до ошибки или отмены ctx. Offset коммитится после
// успешной обработки или ErrSkip; исчерпав повторы, Consume останавливается без коммита.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		km, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		msg := Message{
			Topic:     km.Topic,
			Partition: km.Partition,
			Offset:    km.Offset,
			Key:       km.Key,
			Value:     km.Value,
			Time:      km.Time,
		}

		err = c.handle(ctx, handler, msg)
		switch {
		case err == nil:
			metrics.QueueMessagesTotal.WithLabelValues(msg.Topic, "ok").Inc()
		case errors.Is(err, ErrSkip):
			metrics.QueueMessagesTotal.WithLabelValues(msg.Topic, "skipped").Inc()
			c.log.Warn("skip message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		default:
			metrics.QueueMessagesTotal.WithLabelValues(msg.Topic, "failed").Inc()
			return errors.Wrapf(err, "handle message %s/%d@%d", msg.Topic, msg.Partition, msg.Offset)
		}

		if err := c.r.CommitMessages(ctx, km); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler Handler, msg Message) error {
	for attempt := 0; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil || errors.Is(err, ErrSkip) || attempt >= c.cfg.Retries {
			return err
		}
		c.log.Warn("retry message",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(c.cfg.RetryBackoff * time.Duration(attempt+1)):
		}
	}
}

// DecodeJSON разбирает значение сообщения; битый JSON оборачивается в ErrSkip.
func DecodeJSON(msg Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return errors.Wrapf(ErrSkip, "decode %s@%d: %v", msg.Topic, msg.Offset, err)
	}
	return nil
}
