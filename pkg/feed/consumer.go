// Package feed applies incremental vocabulary updates read from a Kafka
// topic. Each message value is a JSON event:
//
//	{"op": "upsert", "term": "cab", "score": 9}
//	{"op": "remove", "term": "cab"}
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bastiangx/autocomplete/internal/logger"
	"github.com/bastiangx/autocomplete/pkg/config"
	"github.com/bastiangx/autocomplete/pkg/metrics"
	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/segmentio/kafka-go"
)

// Event operations.
const (
	OpUpsert = "upsert"
	OpRemove = "remove"
)

// ErrUnknownOp is returned for an event whose op is neither upsert nor remove.
var ErrUnknownOp = errors.New("unknown feed operation")

// Event is one vocabulary update.
type Event struct {
	Op    string  `json:"op"`
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// Updater is the part of the completer the feed mutates.
type Updater interface {
	Upsert(term string, score float64) (suggest.TermID, error)
	Remove(term string) error
	Stats() map[string]int
}

// MessageHandler is called for each Kafka message.
type MessageHandler func(ctx context.Context, key, value []byte) error

// reader is the subset of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads update events from a topic and hands them to a MessageHandler.
type Consumer struct {
	reader  reader
	handler MessageHandler
	logger  *log.Logger
}

// NewConsumer creates a consumer group reader for cfg.Topic.
func NewConsumer(cfg config.FeedConfig, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, handler)
}

func newConsumer(r reader, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  logger.New("feed"),
	}
}

// Start fetches and handles messages until ctx is cancelled. A message is
// committed only after its handler succeeds.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Feed consumer started")
	defer c.reader.Close()
	for {
		if ctx.Err() != nil {
			c.logger.Info("Feed consumer stopping", "reason", ctx.Err())
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Fetching message", "err", err)
			continue
		}
		c.logger.Debug("Message received", "partition", msg.Partition, "offset", msg.Offset)

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Warn("Dropping message", "partition", msg.Partition, "offset", msg.Offset, "err", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Committing message", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
	}
}

// DecodeEvent parses a message value.
func DecodeEvent(value []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(value, &ev); err != nil {
		return ev, fmt.Errorf("decoding feed event: %w", err)
	}
	return ev, nil
}

// HandleEvent returns a handler applying events to u. Removing a term that
// is already gone succeeds, so replaying a topic is harmless.
func HandleEvent(u Updater, m *metrics.Metrics) MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		ev, err := DecodeEvent(value)
		if err != nil {
			return err
		}

		switch ev.Op {
		case OpUpsert:
			_, err = u.Upsert(ev.Term, ev.Score)
			m.ObserveUpsert(err)
		case OpRemove:
			err = u.Remove(ev.Term)
			if errors.Is(err, suggest.ErrNotFound) {
				log.Debugf("Feed remove of missing term '%s'", ev.Term)
				err = nil
			}
		default:
			return fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
		}
		if err != nil {
			return err
		}
		m.SetTerms(u.Stats()["totalTerms"])
		return nil
	}
}
