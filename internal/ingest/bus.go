// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/config"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
)

// Transport names accepted in IngestConfig.Transport.
const (
	TransportChannel = "gochannel"
	TransportNATS    = "nats"
)

// Metadata keys set on published mention messages.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataNCTID         = "nct_id"
)

// ErrBusClosed is returned when publishing on a closed bus.
var ErrBusClosed = errors.New("ingest bus closed")

// Bus carries facility mentions between producers and the Consumer.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	transport  string
	redeliver  bool // Nack leads to a bounded redelivery
	closers    []func() error
	logger     zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the bus selected by cfg.Transport.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBus(cfg config.IngestConfig, logger zerolog.Logger) (*Bus, error) {
	switch cfg.Transport {
	case TransportNATS:
		return newNATSBus(cfg, logger)
	case TransportChannel, "":
		return NewChannelBus(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown ingest transport %q", cfg.Transport)
	}
}

// NewChannelBus creates an in-process bus. Messages published while nobody
// is subscribed are dropped.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewChannelBus(cfg config.IngestConfig, logger zerolog.Logger) *Bus {
	logger = logging.Component(logger, "ingest-bus")
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, watermillLogger(logger))

	return &Bus{
		publisher:  ch,
		subscriber: ch,
		topic:      topicOrDefault(cfg.Topic),
		transport:  TransportChannel,
		closers:    []func() error{ch.Close},
		logger:     logger,
	}
}

// Topic returns the topic mentions are published on.
func (b *Bus) Topic() string {
	return b.topic
}

// Transport returns the transport name.
func (b *Bus) Transport() string {
	return b.transport
}

// PublishMention encodes mention and publishes it. The correlation ID from
// ctx, if any, travels in the message metadata.
func (b *Bus) PublishMention(ctx context.Context, mention *models.FacilityMention) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	payload, err := json.Marshal(mention)
	if err != nil {
		return fmt.Errorf("marshal mention: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	if mention.Study != nil && mention.Study.NCTID != "" {
		msg.Metadata.Set(MetadataNCTID, mention.Study.NCTID)
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish mention: %w", err)
	}
	return nil
}

// Subscribe returns the stream of mention messages. The channel closes when
// ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}
	return msgs, nil
}

// Close releases the transport. It is safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	b.logger.Info().Str("transport", b.transport).Msg("ingest bus closed")
	return errors.Join(errs...)
}

// DecodeMention reads a mention from a bus message.
func DecodeMention(msg *message.Message) (models.FacilityMention, error) {
	var m models.FacilityMention
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return m, fmt.Errorf("unmarshal mention %s: %w", msg.UUID, err)
	}
	return m, nil
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return "facility.mentions"
	}
	return topic
}

// watermillLogger routes watermill's logs through zerolog.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func watermillLogger(logger zerolog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger(logger))
}
