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

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/metrics"
)

// Consumer resolves mentions arriving on a Bus. It implements suture.Service.
//
// Invalid and rejected mentions are acknowledged so they are not redelivered.
// A mention that fails to resolve is negatively acknowledged when the
// transport bounds redelivery (NATS) and acknowledged otherwise.
type Consumer struct {
	bus      *Bus
	pipeline *Pipeline
	logger   zerolog.Logger
	ready    chan struct{}
	once     sync.Once

	mu    sync.Mutex
	stats Summary
}

// NewConsumer creates a consumer for bus.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewConsumer(bus *Bus, pipeline *Pipeline, logger zerolog.Logger) *Consumer {
	return &Consumer{
		bus:      bus,
		pipeline: pipeline,
		logger:   logging.Component(logger, "ingest-consumer"),
		ready:    make(chan struct{}),
		stats:    NewSummary(),
	}
}

// Ready is closed once the first subscription is established. Mentions
// published on an in-process bus before that are dropped.
func (c *Consumer) Ready() <-chan struct{} {
	return c.ready
}

// Serve consumes until ctx is cancelled or the subscription closes.
func (c *Consumer) Serve(ctx context.Context) error {
	msgs, err := c.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	c.once.Do(func() { close(c.ready) })
	c.logger.Info().
		Str("topic", c.bus.Topic()).
		Str("transport", c.bus.Transport()).
		Msg("ingest consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("ingest consumer stopping")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription to %s closed", c.bus.Topic())
			}
			c.handle(ctx, msg)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (c *Consumer) String() string {
	return "ingest-consumer"
}

// Stats returns the running totals since the consumer was created.
func (c *Consumer) Stats() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := NewSummary()
	out.Merge(c.stats)
	return out
}

func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	log := logging.Ctx(ctx, c.logger)

	one := NewSummary()
	one.Processed = 1

	mention, err := DecodeMention(msg)
	if err != nil {
		metrics.IngestRecords.WithLabelValues(string(OutcomeInvalid)).Inc()
		log.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("undecodable mention dropped")
		one.Invalid = 1
		one.addError(RecordError{Outcome: OutcomeInvalid, Error: err.Error()})
		c.record(one)
		msg.Ack()
		return
	}

	result, outcome, err := c.pipeline.Process(ctx, mention)
	switch outcome {
	case OutcomeResolved:
		one.Resolved[result.Method] = 1
		one.Degraded = result.Degraded
		log.Debug().
			Str("message_uuid", msg.UUID).
			Str("site_id", result.SiteID).
			Str("method", string(result.Method)).
			Msg("mention resolved")
	case OutcomeInvalid:
		one.Invalid = 1
	case OutcomeRejected:
		one.Rejected = 1
	case OutcomeFailed:
		one.Failed = 1
	}
	if err != nil {
		one.addError(RecordError{Name: mention.Name, Outcome: outcome, Error: err.Error()})
	}
	c.record(one)

	if outcome == OutcomeFailed && c.bus.redeliver && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("mention failed, requesting redelivery")
		msg.Nack()
		return
	}
	if outcome == OutcomeFailed {
		log.Error().Err(err).Str("message_uuid", msg.UUID).Msg("mention failed")
	}
	msg.Ack()
}

//nolint:gocritic // hugeParam: one record's summary
func (c *Consumer) record(one Summary) {
	c.mu.Lock()
	c.stats.Merge(one)
	c.mu.Unlock()
}
