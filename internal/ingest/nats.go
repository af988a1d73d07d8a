// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

//go:build nats

package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/siteselect/internal/config"
	"github.com/tomtom215/siteselect/internal/logging"
)

const (
	natsDurablePrefix = "siteselect"
	natsMaxDeliver    = 5
	natsAckWait       = 30 * time.Second
	natsCloseTimeout  = 30 * time.Second
	natsStreamMaxAge  = 7 * 24 * time.Hour
)

// newNATSBus connects to NATS JetStream, starting an embedded server first
// when cfg.EmbeddedNATS is set. The stream is created before the watermill
// publisher and subscriber bind to it.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newNATSBus(cfg config.IngestConfig, logger zerolog.Logger) (*Bus, error) {
	logger = logging.Component(logger, "ingest-bus")
	wmLogger := watermillLogger(logger)
	topic := topicOrDefault(cfg.Topic)

	var closers []func() error
	url := cfg.NATSURL
	if cfg.EmbeddedNATS {
		ns, err := startEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		url = ns.ClientURL()
		closers = append(closers, func() error {
			ns.Shutdown()
			ns.WaitForShutdown()
			return nil
		})
		logger.Info().Str("url", url).Msg("embedded NATS server started")
	}

	stream := streamName(topic)
	if err := ensureStream(url, stream, topic); err != nil {
		runClosers(closers)
		return nil, err
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: natsDurablePrefix,
		SubscribersCount: 1,
		AckWaitTimeout:   natsAckWait,
		CloseTimeout:     natsCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			DurablePrefix: natsDurablePrefix,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(stream),
				natsgo.MaxDeliver(natsMaxDeliver),
				natsgo.AckWait(natsAckWait),
				natsgo.DeliverAll(),
			},
		},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		runClosers(closers)
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	// Close order: subscriber and publisher before the embedded server.
	closers = append([]func() error{sub.Close, pub.Close}, closers...)

	logger.Info().Str("url", url).Str("stream", stream).Str("topic", topic).Msg("NATS ingest bus ready")
	return &Bus{
		publisher:  pub,
		subscriber: sub,
		topic:      topic,
		transport:  TransportNATS,
		redeliver:  true,
		closers:    closers,
		logger:     logger,
	}, nil
}

func startEmbeddedServer(cfg config.IngestConfig) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "siteselect-ingest",
		Host:       "127.0.0.1",
		Port:       cfg.NATSPort,
		JetStream:  true,
		StoreDir:   cfg.NATSStoreDir,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()
	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return ns, nil
}

// ensureStream creates the JetStream stream backing topic if it is missing.
func ensureStream(url, stream, topic string) error {
	nc, err := natsgo.Connect(url, natsgo.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("open JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.AddStream(&natsgo.StreamConfig{
		Name:     stream,
		Subjects: []string{topic},
		Storage:  natsgo.FileStorage,
		MaxAge:   natsStreamMaxAge,
	}, natsgo.Context(ctx))
	if err != nil && !errors.Is(err, natsgo.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("create stream %s: %w", stream, err)
	}
	return nil
}

// streamName derives a valid stream name from a subject: NATS stream names
// may not contain dots or wildcards.
func streamName(topic string) string {
	r := strings.NewReplacer(".", "_", "*", "ALL", ">", "ALL", " ", "_")
	return strings.ToUpper(r.Replace(topic))
}

func runClosers(closers []func() error) {
	for _, c := range closers {
		_ = c()
	}
}
