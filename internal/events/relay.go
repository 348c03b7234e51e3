// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/fleetwatch/internal/config"
	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/metrics"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// Metadata keys set on every relayed message.
const (
	MetadataVehicleID = "vehicle_id"
	MetadataOrigin    = "origin_instance"
)

const breakerName = "event_relay"

// ErrRelayClosed is returned by Publish after Close.
var ErrRelayClosed = errors.New("relay is closed")

// Relay publishes accepted samples to the message bus.
type Relay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	cb         *gobreaker.CircuitBreaker[interface{}]
	prefix     string
	instanceID string
	usesNATS   bool
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewRelay connects to NATS when cfg.NATSURL is set and otherwise uses an
// in-process gochannel pub/sub.
func NewRelay(cfg *config.EventsConfig) (*Relay, error) {
	logger := logging.NewWatermillAdapter()
	prefix := strings.TrimSuffix(cfg.TopicPrefix, ".")
	if prefix == "" {
		prefix = "fleet.location"
	}

	r := &Relay{
		prefix:     prefix,
		instanceID: uuid.NewString(),
		logger:     logger,
		cb:         newBreaker(),
	}

	if cfg.NATSURL == "" {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		r.publisher, r.subscriber = ch, ch
		return r, nil
	}

	natsOpts := natsOptions(logger)
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: "", // every instance sees every sample
		SubscribersCount: 1,
		CloseTimeout:     10 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	r.publisher, r.subscriber, r.usesNATS = pub, sub, true
	return r, nil
}

func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

func newBreaker() *gobreaker.CircuitBreaker[interface{}] {
	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

// Topic returns the topic for a vehicle.
func (r *Relay) Topic(vehicleID string) string {
	return r.prefix + "." + vehicleID
}

// WildcardTopic matches every vehicle topic on NATS.
func (r *Relay) WildcardTopic() string {
	return r.prefix + ".>"
}

// InstanceID identifies this process in message metadata.
func (r *Relay) InstanceID() string {
	return r.instanceID
}

// UsesNATS reports whether the relay crosses process boundaries.
func (r *Relay) UsesNATS() bool {
	return r.usesNATS
}

// Publish sends sample to its vehicle topic.
func (r *Relay) Publish(ctx context.Context, sample models.PositionSample) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRelayClosed
	}

	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("serialize sample: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set(MetadataVehicleID, sample.VehicleID)
	msg.Metadata.Set(MetadataOrigin, r.instanceID)
	msg.SetContext(ctx)

	topic := r.Topic(sample.VehicleID)
	_, err = r.cb.Execute(func() (interface{}, error) {
		return nil, r.publisher.Publish(topic, msg)
	})
	if err != nil {
		metrics.RelayErrors.Inc()
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	metrics.RelayPublished.Inc()
	return nil
}

// Subscribe returns messages for topic.
func (r *Relay) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return r.subscriber.Subscribe(ctx, topic)
}

// Decode returns the sample carried by msg.
func Decode(msg *message.Message) (models.PositionSample, error) {
	var s models.PositionSample
	if err := json.Unmarshal(msg.Payload, &s); err != nil {
		return s, fmt.Errorf("decode sample %s: %w", msg.UUID, err)
	}
	if s.VehicleID == "" {
		s.VehicleID = msg.Metadata.Get(MetadataVehicleID)
	}
	return s, nil
}

// Close shuts down the publisher and subscriber.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.publisher.Close()
	if r.usesNATS {
		err = errors.Join(err, r.subscriber.Close())
	}
	return err
}
