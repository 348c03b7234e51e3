// Fleetwatch - Fleet Tracking and Live Vehicle Location Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetwatch

package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/fleetwatch/internal/logging"
	"github.com/tomtom215/fleetwatch/internal/models"
)

// Broadcaster is the hub side of the feed.
type Broadcaster interface {
	Publish(vehicleID string, sample models.PositionSample, originID uint64)
}

// Source yields relayed messages.
type Source interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	InstanceID() string
}

// Feed forwards samples accepted by other instances into the local hub.
// Samples published by this instance are skipped since ingest already
// broadcast them.
type Feed struct {
	source Source
	hub    Broadcaster
	topic  string
}

// NewFeed subscribes hub to topic on source.
func NewFeed(source Source, hub Broadcaster, topic string) *Feed {
	return &Feed{source: source, hub: hub, topic: topic}
}

// Serve runs until ctx is canceled or the subscription closes. It
// implements suture.Service.
func (f *Feed) Serve(ctx context.Context) error {
	messages, err := f.source.Subscribe(ctx, f.topic)
	if err != nil {
		return err
	}
	logging.Info().Str("topic", f.topic).Msg("Relay feed started")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Relay feed stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			f.handle(msg)
		}
	}
}

func (f *Feed) handle(msg *message.Message) {
	defer msg.Ack()

	if msg.Metadata.Get(MetadataOrigin) == f.source.InstanceID() {
		return
	}
	sample, err := Decode(msg)
	if err != nil {
		logging.Warn().Err(err).Msg("failed to decode relayed sample")
		return
	}
	if sample.VehicleID == "" {
		return
	}
	f.hub.Publish(sample.VehicleID, sample, 0)
}
