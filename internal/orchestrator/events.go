package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/careline/careline/internal/referral"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream keys for the inbound trigger boundary. Referral-created and
// records-updated events may arrive over these in addition to HTTP.
const (
	referralEventStream = "careline:events:referrals"
	recordsEventStream  = "careline:events:records"
)

// EventSource consumes trigger events from Redis streams and dispatches
// them to the orchestrator and the loop. It is an alternative transport
// for the same event payloads the HTTP API accepts.
type EventSource struct {
	rdb          *redis.Client
	orchestrator *Orchestrator
	loop         *Loop
	logger       *zap.Logger
}

// NewEventSource creates a stream-backed event consumer.
func NewEventSource(redisURL string, orch *Orchestrator, loop *Loop, logger *zap.Logger) (*EventSource, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &EventSource{rdb: rdb, orchestrator: orch, loop: loop, logger: logger}, nil
}

// PublishReferralCreated enqueues a referral-created event.
func (s *EventSource) PublishReferralCreated(ctx context.Context, event referral.CreatedEvent) error {
	return s.publish(ctx, referralEventStream, event)
}

// PublishRecordsUpdated enqueues a records-updated event.
func (s *EventSource) PublishRecordsUpdated(ctx context.Context, event referral.RecordsUpdatedEvent) error {
	return s.publish(ctx, recordsEventStream, event)
}

func (s *EventSource) publish(ctx context.Context, stream string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	return nil
}

// Run consumes both event streams until the context is cancelled. Each
// event is handled inline; handler errors are logged, not fatal, since
// failures are already audited on the task ledger.
func (s *EventSource) Run(ctx context.Context) {
	lastReferral := "$"
	lastRecords := "$"

	for {
		streams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{referralEventStream, recordsEventStream, lastReferral, lastRecords},
			Block:   5 * time.Second,
		}).Result()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if err != redis.Nil {
				s.logger.Warn("event stream read failed", zap.Error(err))
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				raw, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				switch stream.Stream {
				case referralEventStream:
					lastReferral = msg.ID
					s.handleReferralCreated(ctx, raw)
				case recordsEventStream:
					lastRecords = msg.ID
					s.handleRecordsUpdated(ctx, raw)
				}
			}
		}
	}
}

func (s *EventSource) handleReferralCreated(ctx context.Context, raw string) {
	var event referral.CreatedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		s.logger.Warn("malformed referral event", zap.Error(err))
		return
	}
	if _, err := s.orchestrator.ProcessReferralCreated(ctx, event); err != nil {
		s.logger.Error("referral event processing failed",
			zap.String("referral", event.ReferralID), zap.Error(err))
	}
}

func (s *EventSource) handleRecordsUpdated(ctx context.Context, raw string) {
	var event referral.RecordsUpdatedEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		s.logger.Warn("malformed records event", zap.Error(err))
		return
	}
	if _, err := s.loop.ProcessRecordsUpdated(ctx, event); err != nil {
		s.logger.Error("records event processing failed",
			zap.String("patient", event.PatientID), zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (s *EventSource) Close() error {
	return s.rdb.Close()
}
