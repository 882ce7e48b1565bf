package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier delivers physician-facing notifications. It is the loop's
// extension point: the core only decides when to notify, not how the
// message reaches anyone.
type Notifier interface {
	NotifySummaryUpdated(ctx context.Context, referralID, patientID string) error
	Alert(ctx context.Context, patientID, message string) error
}

// Notification is the payload written to the notification stream.
type Notification struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "summary_updated", "alert"
	ReferralID string    `json:"referral_id,omitempty"`
	PatientID  string    `json:"patient_id"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const notificationStream = "careline:notifications"

// RedisNotifier publishes notifications to a Redis stream that
// downstream consumers (paging, UI badges) read from.
type RedisNotifier struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisNotifier creates a Redis-backed notifier.
func NewRedisNotifier(redisURL string, logger *zap.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisNotifier{rdb: rdb, logger: logger}, nil
}

// NotifySummaryUpdated publishes a summary-updated notification.
func (n *RedisNotifier) NotifySummaryUpdated(ctx context.Context, referralID, patientID string) error {
	return n.publish(ctx, &Notification{
		ID:         uuid.New().String(),
		Kind:       "summary_updated",
		ReferralID: referralID,
		PatientID:  patientID,
		Message:    "Updated medical summary available for referral " + referralID,
		Timestamp:  time.Now(),
	})
}

// Alert publishes an urgent patient-level alert.
func (n *RedisNotifier) Alert(ctx context.Context, patientID, message string) error {
	return n.publish(ctx, &Notification{
		ID:        uuid.New().String(),
		Kind:      "alert",
		PatientID: patientID,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (n *RedisNotifier) publish(ctx context.Context, notif *Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return err
	}
	_, err = n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: notificationStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	n.logger.Debug("notification published",
		zap.String("kind", notif.Kind),
		zap.String("patient", notif.PatientID))
	return nil
}

// Subscribe listens for notifications. Cancel the context to stop.
func (n *RedisNotifier) Subscribe(ctx context.Context) <-chan *Notification {
	ch := make(chan *Notification, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			streams, err := n.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{notificationStream, lastID},
				Block:   5 * time.Second,
			}).Result()
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if err != redis.Nil {
					n.logger.Warn("notification read failed", zap.Error(err))
				}
				continue
			}
			for _, stream := range streams {
				for _, msg := range stream.Messages {
					lastID = msg.ID
					raw, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var notif Notification
					if err := json.Unmarshal([]byte(raw), &notif); err != nil {
						n.logger.Warn("malformed notification", zap.Error(err))
						continue
					}
					select {
					case ch <- &notif:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}

// LogNotifier writes notifications to the log only. It stands in when
// Redis is not configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifySummaryUpdated logs the notification.
func (n *LogNotifier) NotifySummaryUpdated(ctx context.Context, referralID, patientID string) error {
	n.logger.Info("notification: updated medical summary available",
		zap.String("referral", referralID),
		zap.String("patient", patientID))
	return nil
}

// Alert logs the alert.
func (n *LogNotifier) Alert(ctx context.Context, patientID, message string) error {
	n.logger.Warn("alert",
		zap.String("patient", patientID),
		zap.String("message", message))
	return nil
}
