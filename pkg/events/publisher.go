// Package events publishes archive notifications to Redis so downstream
// consumers (search indexers, notification bots) can react to new meetings.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/meetsync/pkg/logging"
)

// Redis channels for archive events
const (
	ChannelMeetingArchived = "events.meeting.archived"
	ChannelRunCompleted    = "events.run.completed"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a BaseEvent with sensible defaults.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "meetsync",
		Version:   "1.0",
	}
}

// MeetingArchivedEvent is published when a meeting lands in the archive.
type MeetingArchivedEvent struct {
	BaseEvent

	MeetingUUID     string    `json:"meeting_uuid"`
	MeetingID       int64     `json:"meeting_id"`
	Topic           string    `json:"topic"`
	StartTime       time.Time `json:"start_time"`
	OutputLocation  string    `json:"output_location"`
	ContentHash     string    `json:"content_hash"`
	ActionItemCount int       `json:"action_item_count"`
	FromSummary     bool      `json:"from_summary"`
}

// RunCompletedEvent is published when a pipeline run finishes.
type RunCompletedEvent struct {
	BaseEvent

	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Errored   int    `json:"errored"`
	Status    string `json:"status"`

	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Publisher publishes archive events to Redis. A nil *Publisher is valid and
// publishes nothing, so callers don't need to branch on whether events are
// configured.
type Publisher struct {
	client *redis.Client
	logger logging.Logger
}

// PublisherConfig holds Redis connection configuration.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewPublisher creates a new event publisher.
func NewPublisher(client *redis.Client, logger logging.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With(logging.F("component", "event_publisher")),
	}
}

// NewPublisherFromConfig creates a publisher with a new Redis connection.
// An empty Addr returns a nil publisher with no error.
func NewPublisherFromConfig(cfg PublisherConfig, logger logging.Logger) (*Publisher, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewPublisher(client, logger), nil
}

// PublishMeetingArchived publishes an event for one archived meeting.
func (p *Publisher) PublishMeetingArchived(ctx context.Context, event MeetingArchivedEvent) error {
	if p == nil {
		return nil
	}
	event.BaseEvent = NewBaseEvent("meeting.archived")
	return p.publish(ctx, ChannelMeetingArchived, event)
}

// PublishRunCompleted publishes a completion event for a pipeline run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error {
	if p == nil {
		return nil
	}
	event.BaseEvent = NewBaseEvent("run.completed")
	event.DurationSeconds = event.CompletedAt.Sub(event.StartedAt).Seconds()
	return p.publish(ctx, ChannelRunCompleted, event)
}

// publish serializes and publishes an event to Redis.
func (p *Publisher) publish(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Error("Failed to publish event",
			logging.Err(err),
			logging.F("channel", channel))
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.logger.Debug("Event published",
		logging.F("channel", channel),
		logging.F("payload_size", len(data)))

	return nil
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
