package bus

import (
	"context"
	"io"
	"log"
)

// Stream names
const (
	AnalysesStream   = "analyses"
	JobUpdatesStream = "job_updates"
)

// Bus defines the interface for event bus implementations
type Bus interface {
	// PublishAnalysis announces a submitted analysis run on the analyses stream
	PublishAnalysis(ctx context.Context, msg AnalysisMessage) error

	// PublishJobUpdate announces a job status change on the job_updates stream
	PublishJobUpdate(ctx context.Context, msg JobUpdateMessage) error

	// ReadJobUpdates blocks reading the job_updates stream as part of group
	ReadJobUpdates(ctx context.Context, group, consumer string, handler func(ctx context.Context, update JobUpdateMessage) error) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL
// If redisURL is empty or unreachable, returns a NullBus
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	redisBus, err := NewRedisBus(redisURL, logger)
	if err == nil {
		return redisBus
	}

	logger.Printf("Redis unavailable, events stay local: %v", err)
	return NewNullBus(logger)
}
