package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// streamCap bounds each stream; XADD trims the oldest entries.
	streamCap   = 10000
	readBatch   = 10
	readBlock   = time.Second
	readBackoff = 5 * time.Second
	dialTimeout = 5 * time.Second
)

// RedisBus carries analysis submissions and job status changes between
// consoles and the workers that run the jobs, over Redis Streams.
type RedisBus struct {
	rdb    *redis.Client
	logger *log.Logger
}

// NewRedisBus connects to redisURL and pings it once.
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[bus] ", log.LstdFlags)
	}
	return &RedisBus{rdb: rdb, logger: logger}, nil
}

func (rb *RedisBus) Close() error {
	return rb.rdb.Close()
}

func (rb *RedisBus) xadd(ctx context.Context, stream string, values map[string]interface{}) error {
	return rb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamCap,
		Approx: true,
		Values: values,
	}).Err()
}

func (rb *RedisBus) PublishAnalysis(ctx context.Context, msg AnalysisMessage) error {
	values, err := msg.Fields()
	if err != nil {
		return err
	}
	if err := rb.xadd(ctx, AnalysesStream, values); err != nil {
		return fmt.Errorf("failed to publish analysis for job %d: %w", msg.JobID, err)
	}
	rb.logger.Printf("Job %d submitted: %d entities, %s..%s",
		msg.JobID, len(msg.Payload.Entities), msg.Payload.StartDate, msg.Payload.EndDate)
	return nil
}

func (rb *RedisBus) PublishJobUpdate(ctx context.Context, msg JobUpdateMessage) error {
	if err := rb.xadd(ctx, JobUpdatesStream, msg.Fields()); err != nil {
		return fmt.Errorf("failed to publish job %d update: %w", msg.JobID, err)
	}
	rb.logger.Printf("Job %d is now %s", msg.JobID, msg.Status)
	return nil
}

// ensureGroup creates group on stream, starting at new entries only.
// An existing group is fine.
func (rb *RedisBus) ensureGroup(ctx context.Context, stream, group string) error {
	err := rb.rdb.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create group %s on %s: %w", group, stream, err)
	}
	return nil
}

// ReadJobUpdates delivers job updates to handler until ctx ends. Each
// consumer group sees every update once; an update the handler rejects, or
// one that does not parse, stays pending for the group.
func (rb *RedisBus) ReadJobUpdates(ctx context.Context, group, consumer string, handler func(ctx context.Context, update JobUpdateMessage) error) error {
	if err := rb.ensureGroup(ctx, JobUpdatesStream, group); err != nil {
		return err
	}
	rb.logger.Printf("Following %s as %s/%s", JobUpdatesStream, group, consumer)

	for ctx.Err() == nil {
		streams, err := rb.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{JobUpdatesStream, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			rb.logger.Printf("Reading %s failed, retrying in %s: %v", JobUpdatesStream, readBackoff, err)
			select {
			case <-ctx.Done():
			case <-time.After(readBackoff):
			}
			continue
		}

		for _, s := range streams {
			for _, entry := range s.Messages {
				rb.deliver(ctx, group, entry, handler)
			}
		}
	}
	rb.logger.Printf("Stopped following %s", JobUpdatesStream)
	return ctx.Err()
}

func (rb *RedisBus) deliver(ctx context.Context, group string, entry redis.XMessage, handler func(ctx context.Context, update JobUpdateMessage) error) {
	fields := make(map[string]string, len(entry.Values))
	for k, v := range entry.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	update, err := ParseJobUpdate(fields)
	if err == nil {
		err = handler(ctx, update)
	}
	if err != nil {
		rb.logger.Printf("Job update %s left pending: %v", entry.ID, err)
		return
	}
	if err := rb.rdb.XAck(ctx, JobUpdatesStream, group, entry.ID).Err(); err != nil {
		rb.logger.Printf("Job update %s not acknowledged: %v", entry.ID, err)
	}
}

func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.rdb.Ping(ctx).Err()
}

// GetStats reports length, entry range and group count for both streams.
// A stream that does not exist yet is left out.
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"type": "redis"}
	for _, stream := range []string{AnalysesStream, JobUpdatesStream} {
		info, err := rb.rdb.XInfoStream(ctx, stream).Result()
		if err != nil {
			continue
		}
		stats[stream+"_stream"] = map[string]interface{}{
			"length":         info.Length,
			"first_entry_id": info.FirstEntry.ID,
			"last_entry_id":  info.LastEntry.ID,
		}
		if groups, err := rb.rdb.XInfoGroups(ctx, stream).Result(); err == nil {
			stats[stream+"_consumer_groups"] = len(groups)
		}
	}
	return stats, nil
}
