package bus

import (
	"context"
	"log"
)

// NullBus keeps events inside the process. It is used when no Redis URL is
// configured or Redis cannot be reached; job updates then come from polling.
type NullBus struct {
	logger *log.Logger
}

func NewNullBus(logger *log.Logger) *NullBus {
	if logger == nil {
		logger = log.New(log.Writer(), "[bus] ", log.LstdFlags)
	}
	return &NullBus{logger: logger}
}

func (nb *NullBus) Close() error { return nil }

func (nb *NullBus) PublishAnalysis(_ context.Context, msg AnalysisMessage) error {
	nb.logger.Printf("Job %d submitted (no Redis, not announced)", msg.JobID)
	return nil
}

func (nb *NullBus) PublishJobUpdate(_ context.Context, msg JobUpdateMessage) error {
	nb.logger.Printf("Job %d is now %s (no Redis, not announced)", msg.JobID, msg.Status)
	return nil
}

// ReadJobUpdates never delivers anything. It returns when ctx ends.
func (nb *NullBus) ReadJobUpdates(ctx context.Context, group, consumer string, _ func(ctx context.Context, update JobUpdateMessage) error) error {
	nb.logger.Printf("No Redis: %s/%s will not receive job updates", group, consumer)
	<-ctx.Done()
	return ctx.Err()
}

func (nb *NullBus) GetStats(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"type": "null", "status": "disabled"}, nil
}

func (nb *NullBus) HealthCheck(context.Context) error { return nil }
