package execution

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/Ashfaaq98/dossier-console/internal/bus"
)

// ConsumerGroup is the stream group consoles read job updates in.
const ConsumerGroup = "dossier-console"

// WatchJobs reloads the jobs collection whenever a job update arrives on
// the bus. It blocks until ctx is done. onUpdate may be nil.
func WatchJobs(ctx context.Context, b bus.Bus, jobs Jobs, consumer string, onUpdate func(bus.JobUpdateMessage), logger *log.Logger) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	err := b.ReadJobUpdates(ctx, ConsumerGroup, consumer, func(ctx context.Context, update bus.JobUpdateMessage) error {
		logger.Printf("Job %d is now %s", update.JobID, update.Status)
		if err := jobs.LoadJobs(ctx); err != nil {
			return err
		}
		if onUpdate != nil {
			onUpdate(update)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
