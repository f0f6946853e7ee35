package state

import (
	"context"
	"fmt"
	"slices"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// begin registers an outstanding request and returns its sequence number.
func (s *Store) begin(c Collection) uint64 {
	s.mu.Lock()
	s.issued[c]++
	seq := s.issued[c]
	s.pending++
	s.mu.Unlock()

	s.notify(Event{Collection: c, Kind: Started})
	return seq
}

// fail records err in the error slot. Called with s.mu held.
func (s *Store) failLocked(c Collection, op string, err error) Event {
	s.err = err
	s.logger.Printf("%s %s failed: %v", op, c, err)
	return Event{Collection: c, Kind: Failed, Err: err}
}

// load fetches a whole collection and, unless a newer request was already
// applied, replaces it with apply. It reports whether the response was used.
func load[T any](ctx context.Context, s *Store, c Collection, fetch func(context.Context) ([]T, error), apply func([]T)) (bool, error) {
	seq := s.begin(c)
	items, err := fetch(ctx)

	s.mu.Lock()
	s.pending--
	if err != nil {
		ev := s.failLocked(c, "load", err)
		s.mu.Unlock()
		s.notify(ev)
		return false, err
	}
	if last := s.applied[c]; seq <= last {
		s.mu.Unlock()
		s.logger.Printf("dropping stale %s response (seq %d, applied %d)", c, seq, last)
		s.notify(Event{Collection: c, Kind: Stale})
		return false, nil
	}
	s.applied[c] = seq
	if items == nil {
		items = []T{}
	}
	apply(items)
	s.mu.Unlock()

	s.notify(Event{Collection: c, Kind: Loaded})
	return true, nil
}

// mutate runs a create or delete request. On success apply changes the
// collection; on failure the collection is left alone and the error slot set.
func mutate[R any](ctx context.Context, s *Store, c Collection, op string, kind EventKind, call func(context.Context) (R, error), apply func(R)) (R, error) {
	seq := s.begin(c)
	result, err := call(ctx)

	s.mu.Lock()
	s.pending--
	if err != nil {
		ev := s.failLocked(c, op, err)
		s.mu.Unlock()
		s.notify(ev)
		return result, err
	}
	// A load issued before this mutation must not overwrite it.
	s.applied[c] = max(s.applied[c], seq)
	apply(result)
	s.mu.Unlock()

	s.notify(Event{Collection: c, Kind: kind})
	return result, nil
}

// persist writes an applied collection to the cache. Failures are logged
// only; the cache is never authoritative.
func (s *Store) persist(ctx context.Context, c Collection, save func(context.Context) error) {
	if s.cache == nil {
		return
	}
	if err := save(ctx); err != nil {
		s.logger.Printf("failed to cache %s: %v", c, err)
	}
}

func (s *Store) LoadConnections(ctx context.Context) error {
	var loaded []model.DatabaseConnection
	ok, err := load(ctx, s, Connections, s.gw.ListConnections, func(items []model.DatabaseConnection) {
		s.connections = items
		loaded = slices.Clone(items)
	})
	if ok {
		s.persist(ctx, Connections, func(ctx context.Context) error { return s.cache.ReplaceConnections(ctx, loaded) })
	}
	return err
}

func (s *Store) LoadEntities(ctx context.Context) error {
	var loaded []model.MonitoredEntity
	ok, err := load(ctx, s, Entities, s.gw.ListEntities, func(items []model.MonitoredEntity) {
		s.entities = items
		loaded = slices.Clone(items)
	})
	if ok {
		s.persist(ctx, Entities, func(ctx context.Context) error { return s.cache.ReplaceEntities(ctx, loaded) })
	}
	return err
}

func (s *Store) LoadFindings(ctx context.Context) error {
	var loaded []model.Finding
	ok, err := load(ctx, s, Findings, s.gw.ListFindings, func(items []model.Finding) {
		s.findings = items
		loaded = slices.Clone(items)
	})
	if ok {
		s.persist(ctx, Findings, func(ctx context.Context) error { return s.cache.ReplaceFindings(ctx, loaded) })
	}
	return err
}

// LoadJobs replaces the jobs collection. A job the backend reports in an
// earlier lifecycle stage than the one already shown keeps its newer status.
func (s *Store) LoadJobs(ctx context.Context) error {
	var loaded []model.ExecutionJob
	ok, err := load(ctx, s, Jobs, s.gw.ListJobs, func(items []model.ExecutionJob) {
		s.jobs = s.reconcileJobsLocked(items)
		loaded = slices.Clone(s.jobs)
	})
	if ok {
		s.persist(ctx, Jobs, func(ctx context.Context) error { return s.cache.ReplaceJobs(ctx, loaded) })
	}
	return err
}

func (s *Store) reconcileJobsLocked(incoming []model.ExecutionJob) []model.ExecutionJob {
	known := make(map[int64]model.JobStatus, len(s.jobs))
	for _, j := range s.jobs {
		known[j.ID] = j.Status
	}
	for i, j := range incoming {
		prev, ok := known[j.ID]
		if ok && !prev.CanTransition(j.Status) {
			s.logger.Printf("job %d reported %s after %s, keeping %s", j.ID, j.Status, prev, prev)
			incoming[i].Status = prev
		}
	}
	return incoming
}

// AddConnection creates conn on the backend and appends the stored record.
func (s *Store) AddConnection(ctx context.Context, conn model.DatabaseConnection) (model.DatabaseConnection, error) {
	if err := conn.Validate(); err != nil {
		return model.DatabaseConnection{}, err
	}
	return mutate(ctx, s, Connections, "add", Added,
		func(ctx context.Context) (model.DatabaseConnection, error) { return s.gw.CreateConnection(ctx, conn) },
		func(created model.DatabaseConnection) {
			s.connections = appendUnique(s.connections, created, model.DatabaseConnection.Key)
		})
}

// AddEntity creates entity on the backend and appends the stored record.
func (s *Store) AddEntity(ctx context.Context, entity model.MonitoredEntity) (model.MonitoredEntity, error) {
	if err := entity.Validate(); err != nil {
		return model.MonitoredEntity{}, err
	}
	return mutate(ctx, s, Entities, "add", Added,
		func(ctx context.Context) (model.MonitoredEntity, error) { return s.gw.CreateEntity(ctx, entity) },
		func(created model.MonitoredEntity) {
			s.entities = appendUnique(s.entities, created, model.MonitoredEntity.Key)
		})
}

func (s *Store) DeleteConnection(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, Connections, "delete", Deleted,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.gw.DeleteConnection(ctx, id) },
		func(struct{}) {
			s.connections = removeByKey(s.connections, id, model.DatabaseConnection.Key)
		})
	return err
}

func (s *Store) DeleteEntity(ctx context.Context, id int64) error {
	_, err := mutate(ctx, s, Entities, "delete", Deleted,
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.gw.DeleteEntity(ctx, id) },
		func(struct{}) {
			s.entities = removeByKey(s.entities, id, model.MonitoredEntity.Key)
		})
	return err
}

// appendUnique appends item unless a record with the same non-zero key is
// already present, in which case that record is replaced in place.
func appendUnique[T any](items []T, item T, key func(T) int64) []T {
	k := key(item)
	if k != 0 {
		if i := slices.IndexFunc(items, func(x T) bool { return key(x) == k }); i >= 0 {
			out := slices.Clone(items)
			out[i] = item
			return out
		}
	}
	return append(slices.Clone(items), item)
}

func removeByKey[T any](items []T, id int64, key func(T) int64) []T {
	return slices.DeleteFunc(slices.Clone(items), func(x T) bool { return key(x) == id })
}

// Restore fills the collections from the cache, for starting offline.
// Restored data counts as a load, so a live response issued later wins.
func (s *Store) Restore(ctx context.Context) error {
	if s.cache == nil {
		return fmt.Errorf("no cache configured")
	}
	if _, err := load(ctx, s, Connections, s.cache.ListConnections, func(items []model.DatabaseConnection) { s.connections = items }); err != nil {
		return fmt.Errorf("failed to restore connections: %w", err)
	}
	if _, err := load(ctx, s, Entities, s.cache.ListEntities, func(items []model.MonitoredEntity) { s.entities = items }); err != nil {
		return fmt.Errorf("failed to restore entities: %w", err)
	}
	if _, err := load(ctx, s, Findings, s.cache.ListFindings, func(items []model.Finding) { s.findings = items }); err != nil {
		return fmt.Errorf("failed to restore findings: %w", err)
	}
	if _, err := load(ctx, s, Jobs, s.cache.ListJobs, func(items []model.ExecutionJob) { s.jobs = items }); err != nil {
		return fmt.Errorf("failed to restore jobs: %w", err)
	}
	return nil
}
