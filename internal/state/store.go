// Package state holds the collections the console works on (connections,
// entities, findings and jobs) and reconciles them with the gateway.
package state

import (
	"context"
	"io"
	"log"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Ashfaaq98/dossier-console/internal/model"
)

// Gateway is the subset of the backend client the store needs
type Gateway interface {
	ListConnections(ctx context.Context) ([]model.DatabaseConnection, error)
	CreateConnection(ctx context.Context, conn model.DatabaseConnection) (model.DatabaseConnection, error)
	DeleteConnection(ctx context.Context, id int64) error
	ListEntities(ctx context.Context) ([]model.MonitoredEntity, error)
	CreateEntity(ctx context.Context, entity model.MonitoredEntity) (model.MonitoredEntity, error)
	DeleteEntity(ctx context.Context, id int64) error
	ListFindings(ctx context.Context) ([]model.Finding, error)
	ListJobs(ctx context.Context) ([]model.ExecutionJob, error)
}

// Cache keeps the last applied copy of each collection for offline use
type Cache interface {
	ReplaceConnections(ctx context.Context, conns []model.DatabaseConnection) error
	ReplaceEntities(ctx context.Context, entities []model.MonitoredEntity) error
	ReplaceFindings(ctx context.Context, findings []model.Finding) error
	ReplaceJobs(ctx context.Context, jobs []model.ExecutionJob) error
	ListConnections(ctx context.Context) ([]model.DatabaseConnection, error)
	ListEntities(ctx context.Context) ([]model.MonitoredEntity, error)
	ListFindings(ctx context.Context) ([]model.Finding, error)
	ListJobs(ctx context.Context) ([]model.ExecutionJob, error)
}

// Collection names one of the store's collections
type Collection string

const (
	Connections Collection = "connections"
	Entities    Collection = "entities"
	Findings    Collection = "findings"
	Jobs        Collection = "jobs"
)

// EventKind says what happened to a collection
type EventKind string

const (
	Started EventKind = "started"
	Loaded  EventKind = "loaded"
	Added   EventKind = "added"
	Deleted EventKind = "deleted"
	Failed  EventKind = "failed"
	// Stale means a response was dropped because a newer one was already applied.
	Stale EventKind = "stale"
)

// Event is delivered to subscribers after every state change
type Event struct {
	Collection Collection
	Kind       EventKind
	Err        error
}

// Store is the console's state container. All methods are safe for
// concurrent use; readers get copies.
//
// Every request takes a per-collection sequence number when issued. A load
// response is applied only if no newer request for that collection has
// been applied yet, so a slow response can never overwrite a fresher one.
type Store struct {
	gw     Gateway
	cache  Cache
	logger *log.Logger

	mu          sync.RWMutex
	connections []model.DatabaseConnection
	entities    []model.MonitoredEntity
	findings    []model.Finding
	jobs        []model.ExecutionJob
	issued      map[Collection]uint64
	applied     map[Collection]uint64
	pending     int
	err         error

	subMu     sync.RWMutex
	subs      map[int]func(Event)
	nextSubID int
}

// New creates an empty store. cache may be nil.
func New(gw Gateway, cache Cache, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{
		gw:      gw,
		cache:   cache,
		logger:  logger,
		issued:  make(map[Collection]uint64),
		applied: make(map[Collection]uint64),
		subs:    make(map[int]func(Event)),
	}
}

// Subscribe registers fn for state events and returns a function that
// removes it. fn runs on the goroutine that caused the change.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// IsLoading reports whether any request for any collection is outstanding.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Error returns the last failure, or nil. The slot holds one error; a new
// failure replaces it.
func (s *Store) Error() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClearError empties the error slot after the consumer has shown it.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// ReportError puts an error from outside the store's own requests, such as
// a failed analysis submission, into the error slot.
func (s *Store) ReportError(c Collection, op string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	ev := s.failLocked(c, op, err)
	s.mu.Unlock()
	s.notify(ev)
}

// TakeError returns and clears the error slot in one step.
func (s *Store) TakeError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.err
	s.err = nil
	return err
}

func (s *Store) Connections() []model.DatabaseConnection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.connections)
}

func (s *Store) Entities() []model.MonitoredEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entities)
}

func (s *Store) Findings() []model.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.findings)
}

func (s *Store) Jobs() []model.ExecutionJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.jobs)
}

// EntityNames returns the names of the loaded entities in order.
func (s *Store) EntityNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.EntityNames(s.entities)
}

// Connection looks up a loaded connection by id.
func (s *Store) Connection(id int64) (model.DatabaseConnection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.connections {
		if c.Key() == id {
			return c, true
		}
	}
	return model.DatabaseConnection{}, false
}

// LoadAll refreshes every collection concurrently and returns the first
// failure. Each failure also lands in the error slot.
func (s *Store) LoadAll(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return s.LoadConnections(ctx) })
	g.Go(func() error { return s.LoadEntities(ctx) })
	g.Go(func() error { return s.LoadFindings(ctx) })
	g.Go(func() error { return s.LoadJobs(ctx) })
	return g.Wait()
}
