package state

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Ashfaaq98/dossier-console/internal/errs"
	"github.com/Ashfaaq98/dossier-console/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type entitiesReply struct {
	items []model.MonitoredEntity
	err   error
}

// fakeGateway serves canned collections. When gate is set, ListEntities
// hands a reply channel to the test and waits for the answer.
type fakeGateway struct {
	mu          sync.Mutex
	connections []model.DatabaseConnection
	entities    []model.MonitoredEntity
	findings    []model.Finding
	jobs        []model.ExecutionJob
	errs        map[string]error
	calls       map[string]int
	nextID      int64
	gate        chan chan entitiesReply
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: map[string]error{}, calls: map[string]int{}, nextID: 100}
}

func (f *fakeGateway) hit(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.errs[op]
}

func (f *fakeGateway) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeGateway) ListConnections(ctx context.Context) ([]model.DatabaseConnection, error) {
	if err := f.hit("ListConnections"); err != nil {
		return nil, err
	}
	return f.connections, nil
}

func (f *fakeGateway) CreateConnection(ctx context.Context, conn model.DatabaseConnection) (model.DatabaseConnection, error) {
	if err := f.hit("CreateConnection"); err != nil {
		return model.DatabaseConnection{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	conn.ID = &id
	return conn, nil
}

func (f *fakeGateway) DeleteConnection(ctx context.Context, id int64) error {
	return f.hit("DeleteConnection")
}

func (f *fakeGateway) ListEntities(ctx context.Context) ([]model.MonitoredEntity, error) {
	if err := f.hit("ListEntities"); err != nil {
		return nil, err
	}
	if f.gate != nil {
		reply := make(chan entitiesReply)
		f.gate <- reply
		r := <-reply
		return r.items, r.err
	}
	return f.entities, nil
}

func (f *fakeGateway) CreateEntity(ctx context.Context, entity model.MonitoredEntity) (model.MonitoredEntity, error) {
	if err := f.hit("CreateEntity"); err != nil {
		return model.MonitoredEntity{}, err
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.mu.Unlock()
	entity.ID = &id
	return entity, nil
}

func (f *fakeGateway) DeleteEntity(ctx context.Context, id int64) error {
	return f.hit("DeleteEntity")
}

func (f *fakeGateway) ListFindings(ctx context.Context) ([]model.Finding, error) {
	if err := f.hit("ListFindings"); err != nil {
		return nil, err
	}
	return f.findings, nil
}

func (f *fakeGateway) ListJobs(ctx context.Context) ([]model.ExecutionJob, error) {
	if err := f.hit("ListJobs"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ExecutionJob(nil), f.jobs...), nil
}

func id(v int64) *int64 { return &v }

func entity(i int64, name string) model.MonitoredEntity {
	return model.MonitoredEntity{ID: id(i), Name: name, EntityType: model.EntityCompany}
}

func TestLoadReplacesCollections(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME"), entity(2, "Beta")}
	gw.findings = []model.Finding{{ID: 1, EntityName: "ACME", RiskLevel: model.RiskHigh}}
	gw.connections = []model.DatabaseConnection{{ID: id(5), ConnectionName: "prod", ServerAddress: "db"}}
	gw.jobs = []model.ExecutionJob{{ID: 9, Status: model.JobRunning}}

	s := New(gw, nil, nil)
	require.NoError(t, s.LoadAll(context.Background()))

	assert.Equal(t, []string{"ACME", "Beta"}, s.EntityNames())
	assert.Len(t, s.Findings(), 1)
	assert.Len(t, s.Jobs(), 1)
	conn, ok := s.Connection(5)
	require.True(t, ok)
	assert.Equal(t, "prod", conn.ConnectionName)
	assert.False(t, s.IsLoading())
	assert.NoError(t, s.Error())

	gw.entities = []model.MonitoredEntity{entity(3, "Gama")}
	require.NoError(t, s.LoadEntities(context.Background()))
	assert.Equal(t, []string{"Gama"}, s.EntityNames())
}

func TestLoadEmptyCollectionIsNotNil(t *testing.T) {
	s := New(newFakeGateway(), nil, nil)
	require.NoError(t, s.LoadFindings(context.Background()))
	assert.NotNil(t, s.Findings())
	assert.Empty(t, s.Findings())
}

func TestLoadFailureSetsErrorSlot(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadEntities(context.Background()))

	netErr := errs.Network("list entities", errors.New("connection refused"))
	gw.errs["ListEntities"] = netErr
	err := s.LoadEntities(context.Background())
	require.Error(t, err)

	assert.True(t, errs.IsNetwork(s.Error()))
	assert.Equal(t, []string{"ACME"}, s.EntityNames(), "failed load keeps the previous collection")

	s.ClearError()
	assert.NoError(t, s.Error())
}

func TestErrorSlotIsOverwrittenAndTaken(t *testing.T) {
	gw := newFakeGateway()
	gw.errs["ListJobs"] = errs.Backend("list jobs", 500, "first")
	gw.errs["ListFindings"] = errs.Backend("list findings", 500, "second")
	s := New(gw, nil, nil)

	_ = s.LoadJobs(context.Background())
	_ = s.LoadFindings(context.Background())
	assert.Equal(t, "second", errs.UserMessage(s.Error()))

	assert.Equal(t, "second", errs.UserMessage(s.TakeError()))
	assert.NoError(t, s.Error())
}

func TestAddEntity(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadEntities(context.Background()))

	created, err := s.AddEntity(context.Background(), model.MonitoredEntity{Name: "Novo Fundo", EntityType: model.EntityFund})
	require.NoError(t, err)
	require.NotNil(t, created.ID)
	assert.Equal(t, []string{"ACME", "Novo Fundo"}, s.EntityNames())
}

func TestAddFailureLeavesCollection(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadEntities(context.Background()))

	gw.errs["CreateEntity"] = errs.Backend("add entity", 409, "entidade já existe")
	_, err := s.AddEntity(context.Background(), model.MonitoredEntity{Name: "ACME", EntityType: model.EntityCompany})
	require.Error(t, err)

	assert.Equal(t, []string{"ACME"}, s.EntityNames())
	assert.Equal(t, "entidade já existe", errs.UserMessage(s.Error()))
}

func TestAddValidationIssuesNoRequest(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, nil, nil)

	_, err := s.AddEntity(context.Background(), model.MonitoredEntity{Name: "  ", EntityType: model.EntityCompany})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, 0, gw.count("CreateEntity"))
	assert.NoError(t, s.Error(), "validation errors are returned, not stored")

	_, err = s.AddConnection(context.Background(), model.DatabaseConnection{ConnectionName: "x"})
	assert.True(t, errs.IsValidation(err))
	assert.Equal(t, 0, gw.count("CreateConnection"))
}

func TestDeleteEntity(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME"), entity(2, "Beta"), entity(3, "Gama")}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadEntities(context.Background()))

	require.NoError(t, s.DeleteEntity(context.Background(), 2))
	assert.Equal(t, []string{"ACME", "Gama"}, s.EntityNames())

	gw.errs["DeleteEntity"] = errs.Network("delete entity", errors.New("reset by peer"))
	require.Error(t, s.DeleteEntity(context.Background(), 1))
	assert.Equal(t, []string{"ACME", "Gama"}, s.EntityNames())
	assert.True(t, errs.IsNetwork(s.Error()))
}

func TestAddAndDeleteConnection(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, nil, nil)

	created, err := s.AddConnection(context.Background(), model.DatabaseConnection{ConnectionName: "dev", ServerAddress: `HOST\SQLEXPRESS`, DatabaseName: "Projeto_Dev"})
	require.NoError(t, err)
	require.Len(t, s.Connections(), 1)

	require.NoError(t, s.DeleteConnection(context.Background(), created.Key()))
	assert.Empty(t, s.Connections())
}

func TestSecondIssuedLoadWinsWhenItArrivesFirst(t *testing.T) {
	gw := newFakeGateway()
	gw.gate = make(chan chan entitiesReply)
	s := New(gw, nil, nil)

	var events []Event
	var evMu sync.Mutex
	unsubscribe := s.Subscribe(func(ev Event) {
		evMu.Lock()
		events = append(events, ev)
		evMu.Unlock()
	})
	defer unsubscribe()

	ctx := context.Background()
	done1 := make(chan error, 1)
	done2 := make(chan error, 1)

	go func() { done1 <- s.LoadEntities(ctx) }()
	reply1 := <-gw.gate
	go func() { done2 <- s.LoadEntities(ctx) }()
	reply2 := <-gw.gate

	assert.True(t, s.IsLoading())

	reply2 <- entitiesReply{items: []model.MonitoredEntity{entity(2, "from second")}}
	require.NoError(t, <-done2)
	assert.True(t, s.IsLoading(), "first request still outstanding")

	reply1 <- entitiesReply{items: []model.MonitoredEntity{entity(1, "from first")}}
	require.NoError(t, <-done1)

	assert.Equal(t, []string{"from second"}, s.EntityNames())
	assert.False(t, s.IsLoading())

	evMu.Lock()
	defer evMu.Unlock()
	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{Started, Started, Loaded, Stale}, kinds)
}

func TestLoadIssuedBeforeAddDoesNotDropIt(t *testing.T) {
	gw := newFakeGateway()
	gw.gate = make(chan chan entitiesReply)
	s := New(gw, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.LoadEntities(ctx) }()
	reply := <-gw.gate

	_, err := s.AddEntity(ctx, model.MonitoredEntity{Name: "Novo", EntityType: model.EntityPerson})
	require.NoError(t, err)

	// the stale snapshot predates the add
	reply <- entitiesReply{items: []model.MonitoredEntity{}}
	require.NoError(t, <-done)

	assert.Equal(t, []string{"Novo"}, s.EntityNames())
}

func TestJobsNeverMoveBackwards(t *testing.T) {
	gw := newFakeGateway()
	gw.jobs = []model.ExecutionJob{{ID: 1, Status: model.JobCompleted}, {ID: 2, Status: model.JobPending}}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadJobs(context.Background()))

	gw.mu.Lock()
	gw.jobs = []model.ExecutionJob{{ID: 1, Status: model.JobRunning}, {ID: 2, Status: model.JobRunning}, {ID: 3, Status: model.JobPending}}
	gw.mu.Unlock()
	require.NoError(t, s.LoadJobs(context.Background()))

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, model.JobCompleted, jobs[0].Status)
	assert.Equal(t, model.JobRunning, jobs[1].Status)
	assert.Equal(t, model.JobPending, jobs[2].Status)
}

func TestLoadAllReturnsFirstError(t *testing.T) {
	gw := newFakeGateway()
	gw.errs["ListJobs"] = errs.Backend("list jobs", 500, "boom")
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	s := New(gw, nil, nil)

	err := s.LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsBackend(err))
	assert.Equal(t, []string{"ACME"}, s.EntityNames(), "other collections still load")
}

func TestSnapshotsAreCopies(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	s := New(gw, nil, nil)
	require.NoError(t, s.LoadEntities(context.Background()))

	got := s.Entities()
	got[0].Name = "changed"
	assert.Equal(t, []string{"ACME"}, s.EntityNames())
}

type memCache struct {
	mu       sync.Mutex
	entities []model.MonitoredEntity
	findings []model.Finding
	saves    int
}

func (m *memCache) ReplaceConnections(context.Context, []model.DatabaseConnection) error { return nil }
func (m *memCache) ReplaceJobs(context.Context, []model.ExecutionJob) error               { return nil }
func (m *memCache) ReplaceEntities(_ context.Context, e []model.MonitoredEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = e
	m.saves++
	return nil
}
func (m *memCache) ReplaceFindings(_ context.Context, f []model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings = f
	m.saves++
	return nil
}
func (m *memCache) ListConnections(context.Context) ([]model.DatabaseConnection, error) {
	return nil, nil
}
func (m *memCache) ListJobs(context.Context) ([]model.ExecutionJob, error) { return nil, nil }
func (m *memCache) ListEntities(context.Context) ([]model.MonitoredEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities, nil
}
func (m *memCache) ListFindings(context.Context) ([]model.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findings, nil
}

func TestCacheRoundTrip(t *testing.T) {
	gw := newFakeGateway()
	gw.entities = []model.MonitoredEntity{entity(1, "ACME")}
	gw.findings = []model.Finding{{ID: 7, EntityName: "ACME", RiskLevel: model.RiskLow}}
	cache := &memCache{}

	online := New(gw, cache, nil)
	require.NoError(t, online.LoadEntities(context.Background()))
	require.NoError(t, online.LoadFindings(context.Background()))
	assert.Equal(t, 2, cache.saves)

	offline := New(newFakeGateway(), cache, nil)
	require.NoError(t, offline.Restore(context.Background()))
	assert.Equal(t, []string{"ACME"}, offline.EntityNames())
	assert.Len(t, offline.Findings(), 1)

	assert.Error(t, New(gw, nil, nil).Restore(context.Background()))
}

func TestReportError(t *testing.T) {
	s := New(newFakeGateway(), nil, nil)
	var got []Event
	unsubscribe := s.Subscribe(func(ev Event) { got = append(got, ev) })
	defer unsubscribe()

	s.ReportError(Jobs, "submit", nil)
	assert.NoError(t, s.Error())

	boom := errors.New("boom")
	s.ReportError(Jobs, "submit", boom)
	assert.ErrorIs(t, s.TakeError(), boom)
	require.Len(t, got, 1)
	assert.Equal(t, Failed, got[0].Kind)
	assert.False(t, s.IsLoading())
}
