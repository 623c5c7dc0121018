package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"datagage/internal/client/airbyte"
	"datagage/internal/models"
	"datagage/internal/repository"
)

// fakePlatform is an in-memory ELT platform. Per-call errors are keyed by
// method name or by "DeleteConnection:<id>".
type fakePlatform struct {
	mu          sync.Mutex
	nextID      int
	sources     map[string]airbyte.Source
	connections map[string]airbyte.Connection
	catalog     airbyte.SyncCatalog
	statuses    map[string]*airbyte.ConnectionStatus
	errs        map[string]error
	calls       []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		sources:     map[string]airbyte.Source{},
		connections: map[string]airbyte.Connection{},
		statuses:    map[string]*airbyte.ConnectionStatus{},
		errs:        map[string]error{},
		catalog:     airbyte.SyncCatalog(`{"streams":[{"stream":{"name":"sales"}}]}`),
	}
}

func (p *fakePlatform) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.errs[call]
}

func (p *fakePlatform) id(prefix string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *fakePlatform) ResolveWorkspace(ctx context.Context) (string, error) {
	return "ws-1", p.record("ResolveWorkspace")
}

func (p *fakePlatform) ListSources(ctx context.Context) ([]airbyte.Source, error) {
	if err := p.record("ListSources"); err != nil {
		return nil, err
	}
	out := []airbyte.Source{}
	for _, s := range p.sources {
		out = append(out, s)
	}
	return out, nil
}

func (p *fakePlatform) CreateSource(ctx context.Context, req airbyte.CreateSourceRequest) (*airbyte.Source, error) {
	if err := p.record("CreateSource"); err != nil {
		return nil, err
	}
	s := airbyte.Source{SourceID: p.id("ext"), Name: req.Name, SourceDefinitionID: req.DefinitionID, WorkspaceID: req.WorkspaceID}
	p.mu.Lock()
	p.sources[s.SourceID] = s
	p.mu.Unlock()
	return &s, nil
}

func (p *fakePlatform) GetSource(ctx context.Context, sourceID string) (*airbyte.Source, error) {
	if err := p.record("GetSource"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sources[sourceID]
	if !ok {
		return nil, &airbyte.UpstreamError{Op: "get source", StatusCode: 404}
	}
	return &s, nil
}

func (p *fakePlatform) DeleteSource(ctx context.Context, sourceID string) error {
	if err := p.record("DeleteSource"); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.sources, sourceID)
	p.mu.Unlock()
	return nil
}

func (p *fakePlatform) DiscoverSchema(ctx context.Context, sourceID string) (airbyte.SyncCatalog, error) {
	if err := p.record("DiscoverSchema"); err != nil {
		return nil, err
	}
	return p.catalog, nil
}

func (p *fakePlatform) CreateConnection(ctx context.Context, req airbyte.CreateConnectionRequest) (*airbyte.Connection, error) {
	if err := p.record("CreateConnection"); err != nil {
		return nil, err
	}
	c := airbyte.Connection{ConnectionID: p.id("conn"), SourceID: req.SourceID, DestinationID: req.DestinationID}
	p.mu.Lock()
	p.connections[c.ConnectionID] = c
	p.mu.Unlock()
	return &c, nil
}

func (p *fakePlatform) ListConnections(ctx context.Context) ([]airbyte.Connection, error) {
	if err := p.record("ListConnections"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []airbyte.Connection{}
	for _, c := range p.connections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out, nil
}

func (p *fakePlatform) ConnectionsForSource(ctx context.Context, sourceID string) ([]airbyte.Connection, error) {
	if err := p.record("ConnectionsForSource"); err != nil {
		return nil, err
	}
	all, _ := p.ListConnections(ctx)
	out := []airbyte.Connection{}
	for _, c := range all {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (p *fakePlatform) ConnectionStatus(ctx context.Context, connectionID string) (*airbyte.ConnectionStatus, error) {
	if err := p.record("ConnectionStatus:" + connectionID); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.statuses[connectionID]
	if !ok {
		return &airbyte.ConnectionStatus{ConnectionID: connectionID, Status: "active"}, nil
	}
	return st, nil
}

func (p *fakePlatform) DeleteConnection(ctx context.Context, connectionID string) error {
	if err := p.record("DeleteConnection:" + connectionID); err != nil {
		return err
	}
	p.mu.Lock()
	delete(p.connections, connectionID)
	p.mu.Unlock()
	return nil
}

func (p *fakePlatform) TriggerSync(ctx context.Context, connectionID string) (*airbyte.JobInfo, error) {
	if err := p.record("TriggerSync"); err != nil {
		return nil, err
	}
	return &airbyte.JobInfo{JobID: 7, Status: "running", JobType: "sync"}, nil
}

func (p *fakePlatform) InitiateOAuth(ctx context.Context, req airbyte.OAuthRequest) (map[string]any, error) {
	if err := p.record("InitiateOAuth"); err != nil {
		return nil, err
	}
	return map[string]any{"consentUrl": "https://consent.test/" + req.SourceType}, nil
}

// fakeSourceRepo is an in-memory SourceRepository.
type fakeSourceRepo struct {
	mu          sync.Mutex
	items       map[string]models.Source
	attachE     error
	connLookups int
	listCalls   int
}

func newFakeSourceRepo() *fakeSourceRepo {
	return &fakeSourceRepo{items: map[string]models.Source{}}
}

func (r *fakeSourceRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *fakeSourceRepo) CreateSource(ctx context.Context, item *models.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	r.items[item.SourceID] = *item
	return nil
}

func (r *fakeSourceRepo) GetSource(ctx context.Context, id string) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r *fakeSourceRepo) FindSourceByExternalID(ctx context.Context, externalID string) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.ExternalSourceID != nil && *s.ExternalSourceID == externalID {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeSourceRepo) FindSourceByConnectionID(ctx context.Context, connectionID string) (*models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connLookups++
	for _, s := range r.items {
		if s.ExternalConnectionID != nil && *s.ExternalConnectionID == connectionID {
			return &s, nil
		}
	}
	return nil, nil
}

func (r *fakeSourceRepo) ListSources(ctx context.Context, params repository.ListSourcesParams) ([]models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := []models.Source{}
	for _, s := range r.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *fakeSourceRepo) ListSourcesWithConnection(ctx context.Context) ([]models.Source, error) {
	all, _ := r.ListSources(ctx, repository.ListSourcesParams{})
	out := []models.Source{}
	for _, s := range all {
		if s.ExternalConnectionID != nil && *s.ExternalConnectionID != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) UpdateSource(ctx context.Context, id string, update repository.SourceUpdate) (*models.Source, error) {
	if update.Empty() {
		return nil, repository.ErrNoFieldsProvided
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	if update.Name != nil {
		s.Name = *update.Name
	}
	if update.Status != nil {
		s.Status = *update.Status
	}
	if update.ExternalConnectionID != nil {
		s.ExternalConnectionID = update.ExternalConnectionID
	}
	if update.LastSync != nil {
		s.LastSync = update.LastSync
	}
	if update.ConnectionConfiguration != nil {
		s.ConnectionConfiguration = update.ConnectionConfiguration
	}
	r.items[id] = s
	return &s, nil
}

func (r *fakeSourceRepo) DeleteSource(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeSourceRepo) UpdateLastSync(ctx context.Context, id string, at time.Time) (*models.Source, error) {
	return r.UpdateSource(ctx, id, repository.SourceUpdate{LastSync: &at})
}

func (r *fakeSourceRepo) AttachExternalConnectionID(ctx context.Context, id string, connectionID string) (*models.Source, error) {
	if r.attachE != nil {
		return nil, r.attachE
	}
	return r.UpdateSource(ctx, id, repository.SourceUpdate{ExternalConnectionID: &connectionID})
}

func (r *fakeSourceRepo) CountSourcesByStatus(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, s := range r.items {
		out[s.Status]++
	}
	return out, nil
}

// fakeSales returns canned aggregates and counts calls.
type fakeSales struct {
	mu      sync.Mutex
	totals  func(w repository.SalesWindow) repository.SalesTotals
	detail  []repository.SalesDetailRow
	series  []repository.TimeSeriesPoint
	counts  repository.EventCounts
	columns []repository.ColumnInfo
	err     error
	calls   map[string]int
	windows []repository.SalesWindow
}

func newFakeSales() *fakeSales {
	return &fakeSales{calls: map[string]int{}}
}

func (f *fakeSales) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakeSales) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSales) SalesTotals(ctx context.Context, window repository.SalesWindow) (repository.SalesTotals, error) {
	if err := f.hit("totals"); err != nil {
		return repository.SalesTotals{}, err
	}
	f.mu.Lock()
	f.windows = append(f.windows, window)
	f.mu.Unlock()
	if f.totals == nil {
		return repository.SalesTotals{}, nil
	}
	return f.totals(window), nil
}

func (f *fakeSales) SalesDetail(ctx context.Context, filter repository.SalesFilter) ([]repository.SalesDetailRow, error) {
	if err := f.hit("detail"); err != nil {
		return nil, err
	}
	return f.detail, nil
}

func (f *fakeSales) SalesTimeSeries(ctx context.Context, params repository.TimeSeriesParams) ([]repository.TimeSeriesPoint, error) {
	if err := f.hit("series"); err != nil {
		return nil, err
	}
	return f.series, nil
}

func (f *fakeSales) SalesEventCounts(ctx context.Context, since time.Time) (repository.EventCounts, error) {
	if err := f.hit("events"); err != nil {
		return repository.EventCounts{}, err
	}
	return f.counts, nil
}

func (f *fakeSales) SalesColumns(ctx context.Context) ([]repository.ColumnInfo, error) {
	if err := f.hit("columns"); err != nil {
		return nil, err
	}
	return f.columns, nil
}

func (f *fakeSales) Ping(ctx context.Context) error {
	return f.hit("ping")
}

var errBoom = errors.New("boom")

var listAll = repository.ListSourcesParams{}
