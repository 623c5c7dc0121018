package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"datagage/internal/client/airbyte"
	"datagage/internal/models"
)

func postgresInput() CreateSourceInput {
	return CreateSourceInput{
		Name: "Warehouse",
		Type: "postgres",
		Config: map[string]any{
			"host":     "db.internal",
			"port":     "5432",
			"database": "shop",
			"username": "reader",
			"password": "pw",
		},
	}
}

func newWorkflow() (*SourceWorkflow, *fakePlatform, *fakeSourceRepo) {
	p := newFakePlatform()
	r := newFakeSourceRepo()
	return &SourceWorkflow{Platform: p, Repo: r, DestinationID: "dest-1"}, p, r
}

func TestCreateSource_Success(t *testing.T) {
	w, p, r := newWorkflow()
	res, err := w.CreateSource(context.Background(), postgresInput())
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if res.Stage != StageDone || res.ConnectionID == "" {
		t.Fatalf("res=%+v", res)
	}
	stored, _ := r.GetSource(context.Background(), res.Source.SourceID)
	if stored == nil {
		t.Fatalf("local source missing")
	}
	if stored.ExternalSourceID == nil || *stored.ExternalSourceID == "" {
		t.Fatalf("externalSourceId not set")
	}
	if stored.ExternalConnectionID == nil || *stored.ExternalConnectionID != res.ConnectionID {
		t.Fatalf("externalConnectionId=%v want %s", stored.ExternalConnectionID, res.ConnectionID)
	}
	if stored.Status != models.SourceStatusActive {
		t.Fatalf("status=%s", stored.Status)
	}
	if _, ok := p.connections[res.ConnectionID]; !ok {
		t.Fatalf("platform connection missing")
	}
}

func TestCreateSource_ValidationStopsBeforePlatform(t *testing.T) {
	cases := []struct {
		name string
		in   CreateSourceInput
	}{
		{"missing name", CreateSourceInput{Type: "postgres", Config: map[string]any{}}},
		{"unknown type", CreateSourceInput{Name: "x", Type: "oracle", Config: map[string]any{"host": "h"}}},
		{"bad json", CreateSourceInput{Name: "x", Type: "postgres", Config: "{not json"}},
		{"missing host", CreateSourceInput{Name: "x", Type: "postgres", Config: map[string]any{"database": "d", "username": "u", "password": "p"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, p, _ := newWorkflow()
			_, err := w.CreateSource(context.Background(), tc.in)
			var we *WorkflowError
			if !errors.As(err, &we) || we.Stage != FailedValidation {
				t.Fatalf("err=%v want validation stage", err)
			}
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError in chain")
			}
			if len(p.calls) != 0 {
				t.Fatalf("platform called: %v", p.calls)
			}
		})
	}
}

func TestCreateSource_EmptyCatalog(t *testing.T) {
	w, p, r := newWorkflow()
	p.errs["DiscoverSchema"] = &airbyte.SchemaDiscoveryError{SourceID: "ext-1", Reason: "catalog has no streams"}

	_, err := w.CreateSource(context.Background(), postgresInput())
	var we *WorkflowError
	if !errors.As(err, &we) || we.Stage != FailedSchemaDiscovery {
		t.Fatalf("err=%v want schema_discovery", err)
	}
	if len(p.connections) != 0 {
		t.Fatalf("connection created despite empty catalog")
	}
	items, _ := r.ListSources(context.Background(), listAll)
	if len(items) != 1 || items[0].Status != models.SourceStatusFailed {
		t.Fatalf("local=%+v want one failed source", items)
	}
	if items[0].ExternalConnectionID != nil {
		t.Fatalf("connection id recorded")
	}
}

func TestCreateSource_ExternalFailureLeavesNoLocalRow(t *testing.T) {
	w, p, r := newWorkflow()
	p.errs["CreateSource"] = &airbyte.UpstreamError{Op: "create source", StatusCode: 422, Body: "bad config"}

	_, err := w.CreateSource(context.Background(), postgresInput())
	var we *WorkflowError
	if !errors.As(err, &we) || we.Stage != FailedExternalSourceCreation {
		t.Fatalf("err=%v", err)
	}
	var ue *airbyte.UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 422 {
		t.Fatalf("upstream error lost: %v", err)
	}
	if items, _ := r.ListSources(context.Background(), listAll); len(items) != 0 {
		t.Fatalf("local rows=%d want 0", len(items))
	}
}

func TestCreateSource_LinkNotPersistedIsWarning(t *testing.T) {
	w, _, r := newWorkflow()
	r.attachE = errBoom
	res, err := w.CreateSource(context.Background(), postgresInput())
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if res.ConnectionID == "" || len(res.Warnings) != 1 {
		t.Fatalf("res=%+v", res)
	}
}

func TestCreateSource_NoDestination(t *testing.T) {
	w, _, _ := newWorkflow()
	w.DestinationID = ""
	_, err := w.CreateSource(context.Background(), postgresInput())
	var we *WorkflowError
	if !errors.As(err, &we) || we.Stage != FailedConnectionCreation {
		t.Fatalf("err=%v want connection_creation", err)
	}
}

func TestCreateConnection_ByExternalID(t *testing.T) {
	w, p, r := newWorkflow()
	ext := "ext-9"
	p.sources[ext] = airbyte.Source{SourceID: ext}
	_ = r.CreateSource(context.Background(), &models.Source{SourceID: "local-1", Name: "s", Status: models.SourceStatusActive, ExternalSourceID: &ext})

	res, err := w.CreateConnection(context.Background(), ext)
	if err != nil {
		t.Fatalf("CreateConnection: %v", err)
	}
	if res.Source.SourceID != "local-1" || res.ConnectionID == "" {
		t.Fatalf("res=%+v", res)
	}

	_, err = w.CreateConnection(context.Background(), "nope")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err=%v want NotFoundError", err)
	}
}

func seedConnected(t *testing.T, w *SourceWorkflow, p *fakePlatform, conns int) *models.Source {
	t.Helper()
	res, err := w.CreateSource(context.Background(), postgresInput())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	for i := 1; i < conns; i++ {
		if _, err := p.CreateConnection(context.Background(), airbyte.CreateConnectionRequest{SourceID: *res.Source.ExternalSourceID}); err != nil {
			t.Fatalf("seed connection: %v", err)
		}
	}
	return res.Source
}

func TestDeleteSource_Clean(t *testing.T) {
	w, p, r := newWorkflow()
	src := seedConnected(t, w, p, 2)

	res, err := w.DeleteSource(context.Background(), src.SourceID)
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if res.Partial() || !res.SourceDeleted || !res.ExternalSourceDeleted || len(res.ConnectionsDeleted) != 2 {
		t.Fatalf("res=%+v", res)
	}
	if got, _ := r.GetSource(context.Background(), src.SourceID); got != nil {
		t.Fatalf("local row survived")
	}
}

func TestDeleteSource_ContinuesPastConnectionFailures(t *testing.T) {
	w, p, r := newWorkflow()
	src := seedConnected(t, w, p, 3)
	conns, _ := p.ConnectionsForSource(context.Background(), *src.ExternalSourceID)
	p.errs["DeleteConnection:"+conns[0].ConnectionID] = errBoom
	p.errs["DeleteConnection:"+conns[2].ConnectionID] = errBoom

	res, err := w.DeleteSource(context.Background(), src.SourceID)
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if len(res.ConnectionErrors) != 2 || len(res.ConnectionsDeleted) != 1 {
		t.Fatalf("errors=%v deleted=%v", res.ConnectionErrors, res.ConnectionsDeleted)
	}
	if !res.Partial() || !res.SourceDeleted {
		t.Fatalf("res=%+v", res)
	}
	if got, _ := r.GetSource(context.Background(), src.SourceID); got != nil {
		t.Fatalf("local row survived")
	}
}

func TestDeleteSource_PlatformSourceFailure(t *testing.T) {
	w, p, _ := newWorkflow()
	src := seedConnected(t, w, p, 1)
	p.errs["DeleteSource"] = errBoom
	p.errs["ConnectionsForSource"] = errBoom

	res, err := w.DeleteSource(context.Background(), *src.ExternalSourceID)
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if res.ExternalSourceDeleted || res.ExternalSourceError == "" || !res.SourceDeleted {
		t.Fatalf("res=%+v", res)
	}
	if len(res.ConnectionErrors) != 1 || res.ConnectionErrors[0].ConnectionID != "*" {
		t.Fatalf("connection errors=%v", res.ConnectionErrors)
	}
}

func TestDeleteSource_NotFound(t *testing.T) {
	w, _, _ := newWorkflow()
	_, err := w.DeleteSource(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Error() != "Source with ID missing not found" {
		t.Fatalf("err=%v", err)
	}
}

func TestConnectionStatus_RecordsNewerSync(t *testing.T) {
	w, p, r := newWorkflow()
	src := seedConnected(t, w, p, 1)
	stored, _ := r.GetSource(context.Background(), src.SourceID)
	connID := *stored.ExternalConnectionID

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.statuses[connID] = &airbyte.ConnectionStatus{ConnectionID: connID, LastSyncJobStatus: "succeeded", LastSuccessfulAt: &at}
	lists, lookups := r.listCalls, r.connLookups
	if _, err := w.ConnectionStatus(context.Background(), connID); err != nil {
		t.Fatalf("ConnectionStatus: %v", err)
	}
	if r.connLookups-lookups != 1 || r.listCalls != lists {
		t.Fatalf("lookups=%d listCalls=%d want a single keyed lookup", r.connLookups-lookups, r.listCalls-lists)
	}
	stored, _ = r.GetSource(context.Background(), src.SourceID)
	if stored.LastSync == nil || !stored.LastSync.Equal(at) {
		t.Fatalf("lastSync=%v want %s", stored.LastSync, at)
	}

	older := at.Add(-time.Hour)
	p.statuses[connID] = &airbyte.ConnectionStatus{ConnectionID: connID, LastSyncJobStatus: "succeeded", LastSuccessfulAt: &older}
	_, _ = w.ConnectionStatus(context.Background(), connID)
	stored, _ = r.GetSource(context.Background(), src.SourceID)
	if !stored.LastSync.Equal(at) {
		t.Fatalf("lastSync moved backwards to %s", stored.LastSync)
	}
}

func TestSourceDetails_FallsBackToLocal(t *testing.T) {
	w, p, _ := newWorkflow()
	src := seedConnected(t, w, p, 1)
	p.errs["GetSource"] = errBoom

	d, err := w.SourceDetails(context.Background(), src.SourceID)
	if err != nil {
		t.Fatalf("SourceDetails: %v", err)
	}
	if d.ExternalDetails != nil || d.Source.SourceID != src.SourceID {
		t.Fatalf("details=%+v", d)
	}
}

func TestConfigValues(t *testing.T) {
	cases := []struct {
		name string
		in   any
		ok   bool
	}{
		{"map", map[string]any{"a": 1}, true},
		{"string", `{"a":1}`, true},
		{"array string", `[1,2]`, false},
		{"blank", "  ", false},
		{"number", 42, false},
	}
	for _, tc := range cases {
		_, err := configValues(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v ok=%v", tc.name, err, tc.ok)
		}
	}
}
