package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"datagage/internal/client/airbyte"
	"datagage/internal/logger"
	"datagage/internal/metrics"
	"datagage/internal/models"
	"datagage/internal/repository"
	"datagage/internal/sourcetype"
)

// PlatformClient is the subset of the ELT platform API the workflows use.
type PlatformClient interface {
	ResolveWorkspace(ctx context.Context) (string, error)
	ListSources(ctx context.Context) ([]airbyte.Source, error)
	CreateSource(ctx context.Context, req airbyte.CreateSourceRequest) (*airbyte.Source, error)
	GetSource(ctx context.Context, sourceID string) (*airbyte.Source, error)
	DeleteSource(ctx context.Context, sourceID string) error
	DiscoverSchema(ctx context.Context, sourceID string) (airbyte.SyncCatalog, error)
	CreateConnection(ctx context.Context, req airbyte.CreateConnectionRequest) (*airbyte.Connection, error)
	ListConnections(ctx context.Context) ([]airbyte.Connection, error)
	ConnectionsForSource(ctx context.Context, sourceID string) ([]airbyte.Connection, error)
	ConnectionStatus(ctx context.Context, connectionID string) (*airbyte.ConnectionStatus, error)
	DeleteConnection(ctx context.Context, connectionID string) error
	TriggerSync(ctx context.Context, connectionID string) (*airbyte.JobInfo, error)
	InitiateOAuth(ctx context.Context, req airbyte.OAuthRequest) (map[string]any, error)
}

// SourceWorkflow coordinates the ELT platform and the local source store.
// Nothing spans both stores transactionally: each step either completes or
// reports the stage it stopped at.
type SourceWorkflow struct {
	Platform      PlatformClient
	Repo          repository.SourceRepository
	DestinationID string
	// Secrets seals secret configuration fields before they are stored.
	Secrets *ConfigSealer
	Logger  *zap.Logger
}

type CreateSourceInput struct {
	Name string
	Type string
	// Config is either a decoded JSON object or its string form.
	Config any
}

type CreateSourceResult struct {
	Source       *models.Source `json:"source"`
	ConnectionID string         `json:"connectionId,omitempty"`
	Stage        Stage          `json:"stage"`
	Warnings     []string       `json:"warnings,omitempty"`
}

type ConnectionError struct {
	ConnectionID string `json:"connectionId"`
	Error        string `json:"error"`
}

type DeleteResult struct {
	SourceID              string            `json:"sourceId"`
	SourceDeleted         bool              `json:"sourceDeleted"`
	ExternalSourceDeleted bool              `json:"externalSourceDeleted"`
	ExternalSourceError   string            `json:"externalSourceError,omitempty"`
	ConnectionsDeleted    []string          `json:"connectionsDeleted"`
	ConnectionErrors      []ConnectionError `json:"connectionErrors,omitempty"`
}

// Partial reports whether any platform-side cleanup failed.
func (r *DeleteResult) Partial() bool {
	return r != nil && (len(r.ConnectionErrors) > 0 || r.ExternalSourceError != "")
}

type SourceDetails struct {
	*models.Source
	ExternalDetails *airbyte.Source `json:"externalDetails,omitempty"`
}

func (w *SourceWorkflow) log() *zap.Logger { return logger.OrNop(w.Logger) }

func (w *SourceWorkflow) stage(workflow string, st Stage, ok bool) {
	metrics.WorkflowStage(workflow, string(st), ok)
}

// CreateSource creates the platform source, records it locally, discovers
// its schema and connects it to the default destination.
func (w *SourceWorkflow) CreateSource(ctx context.Context, in CreateSourceInput) (*CreateSourceResult, error) {
	const wf = "create_source"
	typ, values, err := validateCreate(in)
	if err != nil {
		w.stage(wf, StageValidating, false)
		return nil, Failed(FailedValidation, err)
	}
	w.stage(wf, StageValidating, true)

	definitionID, err := sourcetype.DefinitionID(typ)
	if err != nil {
		w.stage(wf, StageResolvingDefinition, false)
		return nil, Failed(FailedValidation, invalid("sourceType", "%v", err))
	}
	connCfg, err := sourcetype.BuildConnectionConfig(typ, values)
	if err != nil {
		w.stage(wf, StageResolvingDefinition, false)
		return nil, Failed(FailedValidation, invalid("sourceConfig", "%v", err))
	}
	w.stage(wf, StageResolvingDefinition, true)

	workspaceID, err := w.Platform.ResolveWorkspace(ctx)
	if err != nil {
		w.stage(wf, StageCreatingExternalSource, false)
		return nil, Failed(FailedExternalSourceCreation, err)
	}
	ext, err := w.Platform.CreateSource(ctx, airbyte.CreateSourceRequest{
		Name:          strings.TrimSpace(in.Name),
		DefinitionID:  definitionID,
		WorkspaceID:   workspaceID,
		Configuration: connCfg,
	})
	if err != nil {
		w.stage(wf, StageCreatingExternalSource, false)
		return nil, Failed(FailedExternalSourceCreation, err)
	}

	stored, err := w.Secrets.Seal(connCfg)
	if err != nil {
		return nil, Failed(FailedExternalSourceCreation, err)
	}
	rawCfg, err := json.Marshal(stored)
	if err != nil {
		return nil, Failed(FailedExternalSourceCreation, err)
	}
	extID := ext.SourceID
	local := &models.Source{
		SourceID:                uuid.NewString(),
		Name:                    strings.TrimSpace(in.Name),
		SourceType:              string(typ),
		Status:                  models.SourceStatusActive,
		ConnectionConfiguration: datatypes.JSON(rawCfg),
		ExternalSourceID:        &extID,
	}
	if err := w.Repo.CreateSource(ctx, local); err != nil {
		w.stage(wf, StageCreatingExternalSource, false)
		w.log().Error("source workflow: local insert failed, platform source orphaned",
			zap.String("external_source_id", extID), zap.Error(err))
		return nil, Failed(FailedExternalSourceCreation, fmt.Errorf("persist local source: %w", err))
	}
	w.stage(wf, StageCreatingExternalSource, true)
	w.log().Info("source workflow: external source created",
		zap.String("source_id", local.SourceID), zap.String("external_source_id", extID))

	res, err := w.connect(ctx, local)
	if err != nil {
		return nil, err
	}
	res.Source = redactSource(res.Source)
	return res, nil
}

// CreateConnection connects an existing source to the default destination.
// id may be the local id or the platform source id.
func (w *SourceWorkflow) CreateConnection(ctx context.Context, id string) (*CreateSourceResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, Failed(FailedValidation, invalid("sourceId", "source ID is required"))
	}
	src, err := w.findSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if src.ExternalSourceID == nil || *src.ExternalSourceID == "" {
		return nil, Failed(FailedValidation, invalid("sourceId", "source %s has no platform source", id))
	}
	res, err := w.connect(ctx, src)
	if err != nil {
		return nil, err
	}
	res.Source = redactSource(res.Source)
	return res, nil
}

func (w *SourceWorkflow) connect(ctx context.Context, src *models.Source) (*CreateSourceResult, error) {
	const wf = "create_source"
	extID := *src.ExternalSourceID

	catalog, err := w.Platform.DiscoverSchema(ctx, extID)
	if err != nil {
		w.stage(wf, StageDiscoveringSchema, false)
		w.markFailed(ctx, src)
		return nil, Failed(FailedSchemaDiscovery, err)
	}
	w.stage(wf, StageDiscoveringSchema, true)

	destinationID := strings.TrimSpace(w.DestinationID)
	if destinationID == "" {
		w.stage(wf, StageCreatingConnection, false)
		return nil, Failed(FailedConnectionCreation, errors.New("default destination is not configured"))
	}
	conn, err := w.Platform.CreateConnection(ctx, airbyte.CreateConnectionRequest{
		SourceID:      extID,
		DestinationID: destinationID,
		SyncCatalog:   catalog,
	})
	if err != nil {
		w.stage(wf, StageCreatingConnection, false)
		return nil, Failed(FailedConnectionCreation, err)
	}
	w.stage(wf, StageCreatingConnection, true)

	res := &CreateSourceResult{Source: src, ConnectionID: conn.ConnectionID, Stage: StageDone}
	updated, err := w.Repo.AttachExternalConnectionID(ctx, src.SourceID, conn.ConnectionID)
	if err != nil {
		w.stage(wf, StagePersistingLink, false)
		w.log().Warn("source workflow: connection id not persisted",
			zap.String("source_id", src.SourceID),
			zap.String("connection_id", conn.ConnectionID),
			zap.Error(err))
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s: connection %s created but not recorded locally: %v", FailedPersistingLink, conn.ConnectionID, err))
		return res, nil
	}
	w.stage(wf, StagePersistingLink, true)
	if updated != nil {
		res.Source = updated
	}
	return res, nil
}

func (w *SourceWorkflow) markFailed(ctx context.Context, src *models.Source) {
	status := models.SourceStatusFailed
	if _, err := w.Repo.UpdateSource(ctx, src.SourceID, repository.SourceUpdate{Status: &status}); err != nil {
		w.log().Warn("source workflow: mark failed", zap.String("source_id", src.SourceID), zap.Error(err))
		return
	}
	src.Status = status
}

// DeleteSource removes a source's platform connections, the platform source
// and finally the local row. Platform failures are collected, not fatal.
func (w *SourceWorkflow) DeleteSource(ctx context.Context, id string) (*DeleteResult, error) {
	const wf = "delete_source"
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("sourceId", "source ID is required")
	}
	src, err := w.findSource(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &DeleteResult{SourceID: src.SourceID, ConnectionsDeleted: []string{}}

	if src.ExternalSourceID != nil && *src.ExternalSourceID != "" {
		extID := *src.ExternalSourceID
		conns, err := w.Platform.ConnectionsForSource(ctx, extID)
		if err != nil {
			w.stage(wf, StageEnumeratingConnections, false)
			res.ConnectionErrors = append(res.ConnectionErrors, ConnectionError{ConnectionID: "*", Error: err.Error()})
		} else {
			w.stage(wf, StageEnumeratingConnections, true)
		}
		for _, conn := range conns {
			if err := w.Platform.DeleteConnection(ctx, conn.ConnectionID); err != nil {
				w.stage(wf, StageDeletingConnections, false)
				w.log().Warn("source workflow: delete connection",
					zap.String("connection_id", conn.ConnectionID), zap.Error(err))
				res.ConnectionErrors = append(res.ConnectionErrors, ConnectionError{ConnectionID: conn.ConnectionID, Error: err.Error()})
				continue
			}
			w.stage(wf, StageDeletingConnections, true)
			res.ConnectionsDeleted = append(res.ConnectionsDeleted, conn.ConnectionID)
		}
		if err := w.Platform.DeleteSource(ctx, extID); err != nil {
			w.stage(wf, StageDeletingSource, false)
			w.log().Warn("source workflow: delete platform source",
				zap.String("external_source_id", extID), zap.Error(err))
			res.ExternalSourceError = err.Error()
		} else {
			w.stage(wf, StageDeletingSource, true)
			res.ExternalSourceDeleted = true
		}
	}

	if err := w.Repo.DeleteSource(ctx, src.SourceID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return res, &NotFoundError{Kind: "Source", ID: id}
		}
		return res, fmt.Errorf("delete local source: %w", err)
	}
	res.SourceDeleted = true
	if res.Partial() {
		w.log().Warn("source workflow: deleted with platform errors",
			zap.String("source_id", src.SourceID),
			zap.Int("connection_errors", len(res.ConnectionErrors)),
			zap.String("external_source_error", res.ExternalSourceError))
	}
	return res, nil
}

// findSource resolves id as a local id first, then as a platform source id.
func (w *SourceWorkflow) findSource(ctx context.Context, id string) (*models.Source, error) {
	src, err := w.Repo.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		src, err = w.Repo.FindSourceByExternalID(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	if src == nil {
		return nil, &NotFoundError{Kind: "Source", ID: id}
	}
	return src, nil
}

func (w *SourceWorkflow) TriggerSync(ctx context.Context, connectionID string) (*airbyte.JobInfo, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, invalid("connectionId", "connection ID is required")
	}
	job, err := w.Platform.TriggerSync(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("trigger sync: %w", err)
	}
	return job, nil
}

// ConnectionStatus fetches the platform status and records a completed sync
// on the owning local source.
func (w *SourceWorkflow) ConnectionStatus(ctx context.Context, connectionID string) (*airbyte.ConnectionStatus, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, invalid("connectionId", "connection ID is required")
	}
	st, err := w.Platform.ConnectionStatus(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("connection status: %w", err)
	}
	if st.Succeeded() && st.LastSuccessfulAt != nil {
		src, err := w.Repo.FindSourceByConnectionID(ctx, connectionID)
		if err != nil {
			w.log().Warn("source workflow: find source for status", zap.String("connection_id", connectionID), zap.Error(err))
			return st, nil
		}
		if src != nil {
			recordSync(ctx, w.Repo, w.log(), src, *st.LastSuccessfulAt)
		}
	}
	return st, nil
}

// recordSync moves lastSync forward; older or equal timestamps are ignored.
func recordSync(ctx context.Context, repo repository.SourceRepository, log *zap.Logger, src *models.Source, at time.Time) bool {
	if src.LastSync != nil && !at.After(*src.LastSync) {
		return false
	}
	if _, err := repo.UpdateLastSync(ctx, src.SourceID, at.UTC()); err != nil {
		log.Warn("update last sync", zap.String("source_id", src.SourceID), zap.Error(err))
		return false
	}
	return true
}

// SourceDetails merges the local record with the platform's. Platform
// errors fall back to the local record alone.
func (w *SourceWorkflow) SourceDetails(ctx context.Context, id string) (*SourceDetails, error) {
	src, err := w.findSource(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	out := &SourceDetails{Source: redactSource(src)}
	if src.ExternalSourceID == nil || *src.ExternalSourceID == "" {
		return out, nil
	}
	ext, err := w.Platform.GetSource(ctx, *src.ExternalSourceID)
	if err != nil {
		w.log().Warn("source workflow: platform details unavailable",
			zap.String("source_id", src.SourceID), zap.Error(err))
		return out, nil
	}
	out.ExternalDetails = ext
	return out, nil
}

// ListSources lists local sources with secret configuration fields masked.
func (w *SourceWorkflow) ListSources(ctx context.Context, params repository.ListSourcesParams) ([]models.Source, error) {
	items, err := w.Repo.ListSources(ctx, params)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = *redactSource(&items[i])
	}
	return items, nil
}

// ResealConfigs rewrites stored configurations so every secret field is
// sealed under the primary key. It returns how many sources changed.
func (w *SourceWorkflow) ResealConfigs(ctx context.Context) (int, error) {
	if !w.Secrets.Enabled() {
		return 0, nil
	}
	const page = 200
	changed := 0
	var errs []error
	for offset := 0; ; offset += page {
		items, err := w.Repo.ListSources(ctx, repository.ListSourcesParams{Limit: page, Offset: offset})
		if err != nil {
			return changed, err
		}
		for _, src := range items {
			out, ok, err := w.Secrets.Reseal(src.ConnectionConfiguration)
			if err != nil {
				errs = append(errs, fmt.Errorf("source %s: %w", src.SourceID, err))
				continue
			}
			if !ok {
				continue
			}
			if _, err := w.Repo.UpdateSource(ctx, src.SourceID, repository.SourceUpdate{ConnectionConfiguration: datatypes.JSON(out)}); err != nil {
				errs = append(errs, fmt.Errorf("source %s: %w", src.SourceID, err))
				continue
			}
			changed++
		}
		if len(items) < page {
			break
		}
	}
	return changed, errors.Join(errs...)
}

// redactSource returns a copy of src with secret configuration fields masked.
func redactSource(src *models.Source) *models.Source {
	if src == nil || len(src.ConnectionConfiguration) == 0 {
		return src
	}
	var cfg map[string]any
	if err := json.Unmarshal(src.ConnectionConfiguration, &cfg); err != nil || cfg == nil {
		return src
	}
	raw, err := json.Marshal(Redact(cfg))
	if err != nil {
		return src
	}
	out := *src
	out.ConnectionConfiguration = datatypes.JSON(raw)
	return &out
}

func (w *SourceWorkflow) PlatformSources(ctx context.Context) ([]airbyte.Source, error) {
	return w.Platform.ListSources(ctx)
}

func (w *SourceWorkflow) Connections(ctx context.Context) ([]airbyte.Connection, error) {
	return w.Platform.ListConnections(ctx)
}

// InitiateOAuth starts the platform consent flow for an OAuth source type.
func (w *SourceWorkflow) InitiateOAuth(ctx context.Context, sourceType, redirectURL string) (map[string]any, error) {
	if strings.TrimSpace(sourceType) == "" || strings.TrimSpace(redirectURL) == "" {
		return nil, invalid("", "sourceType and redirectUrl are required in the request body")
	}
	ws, err := w.Platform.ResolveWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return w.Platform.InitiateOAuth(ctx, airbyte.OAuthRequest{
		SourceType:  sourceType,
		RedirectURL: redirectURL,
		WorkspaceID: ws,
	})
}

func validateCreate(in CreateSourceInput) (sourcetype.Type, map[string]any, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Type) == "" || in.Config == nil {
		return "", nil, invalid("", "Source name, type, and configuration are required")
	}
	typ, err := sourcetype.Parse(in.Type)
	if err != nil {
		return "", nil, invalid("sourceType", "%v", err)
	}
	values, err := configValues(in.Config)
	if err != nil {
		return "", nil, err
	}
	if errs := sourcetype.Validate(typ, values); len(errs) > 0 {
		return "", nil, &ValidationError{Field: errs[0].Field, Message: errs[0].Message}
	}
	return typ, values, nil
}

func configValues(cfg any) (map[string]any, error) {
	switch v := cfg.(type) {
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, invalid("sourceConfig", "configuration is required")
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil || out == nil {
			return nil, invalid("sourceConfig", "configuration must be a JSON object")
		}
		return out, nil
	case json.RawMessage:
		return configValues(string(v))
	}
	return nil, invalid("sourceConfig", "configuration must be a JSON object")
}
