package airbyte

import (
	"encoding/json"
	"time"
)

type Source struct {
	SourceID           string         `json:"sourceId"`
	Name               string         `json:"name"`
	SourceType         string         `json:"sourceType,omitempty"`
	SourceDefinitionID string         `json:"sourceDefinitionId,omitempty"`
	WorkspaceID        string         `json:"workspaceId,omitempty"`
	Configuration      map[string]any `json:"connectionConfiguration,omitempty"`
}

type CreateSourceRequest struct {
	Name          string         `json:"name"`
	DefinitionID  string         `json:"sourceDefinitionId"`
	WorkspaceID   string         `json:"workspaceId"`
	Configuration map[string]any `json:"connectionConfiguration"`
}

// SyncCatalog is the discovered stream catalog. It is kept raw so that
// fields this service does not model survive the round trip.
type SyncCatalog json.RawMessage

func (c SyncCatalog) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("null"), nil
	}
	return c, nil
}

func (c *SyncCatalog) UnmarshalJSON(b []byte) error {
	*c = append((*c)[:0], b...)
	return nil
}

type BasicSchedule struct {
	TimeUnit string `json:"timeUnit"`
	Units    int    `json:"units"`
}

type Schedule struct {
	ScheduleType  string         `json:"schedule_type"`
	BasicSchedule *BasicSchedule `json:"basic_schedule,omitempty"`
}

// DailySchedule is the default sync cadence for new connections.
func DailySchedule() Schedule {
	return Schedule{ScheduleType: "basic", BasicSchedule: &BasicSchedule{TimeUnit: "hours", Units: 24}}
}

type Connection struct {
	ConnectionID  string    `json:"connectionId"`
	Name          string    `json:"name"`
	SourceID      string    `json:"sourceId"`
	DestinationID string    `json:"destinationId"`
	WorkspaceID   string    `json:"workspaceId,omitempty"`
	Status        string    `json:"status,omitempty"`
	Schedule      *Schedule `json:"schedule,omitempty"`
}

type CreateConnectionRequest struct {
	SourceID      string
	DestinationID string
	SyncCatalog   SyncCatalog
	Schedule      *Schedule
}

type createConnectionBody struct {
	Name                string      `json:"name"`
	NamespaceDefinition string      `json:"namespaceDefinition"`
	NamespaceFormat     string      `json:"namespaceFormat"`
	Prefix              string      `json:"prefix"`
	SourceID            string      `json:"sourceId"`
	DestinationID       string      `json:"destinationId"`
	OperationIDs        []string    `json:"operationIds"`
	SyncCatalog         SyncCatalog `json:"syncCatalog"`
	Schedule            Schedule    `json:"schedule"`
	Status              string      `json:"status"`
}

type JobInfo struct {
	JobID     int64  `json:"jobId"`
	Status    string `json:"status"`
	JobType   string `json:"jobType,omitempty"`
	StartTime string `json:"startTime,omitempty"`
}

// ConnectionStatus is the platform's view of a connection's latest sync.
type ConnectionStatus struct {
	ConnectionID      string          `json:"connectionId"`
	Status            string          `json:"status"`
	LastSyncJobStatus string          `json:"lastSyncJobStatus,omitempty"`
	LastSuccessfulAt  *time.Time      `json:"lastSuccessfulSyncAt,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// Succeeded reports whether the latest job finished successfully.
func (s *ConnectionStatus) Succeeded() bool {
	return s != nil && (s.LastSyncJobStatus == "succeeded" || s.LastSyncJobStatus == "completed")
}

type Destination struct {
	DestinationID   string `json:"destinationId"`
	Name            string `json:"name"`
	DestinationType string `json:"destinationType,omitempty"`
	WorkspaceID     string `json:"workspaceId,omitempty"`
}

type OAuthRequest struct {
	SourceType  string `json:"sourceType"`
	RedirectURL string `json:"redirectUrl"`
	WorkspaceID string `json:"workspaceId"`
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}
