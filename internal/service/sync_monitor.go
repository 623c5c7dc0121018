package service

import (
	"context"

	"go.uber.org/zap"

	"datagage/internal/logger"
	"datagage/internal/metrics"
	"datagage/internal/repository"
)

// SyncMonitor records completed platform syncs on local sources. It only
// ever moves lastSync forward; it never creates or deletes anything.
type SyncMonitor struct {
	Platform PlatformClient
	Repo     repository.SourceRepository
	Logger   *zap.Logger
}

type PollResult struct {
	Checked int
	Updated int
	Failed  int
}

func (m *SyncMonitor) Poll(ctx context.Context) (PollResult, error) {
	var res PollResult
	log := logger.OrNop(m.Logger)
	sources, err := m.Repo.ListSourcesWithConnection(ctx)
	if err != nil {
		return res, err
	}
	for i := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		src := &sources[i]
		if src.ExternalConnectionID == nil || *src.ExternalConnectionID == "" {
			continue
		}
		res.Checked++
		st, err := m.Platform.ConnectionStatus(ctx, *src.ExternalConnectionID)
		if err != nil {
			res.Failed++
			log.Warn("sync poll: connection status",
				zap.String("source_id", src.SourceID),
				zap.String("connection_id", *src.ExternalConnectionID),
				zap.Error(err))
			metrics.WorkflowStage("sync_poll", "status", false)
			continue
		}
		if !st.Succeeded() || st.LastSuccessfulAt == nil {
			continue
		}
		if recordSync(ctx, m.Repo, log, src, *st.LastSuccessfulAt) {
			res.Updated++
		}
	}
	if res.Checked > 0 {
		log.Info("sync poll done",
			zap.Int("checked", res.Checked),
			zap.Int("updated", res.Updated),
			zap.Int("failed", res.Failed))
	}
	metrics.WorkflowStage("sync_poll", "done", res.Failed == 0)
	return res, nil
}
