package history

import (
	"context"

	"go.uber.org/zap"

	"github.com/foundationallm/foundationallm-sub000/internal/logging"
)

// IterationIngester receives iterations in addition to the file store,
// typically the DuckDB analytics store.
type IterationIngester interface {
	IngestIteration(ctx context.Context, it Iteration) error
}

// Recorder writes sessions to a FileStore and mirrors iterations to an
// optional ingester. Ingest failures are logged and never fail the session.
type Recorder struct {
	Files  *FileStore
	Ingest IterationIngester
	Logger *zap.SugaredLogger
}

func (r *Recorder) SaveBackup(ctx context.Context, sessionID string, backup Backup) error {
	return r.Files.SaveBackup(ctx, sessionID, backup)
}

func (r *Recorder) AppendIteration(ctx context.Context, it Iteration) error {
	if err := r.Files.AppendIteration(ctx, it); err != nil {
		return err
	}
	if r.Ingest != nil {
		if err := r.Ingest.IngestIteration(ctx, it); err != nil {
			logging.OrNop(r.Logger).Warnw("ingest iteration",
				"session_id", it.SessionID, "iteration", it.Index, "error", err)
		}
	}
	return nil
}

func (r *Recorder) SaveSummary(ctx context.Context, summary Summary) error {
	return r.Files.SaveSummary(ctx, summary)
}
