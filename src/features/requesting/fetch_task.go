package requesting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/jukebox/src/features/jobs"
)

// FetchTask runs a download provider's fetch on the job pool.
type FetchTask struct {
	service *Service
}

// NewFetchTask creates a new fetch job Task.
func NewFetchTask(service *Service) *FetchTask {
	return &FetchTask{service: service}
}

// MetadataKeys returns the required metadata keys for fetch jobs.
func (t *FetchTask) MetadataKeys() []string {
	return []string{"requestID"}
}

// Execute retrieves the media and enqueues the track. Once started it runs to
// completion regardless of cancellation.
func (t *FetchTask) Execute(ctx context.Context, job *jobs.Job, progressUpdater func(int, string)) (map[string]any, error) {
	requestID, ok := job.Metadata["requestID"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid requestID in job metadata")
	}
	acq, ok := t.service.lookupAcquisition(requestID)
	if !ok {
		return nil, fmt.Errorf("no request in flight with id %s", requestID)
	}

	if reporter, ok := acq.provider.(interface {
		SetProgress(func(downloaded, total int64))
	}); ok {
		reporter.SetProgress(func(downloaded, total int64) {
			if total <= 0 {
				return
			}
			progressUpdater(10+int(float64(downloaded)/float64(total)*80),
				fmt.Sprintf("Downloading... %.1f MB / %.1f MB", float64(downloaded)/(1024*1024), float64(total)/(1024*1024)))
		})
	}

	progressUpdater(10, "Fetching "+acq.provider.Query())
	job.Logger.Info("Fetching track", "requestID", requestID, "query", acq.provider.Query())
	if err := t.service.fetch(context.WithoutCancel(ctx), acq); err != nil {
		return nil, err
	}
	progressUpdater(100, "Enqueued")
	return map[string]any{"entryID": acq.entryID}, nil
}

// Cleanup releases the in-flight request and drops its placeholder when the fetch failed.
// It also runs for jobs cancelled before they started.
func (t *FetchTask) Cleanup(job *jobs.Job, execErr error) error {
	requestID, _ := job.Metadata["requestID"].(string)
	acq, ok := t.service.releaseAcquisition(requestID)
	if execErr == nil {
		return nil
	}
	if !ok {
		slog.Warn("Fetch job failed without a request to drop", "jobID", job.ID, "error", execErr)
		return nil
	}
	t.service.abort(context.Background(), acq, execErr)
	return nil
}
