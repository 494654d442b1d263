package requesting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/jobs"
	"github.com/contre95/jukebox/src/features/metrics"
	"github.com/contre95/jukebox/src/music"
	"github.com/google/uuid"
)

// FetchJobType is the job type fetch tasks are registered under.
const FetchJobType = "fetch_track"

// Request is one song request as received from a user surface.
type Request struct {
	ID string
	// Query is free text or a URL.
	Query string
	// URL takes precedence over Query.
	URL string
	// Key is an archive key. It takes precedence over URL and Query. 0 means none.
	Key              int64
	RequesterAddress string
	// Archive counts the request towards the track's popularity and links the query.
	Archive           bool
	ManuallyRequested bool
	// Wait overrides requests.wait_for_download for this request.
	Wait *bool
}

// Accepted describes a request that passed validation.
type Accepted struct {
	RequestID string `json:"request_id"`
	// Cached is set when the media was already local and the track went straight to the queue.
	Cached bool `json:"cached"`
	// Pending is set while the media is still being fetched in the background.
	Pending bool   `json:"pending"`
	EntryID string `json:"entry_id,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// Broadcaster publishes state snapshots to observers.
type Broadcaster interface {
	Broadcast(ctx context.Context, state State)
}

// Releaser is the release side of the playback readiness signal.
type Releaser interface {
	Release()
}

// acquisition is a request in flight through the pipeline.
type acquisition struct {
	request     Request
	provider    Provider
	placeholder bool
	enqueued    atomic.Bool
	entryID     string
}

// Service is the acquisition pipeline: it is the only component that mutates
// the archive, the placeholder registry and the queue together.
type Service struct {
	config       *config.Manager
	builder      Builder
	archive      music.Archive
	queue        music.Queue
	placeholders music.PlaceholderRegistry
	jobService   jobs.JobService
	broadcaster  Broadcaster
	signal       Releaser
	metrics      *metrics.Collector

	// stateMu makes queue append plus placeholder resolution atomic with respect to State.
	stateMu sync.Mutex
	// broadcastMu publishes snapshots in the order they were taken.
	broadcastMu sync.Mutex
	inflight    sync.Map // request id -> *acquisition
}

// NewService creates the request pipeline. collector may be nil.
func NewService(cfg *config.Manager, builder Builder, archive music.Archive, queue music.Queue, placeholders music.PlaceholderRegistry, jobService jobs.JobService, broadcaster Broadcaster, signal Releaser, collector *metrics.Collector) *Service {
	return &Service{
		config:       cfg,
		builder:      builder,
		archive:      archive,
		queue:        queue,
		placeholders: placeholders,
		jobService:   jobService,
		broadcaster:  broadcaster,
		signal:       signal,
		metrics:      collector,
	}
}

// HandleRequest runs a request through cache check, fetchability check, fetch and enqueue.
// Rejections (unsupported source, unknown archive key, fetch errors) leave no trace in the
// archive or the queue.
func (s *Service) HandleRequest(ctx context.Context, req Request) (*Accepted, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	provider, err := s.builder.Build(ctx, req)
	if err != nil {
		s.metrics.ObserveRequest(outcomeOf(err))
		slog.Info("Request rejected", "requestID", req.ID, "query", req.Query, "key", req.Key, "error", err)
		return nil, err
	}
	acq := &acquisition{request: req, provider: provider}
	logger := slog.With("requestID", req.ID, "source", provider.Kind().String(), "query", provider.Query())

	cached, err := provider.CheckCached(ctx)
	if err != nil {
		logger.Warn("Cache check failed, treating as a miss", "error", err)
		cached = false
	}
	if cached {
		if err := s.enqueue(ctx, acq, "cached"); err != nil {
			s.metrics.ObserveRequest("failed")
			return nil, err
		}
		s.metrics.ObserveRequest("cached")
		logger.Info("Cached track enqueued", "entryID", acq.entryID)
		return &Accepted{RequestID: req.ID, Cached: true, EntryID: acq.entryID}, nil
	}

	if err := provider.CheckFetchable(ctx); err != nil {
		s.metrics.ObserveRequest(outcomeOf(err))
		logger.Info("Request not fetchable", "error", err)
		return nil, err
	}

	s.placeholders.Add(req.ID, provider.Query())
	acq.placeholder = true
	s.BroadcastState(ctx)

	if !provider.Kind().Downloadable() {
		if err := s.fetch(ctx, acq); err != nil {
			s.abort(ctx, acq, err)
			return nil, err
		}
		s.metrics.ObserveRequest("accepted")
		return &Accepted{RequestID: req.ID, EntryID: acq.entryID}, nil
	}

	s.inflight.Store(req.ID, acq)
	jobID, err := s.jobService.StartJob(FetchJobType, "Fetch: "+provider.Query(), map[string]any{
		"requestID": req.ID,
		"source":    provider.Kind().String(),
	})
	if err != nil {
		s.inflight.Delete(req.ID)
		err = fmt.Errorf("failed to start fetch job: %w", err)
		s.abort(ctx, acq, err)
		return nil, err
	}
	s.metrics.ObserveRequest("accepted")
	logger.Info("Fetch job started", "jobID", jobID)

	wait := s.config.Get().Requests.WaitForDownload
	if req.Wait != nil {
		wait = *req.Wait
	}
	accepted := &Accepted{RequestID: req.ID, Pending: true, JobID: jobID}
	if !wait {
		return accepted, nil
	}
	if err := s.jobService.Wait(ctx, jobID); err != nil {
		if ctx.Err() != nil {
			logger.Info("Caller stopped waiting, fetch continues in background", "jobID", jobID)
			return accepted, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, jobs.ErrServiceStopped) {
			return nil, fmt.Errorf("%w: %v", music.ErrCancelled, err)
		}
		return nil, err
	}
	accepted.Pending = false
	accepted.EntryID = acq.entryID
	return accepted, nil
}

// fetch runs the provider's fetch, which ends with enqueue.
func (s *Service) fetch(ctx context.Context, acq *acquisition) error {
	start := time.Now()
	source := acq.provider.Kind().String()
	err := acq.provider.Fetch(ctx, func(ctx context.Context) error {
		return s.enqueue(ctx, acq, "fetched")
	})
	result := "ok"
	if err != nil {
		result = "failed"
	}
	s.metrics.ObserveFetch(source, result, time.Since(start))
	return err
}

// abort drops a request whose fetch failed. The request is not retried.
func (s *Service) abort(ctx context.Context, acq *acquisition, err error) {
	if acq.placeholder {
		s.placeholders.Discard(acq.request.ID)
	}
	s.metrics.ObserveRequest("failed")
	slog.Error("Fetch failed, request dropped",
		"requestID", acq.request.ID,
		"source", acq.provider.Kind().String(),
		"query", acq.provider.Query(),
		"error", err)
	s.BroadcastState(ctx)
}

// enqueue archives the track, appends it to the queue, resolves the request's
// placeholder and releases the readiness signal. It runs at most once per acquisition.
func (s *Service) enqueue(ctx context.Context, acq *acquisition, path string) error {
	if !acq.enqueued.CompareAndSwap(false, true) {
		return music.ErrAlreadyEnqueued
	}
	req := acq.request

	md, err := acq.provider.Metadata(ctx)
	if err != nil {
		acq.enqueued.Store(false)
		return fmt.Errorf("failed to read track metadata: %w", err)
	}

	trackID, err := s.archive.Record(ctx, music.RecordParams{
		URL:     md.CanonicalURL,
		Artist:  md.Artist,
		Title:   md.Title,
		Query:   acq.provider.Query(),
		Archive: req.Archive,
	})
	if err != nil {
		acq.enqueued.Store(false)
		return fmt.Errorf("failed to archive %s: %w", md.CanonicalURL, err)
	}
	if req.Archive && req.RequesterAddress != "" && s.config.Get().Requests.LogRequesters {
		if err := s.archive.LogRequest(ctx, trackID, req.RequesterAddress); err != nil {
			slog.Warn("Failed to log request", "trackID", trackID, "error", err)
		}
	}

	s.stateMu.Lock()
	entry := s.queue.Add(md, req.ManuallyRequested)
	if acq.placeholder {
		if err := s.placeholders.Resolve(req.ID, entry.ID); err != nil {
			slog.Warn("Failed to resolve placeholder", "requestID", req.ID, "error", err)
		}
	}
	s.stateMu.Unlock()
	acq.entryID = entry.ID

	slog.Info("Track enqueued",
		"requestID", req.ID,
		"entryID", entry.ID,
		"trackID", trackID,
		"title", md.Title,
		"artist", md.Artist,
		"duration", music.FormatDuration(md.Duration))
	s.BroadcastState(ctx)
	s.signal.Release()
	s.metrics.ObserveEnqueue(path)
	return nil
}

// lookupAcquisition hands the in-flight request to its fetch job.
func (s *Service) lookupAcquisition(requestID string) (*acquisition, bool) {
	value, ok := s.inflight.Load(requestID)
	if !ok {
		return nil, false
	}
	return value.(*acquisition), true
}

// releaseAcquisition forgets the in-flight request once its fetch job is done.
func (s *Service) releaseAcquisition(requestID string) (*acquisition, bool) {
	value, ok := s.inflight.LoadAndDelete(requestID)
	if !ok {
		return nil, false
	}
	return value.(*acquisition), true
}

// Vote changes the vote count of a queue entry.
func (s *Service) Vote(ctx context.Context, entryID string, delta int) (music.QueueEntry, error) {
	entry, err := s.queue.Vote(entryID, delta)
	if err != nil {
		return music.QueueEntry{}, err
	}
	s.BroadcastState(ctx)
	return entry, nil
}

// TopTrack is an archived track with the queries that led to it.
type TopTrack struct {
	*music.ArchivedTrack
	Queries []string `json:"queries"`
	// LoggedRequests counts request log entries, which exist only while requester logging is on.
	LoggedRequests int `json:"logged_requests"`
}

// TopTracks returns the most requested archived tracks.
func (s *Service) TopTracks(ctx context.Context, limit int) ([]TopTrack, error) {
	tracks, err := s.archive.TopTracks(ctx, limit)
	if err != nil {
		return nil, err
	}
	top := make([]TopTrack, 0, len(tracks))
	for _, track := range tracks {
		queries, err := s.archive.QueriesFor(ctx, track.ID)
		if err != nil {
			return nil, err
		}
		if queries == nil {
			queries = []string{}
		}
		logged, err := s.archive.CountRequests(ctx, track.ID)
		if err != nil {
			return nil, err
		}
		top = append(top, TopTrack{ArchivedTrack: track, Queries: queries, LoggedRequests: logged})
	}
	return top, nil
}

// ArchivedCount returns how many distinct tracks the archive holds.
func (s *Service) ArchivedCount(ctx context.Context) (int, error) {
	return s.archive.CountTracks(ctx)
}

// BroadcastState publishes a fresh snapshot. The last snapshot published always
// reflects every change made before the call.
func (s *Service) BroadcastState(ctx context.Context) {
	if s.broadcaster == nil {
		return
	}
	s.broadcastMu.Lock()
	defer s.broadcastMu.Unlock()
	s.broadcaster.Broadcast(ctx, s.State())
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, music.ErrUnsupportedSource):
		return "unsupported"
	case errors.Is(err, music.ErrNotFound):
		return "not_found"
	}
	if fe, ok := music.IsFetchError(err); ok {
		return "rejected_" + string(fe.Reason)
	}
	return "failed"
}
