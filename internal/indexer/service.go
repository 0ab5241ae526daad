// Package indexer keeps document embeddings in sync with stored files.
//
// The service is a background control loop: one full scan at startup,
// then recurring incremental scans of files modified since the last
// pass. Each eligible file becomes an indexing job; failed jobs retry
// with linear backoff until the attempt budget runs out.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/config"
	"github.com/contaspt/docpipe/internal/docsource"
	"github.com/contaspt/docpipe/internal/pdftext"
	"github.com/contaspt/docpipe/internal/pipeline"
	"github.com/contaspt/docpipe/internal/store"
	"github.com/contaspt/docpipe/internal/tenant"
)

// JobStatus is the lifecycle state of one indexing job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobAbandoned  JobStatus = "abandoned"
)

// IndexingJob tracks one file through indexing, including retries.
type IndexingJob struct {
	ID            string             `json:"id"`
	File          docsource.FileInfo `json:"file"`
	Status        JobStatus          `json:"status"`
	Attempts      int                `json:"attempts"`
	LastError     string             `json:"last_error,omitempty"`
	NextAttemptAt time.Time          `json:"next_attempt_at,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ScanStats summarizes one scan pass.
type ScanStats struct {
	Type      string        `json:"type"`
	FilesSeen int           `json:"files_seen"`
	Eligible  int           `json:"eligible"`
	Indexed   int           `json:"indexed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Retried   int           `json:"retried"`
	Duration  time.Duration `json:"duration"`
}

// Stats is the service's cumulative view.
type Stats struct {
	LastScanTime time.Time `json:"last_scan_time"`
	TotalScans   int       `json:"total_scans"`
	TotalIndexed int       `json:"total_indexed"`
	TotalSkipped int       `json:"total_skipped"`
	TotalFailed  int       `json:"total_failed"`
	ActiveJobs   int       `json:"active_jobs"`
}

// Service is the scheduled indexing control loop for one tenant.
type Service struct {
	cfg      config.IndexingConfig
	tenantID string
	model    string

	source     docsource.Source
	docs       store.DocumentStore
	embeddings store.EmbeddingStore
	pipeline   *pipeline.Pipeline
	metrics    *Metrics
	logger     *zap.Logger

	// batchDelay spaces sequential batches so a large backlog does not
	// monopolize the embedding backend.
	batchDelay time.Duration
	now        func() time.Time

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastScanTime time.Time
	stats        Stats
	jobs         map[string]*IndexingJob
}

func New(cfg config.IndexingConfig, tenantID, model string, source docsource.Source, docs store.DocumentStore, embeddings store.EmbeddingStore, pl *pipeline.Pipeline, metrics *Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Service{
		cfg:        cfg,
		tenantID:   tenantID,
		model:      model,
		source:     source,
		docs:       docs,
		embeddings: embeddings,
		pipeline:   pl,
		metrics:    metrics,
		logger:     logger,
		batchDelay: 500 * time.Millisecond,
		now:        time.Now,
		jobs:       make(map[string]*IndexingJob),
	}
}

// Start launches the background loop: one full scan immediately, then
// recurring scans at the configured interval. Idempotent while running.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("indexing service already running")
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	s.logger.Info("indexing service started",
		zap.String("tenant_id", s.tenantID),
		zap.Int("scan_interval_minutes", s.cfg.ScanIntervalMinutes))
	go s.run()
	return nil
}

// Stop signals the loop and blocks until in-flight work drains.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.logger.Info("indexing service stopped", zap.String("tenant_id", s.tenantID))
}

func (s *Service) run() {
	defer close(s.doneCh)

	ctx := tenant.NewContext(context.Background(), &tenant.Info{TenantID: s.tenantID})
	if _, err := s.PerformFullScan(ctx); err != nil {
		s.logger.Error("initial full scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(time.Duration(s.cfg.ScanIntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			var err error
			if s.cfg.IncrementalSync() {
				_, err = s.PerformIncrementalScan(ctx)
			} else {
				_, err = s.PerformFullScan(ctx)
			}
			if err != nil {
				s.logger.Error("scheduled scan failed", zap.Error(err))
			}
		}
	}
}

// PerformFullScan indexes every eligible file in storage.
func (s *Service) PerformFullScan(ctx context.Context) (*ScanStats, error) {
	files, err := s.source.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return s.scan(ctx, files, "full"), nil
}

// PerformIncrementalScan indexes files modified since the last scan.
func (s *Service) PerformIncrementalScan(ctx context.Context) (*ScanStats, error) {
	s.mu.Lock()
	since := s.lastScanTime
	s.mu.Unlock()

	files, err := s.source.ListFilesModifiedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list modified files: %w", err)
	}
	return s.scan(ctx, files, "incremental"), nil
}

// ForceScan runs one scan immediately, outside the schedule.
func (s *Service) ForceScan(ctx context.Context, full bool) (*ScanStats, error) {
	if full {
		return s.PerformFullScan(ctx)
	}
	return s.PerformIncrementalScan(ctx)
}

// scan drains due retries plus the listed files in sequential batches.
func (s *Service) scan(ctx context.Context, files []docsource.FileInfo, scanType string) *ScanStats {
	start := s.now()
	s.metrics.recordScan(scanType)

	stats := &ScanStats{Type: scanType, FilesSeen: len(files)}

	queue := s.dueRetries()
	stats.Retried = len(queue)
	queued := make(map[string]struct{}, len(queue))
	for _, job := range queue {
		queued[job.File.Path] = struct{}{}
	}
	for _, file := range files {
		if !s.eligible(file) {
			continue
		}
		if _, ok := queued[file.Path]; ok {
			continue
		}
		job := s.jobFor(file)
		if job.Status == JobAbandoned {
			continue
		}
		if job.Status == JobFailed && job.NextAttemptAt.After(s.now()) {
			// Backoff has not elapsed yet.
			continue
		}
		queue = append(queue, job)
	}
	stats.Eligible = len(queue) - stats.Retried

	for i := 0; i < len(queue); i += s.batchSize() {
		end := i + s.batchSize()
		if end > len(queue) {
			end = len(queue)
		}
		if i > 0 && !s.pause() {
			break
		}
		for _, job := range queue[i:end] {
			s.processJob(ctx, job, stats)
		}
	}

	s.mu.Lock()
	s.lastScanTime = start
	s.stats.LastScanTime = start
	s.stats.TotalScans++
	s.stats.TotalIndexed += stats.Indexed
	s.stats.TotalSkipped += stats.Skipped
	s.stats.TotalFailed += stats.Failed
	active := s.activeJobsLocked()
	s.mu.Unlock()
	s.metrics.setActiveJobs(active)

	stats.Duration = s.now().Sub(start)
	s.logger.Info("scan complete",
		zap.String("type", scanType),
		zap.Int("files_seen", stats.FilesSeen),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("retried", stats.Retried))
	return stats
}

// pause waits the inter-batch delay, returning false when stopping.
func (s *Service) pause() bool {
	if s.batchDelay <= 0 {
		return true
	}
	timer := time.NewTimer(s.batchDelay)
	defer timer.Stop()

	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if stopCh == nil {
		<-timer.C
		return true
	}
	select {
	case <-stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// batchSize returns the jobs handed to the pipeline per batch, clamped
// so one batch never exceeds the concurrent-job cap.
func (s *Service) batchSize() int {
	size := s.cfg.BatchSize
	if size <= 0 {
		size = 5
	}
	if s.cfg.MaxConcurrentJobs > 0 && size > s.cfg.MaxConcurrentJobs {
		size = s.cfg.MaxConcurrentJobs
	}
	return size
}

// eligible applies the extension allow-list, the size cap and the
// temp-file name filter.
func (s *Service) eligible(file docsource.FileInfo) bool {
	name := strings.ToLower(file.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.Contains(name, "temp") || strings.Contains(name, "tmp") {
		return false
	}
	if file.Size > int64(s.cfg.MaxFileSizeMB)*1024*1024 {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(fileExt(name)), ".")
	for _, allowed := range s.cfg.AllowedFileTypes {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func fileExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}

// jobFor returns the tracked job for a file, creating one on first
// sight and refreshing the file info on later scans.
func (s *Service) jobFor(file docsource.FileInfo) *IndexingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[file.Path]; ok {
		if job.Status != JobAbandoned {
			job.File = file
		}
		return job
	}
	job := &IndexingJob{
		ID:        uuid.NewString(),
		File:      file,
		Status:    JobPending,
		UpdatedAt: s.now(),
	}
	s.jobs[file.Path] = job
	return job
}

// dueRetries returns failed jobs whose backoff has elapsed.
func (s *Service) dueRetries() []*IndexingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []*IndexingJob
	for _, job := range s.jobs {
		if job.Status == JobFailed && !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	return due
}

func (s *Service) processJob(ctx context.Context, job *IndexingJob, stats *ScanStats) {
	s.mu.Lock()
	job.Status = JobProcessing
	job.UpdatedAt = s.now()
	s.mu.Unlock()

	outcome, err := s.indexFile(ctx, job.File)

	s.mu.Lock()
	defer s.mu.Unlock()
	job.UpdatedAt = s.now()

	if err == nil {
		job.Status = JobCompleted
		job.LastError = ""
		delete(s.jobs, job.File.Path)
		switch outcome {
		case "skipped":
			stats.Skipped++
		default:
			stats.Indexed++
		}
		s.metrics.recordOutcome(outcome)
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	stats.Failed++
	s.metrics.recordOutcome("failed")

	if job.Attempts < s.cfg.RetryAttempts {
		// Linear backoff: delay grows with the attempt number.
		backoff := time.Duration(s.cfg.RetryDelayMinutes*job.Attempts) * time.Minute
		job.Status = JobFailed
		job.NextAttemptAt = s.now().Add(backoff)
		s.logger.Warn("indexing failed, retry scheduled",
			zap.String("path", job.File.Path),
			zap.Int("attempt", job.Attempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		return
	}

	// Kept in the map so later scans do not resurrect the file.
	job.Status = JobAbandoned
	s.logger.Error("indexing abandoned after retry budget",
		zap.String("path", job.File.Path),
		zap.Int("attempts", job.Attempts),
		zap.Error(err))
}

// indexFile embeds one file unless the stored embedding is already
// current for it.
func (s *Service) indexFile(ctx context.Context, file docsource.FileInfo) (string, error) {
	documentID := file.Path
	version := versionHash(file.Name, file.Size, file.ModTime, s.model)

	if existing, err := s.embeddings.GetEmbedding(ctx, s.tenantID, documentID); err == nil {
		if !file.ModTime.After(existing.GeneratedAt) && existing.Version == version {
			return "skipped", nil
		}
	}

	data, err := s.source.ReadFile(ctx, file.Path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	text, err := pdftext.Extract(data)
	if err != nil {
		s.logger.Debug("no text layer, indexing metadata only",
			zap.String("path", file.Path), zap.Error(err))
		text = ""
	}

	if err := s.docs.SaveDocument(ctx, &store.DocumentRow{
		TenantID:     s.tenantID,
		DocumentID:   documentID,
		Filename:     file.Name,
		MimeType:     file.MimeType,
		StoragePath:  file.Path,
		DocumentType: "document",
		OCRText:      text,
		CreatedAt:    s.now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}

	result := s.pipeline.ProcessDocument(ctx, documentID, pipeline.Options{
		ForceRegenerate: true,
		Version:         version,
	})
	if !result.Success {
		return "", fmt.Errorf("embed document: %s", result.Error)
	}
	return "indexed", nil
}

// GetStats returns a snapshot of the cumulative indexing stats.
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.ActiveJobs = s.activeJobsLocked()
	return stats
}

// GetActiveJobs lists jobs that are pending, processing or awaiting
// retry.
func (s *Service) GetActiveJobs() []IndexingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]IndexingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Status == JobAbandoned {
			continue
		}
		jobs = append(jobs, *job)
	}
	return jobs
}

func (s *Service) activeJobsLocked() int {
	active := 0
	for _, job := range s.jobs {
		if job.Status != JobAbandoned {
			active++
		}
	}
	return active
}

// versionHash is the idempotency tag for one (file state, model) pair.
func versionHash(filename string, size int64, modTime time.Time, model string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s", filename, size, modTime.UnixNano(), model)))
	return hex.EncodeToString(sum[:])[:32]
}
