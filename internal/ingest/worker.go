// Package ingest runs the background extraction pipeline: uploaded documents
// are turned into fingerprinted rules and fed to the similarity index.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ruleminder/internal/extract"
	"ruleminder/internal/index"
	"ruleminder/internal/storage"
)

// JobTypeExtract is the queue entry produced by a document upload.
const JobTypeExtract = "document_extract"

// fingerprintConcurrency bounds the per-document fingerprint fan-out.
const fingerprintConcurrency = 4

// JobStore abstracts the queue and document/rule persistence.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	SaveRules(documentID string, rules []index.Rule) error
	MarkDocumentExtracted(id string, ruleCount int) error
}

// RuleIndexer receives freshly extracted rules.
type RuleIndexer interface {
	AddRules(rules []index.Rule)
}

// Worker processes document_extract jobs from the SQLite job queue.
type Worker struct {
	store JobStore
	idx   RuleIndexer
	poll  time.Duration

	newID  func() string
	logger *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, idx RuleIndexer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:  store,
		idx:    idx,
		poll:   pollInterval,
		newID:  func() string { return uuid.New().String() },
		logger: slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single extraction job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeExtract})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type extractPayload struct {
	DocumentID string `json:"document_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload extractPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	candidates, err := extract.Rules(doc.Type, doc.Content)
	if err != nil {
		return fmt.Errorf("extracting rules from %s: %w", doc.ID, err)
	}

	rules := make([]index.Rule, len(candidates))
	for i, c := range candidates {
		rules[i] = index.Rule{
			ID:       w.newID(),
			Content:  c.Content,
			Source:   doc.Type,
			Priority: c.Priority,
			Category: c.Category,
		}
	}

	if err := w.fingerprintAll(ctx, rules); err != nil {
		return err
	}

	if err := w.store.SaveRules(doc.ID, rules); err != nil {
		return fmt.Errorf("saving rules for %s: %w", doc.ID, err)
	}
	if err := w.store.MarkDocumentExtracted(doc.ID, len(rules)); err != nil {
		return fmt.Errorf("marking document %s extracted: %w", doc.ID, err)
	}

	w.idx.AddRules(rules)
	w.logger.Info("document extracted", "document_id", doc.ID, "rules", len(rules))
	return nil
}

// fingerprintAll computes fingerprints concurrently, bounded so a large
// document cannot monopolize the process.
func (w *Worker) fingerprintAll(ctx context.Context, rules []index.Rule) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(fingerprintConcurrency)

	for i := range rules {
		g.Go(func() error {
			rules[i].Fingerprint = index.Fingerprint(rules[i].Content)
			return nil
		})
	}
	return g.Wait()
}
