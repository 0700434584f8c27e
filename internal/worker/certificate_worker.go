package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/queue"
)

const CertificatePollTimeout = 1 * time.Second

// CertificateQueue is the part of queue.RedisQueue the worker needs.
type CertificateQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	ScheduleRetry(ctx context.Context, job *queue.Job, at time.Time) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	DeadLetter(ctx context.Context, job *queue.Job) error
}

// CertificateWorker consumes certificate jobs and hands each one to the
// certificate renderer as a certificate.requested event.
type CertificateWorker struct {
	queue        CertificateQueue
	publisher    event.Publisher
	backoff      time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func NewCertificateWorker(q CertificateQueue, publisher event.Publisher, backoff, pollInterval time.Duration, log zerolog.Logger) *CertificateWorker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &CertificateWorker{
		queue:        q,
		publisher:    publisher,
		backoff:      backoff,
		pollInterval: pollInterval,
		log:          log.With().Str("component", "certificate_worker").Logger(),
		now:          time.Now,
	}
}

// Start runs the consume loop and the retry promoter until ctx is cancelled.
// Call in a goroutine.
func (w *CertificateWorker) Start(ctx context.Context) {
	w.log.Info().Msg("CertificateWorker started")

	go w.promoteLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("CertificateWorker stopped")
			return
		default:
			job, err := w.queue.Dequeue(ctx, CertificatePollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Dequeue error")
				}
				continue
			}
			if job == nil {
				continue
			}
			w.Handle(ctx, job)
		}
	}
}

func (w *CertificateWorker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.PromoteDue(ctx, w.now())
			if err != nil {
				if ctx.Err() == nil {
					w.log.Error().Err(err).Msg("Promote delayed jobs failed")
				}
				continue
			}
			if n > 0 {
				w.log.Debug().Int("count", n).Msg("Promoted delayed certificate jobs")
			}
		}
	}
}

// Handle processes one job, scheduling a retry or dead-lettering it on failure.
func (w *CertificateWorker) Handle(ctx context.Context, job *queue.Job) {
	err := w.process(ctx, job)
	if err == nil {
		metrics.CertificateJobs.WithLabelValues("succeeded").Inc()
		return
	}

	job.Attempts++
	job.LastError = err.Error()
	l := w.log.With().
		Str("job_id", job.ID).
		Int("attempts", job.Attempts).
		Int("max_attempts", job.MaxAttempts).
		Logger()

	if job.Attempts >= job.MaxAttempts {
		metrics.CertificateJobs.WithLabelValues("dead").Inc()
		l.Error().Err(err).Msg("Certificate job exhausted its attempts")
		if dlErr := w.queue.DeadLetter(ctx, job); dlErr != nil {
			l.Error().Err(dlErr).Msg("Failed to dead-letter certificate job")
		}
		return
	}

	delay := queue.Backoff(w.backoff, job.Attempts)
	metrics.CertificateJobs.WithLabelValues("retried").Inc()
	l.Warn().Err(err).Dur("retry_in", delay).Msg("Certificate job failed, scheduling retry")
	if rErr := w.queue.ScheduleRetry(ctx, job, w.now().Add(delay)); rErr != nil {
		l.Error().Err(rErr).Msg("Failed to schedule certificate job retry")
	}
}

func (w *CertificateWorker) process(ctx context.Context, job *queue.Job) error {
	if job.Name != model.CertificateJobName {
		return fmt.Errorf("unexpected job %q", job.Name)
	}

	var req model.CertificateRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return fmt.Errorf("decode certificate request: %w", err)
	}

	e := event.New(event.CertificateRequested, req.UserID, req.SessionID, req)
	if err := w.publisher.Publish(ctx, e); err != nil {
		return err
	}

	w.log.Info().
		Str("certificate_id", req.CertificateID).
		Int("user_id", req.UserID).
		Str("session_id", req.SessionID.String()).
		Msg("Certificate requested")
	return nil
}
