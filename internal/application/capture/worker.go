package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	appsession "dropcode/internal/application/session"
	"dropcode/internal/domain/customer"
	"dropcode/internal/domain/session"
	"dropcode/internal/shared/goroutine"
	"dropcode/internal/shared/logger"
)

// ErrQueueFull means the capture backlog is at capacity; the customer
// should retry shortly rather than wait in an unbounded line.
var ErrQueueFull = errors.New("capture queue is full")

// ImageStore persists screenshot images and resolves their paths.
type ImageStore interface {
	SaveBytes(data []byte) (string, error)
	SaveFromURL(ctx context.Context, url string) (string, error)
	Path(name string) (string, error)
}

// Notifier pushes capture outcomes to the customer.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhotoFile(ctx context.Context, chatID int64, path, caption string) error
}

// Job is one queued capture attempt, fully resolved: the session is
// active, the device is bound, the artifact row exists in pending.
type Job struct {
	SessionID        uint
	ArtifactID       uint
	Provider         string
	ProviderDeviceID string
	TrackingID       string
	CustomerID       uint
	TelegramChatID   int64
	CourierName      string
	LockerCode       string
}

// Worker consumes capture jobs off a bounded queue one at a time. Each
// attempt runs under its own deadline so a hung provider call cannot
// wedge the queue, and under panic recovery so a bad response cannot
// kill the consumer.
type Worker struct {
	orchestrator *Orchestrator
	tracker      *appsession.Tracker
	sessionRepo  session.Repository
	artifactRepo session.ArtifactRepository
	customerRepo customer.Repository
	images       ImageStore
	notifier     Notifier

	queue          chan Job
	attemptTimeout time.Duration
	logger         logger.Interface
}

func NewWorker(
	orchestrator *Orchestrator,
	tracker *appsession.Tracker,
	sessionRepo session.Repository,
	artifactRepo session.ArtifactRepository,
	customerRepo customer.Repository,
	images ImageStore,
	notifier Notifier,
	queueSize int,
	attemptTimeout time.Duration,
	log logger.Interface,
) *Worker {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Worker{
		orchestrator:   orchestrator,
		tracker:        tracker,
		sessionRepo:    sessionRepo,
		artifactRepo:   artifactRepo,
		customerRepo:   customerRepo,
		images:         images,
		notifier:       notifier,
		queue:          make(chan Job, queueSize),
		attemptTimeout: attemptTimeout,
		logger:         log.Named("capture-worker"),
	}
}

// Start launches the consumer loop. It returns immediately; the loop
// stops when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	goroutine.SafeGo(w.logger, "capture-worker", func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Infow("capture worker stopping")
				return
			case job := <-w.queue:
				w.run(job)
			}
		}
	})
}

// Enqueue adds a job without blocking. A full queue is reported to the
// caller, never silently dropped.
func (w *Worker) Enqueue(job Job) error {
	select {
	case w.queue <- job:
		w.logger.Infow("capture job enqueued", "session_id", job.SessionID, "artifact_id", job.ArtifactID)
		return nil
	default:
		return ErrQueueFull
	}
}

// QueueDepth reports the current backlog.
func (w *Worker) QueueDepth() int {
	return len(w.queue)
}

// finishTimeout bounds the bookkeeping and delivery that follow a
// capture attempt. It is deliberately independent of the attempt
// deadline: an attempt that died on its own clock must still get its
// artifact, session, and customer notice written out.
const finishTimeout = 30 * time.Second

// run executes one job under its own deadline and panic guard. The job
// context is derived from Background: a queued capture outlives the
// HTTP request that created it.
func (w *Worker) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("capture job panicked", "session_id", job.SessionID, "panic", r)
			ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
			defer cancel()
			w.finishFailed(ctx, job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	attemptCtx, attemptCancel := context.WithTimeout(context.Background(), w.attemptTimeout)
	defer attemptCancel()

	shot, err := w.orchestrator.Capture(attemptCtx, Request{
		Provider:         job.Provider,
		ProviderDeviceID: job.ProviderDeviceID,
		TrackingID:       job.TrackingID,
	})

	// The attempt deadline covers only the device interaction. Everything
	// after runs on its own clock, or an expired attempt would also kill
	// the cleanup writes and leave the artifact stuck in pending.
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if err != nil {
		w.logger.Warnw("capture attempt failed",
			"session_id", job.SessionID,
			"provider", job.Provider,
			"device_id", job.ProviderDeviceID,
			"error", err,
		)
		w.finishFailed(ctx, job, err.Error())
		return
	}

	var imageName string
	if len(shot.Data) > 0 {
		imageName, err = w.images.SaveBytes(shot.Data)
	} else {
		imageName, err = w.images.SaveFromURL(ctx, shot.URL)
	}
	if err != nil {
		w.logger.Errorw("failed to store screenshot", "session_id", job.SessionID, "error", err)
		w.finishFailed(ctx, job, "failed to store screenshot")
		return
	}

	w.finishCaptured(ctx, job, imageName)
}

// finishCaptured walks the artifact through captured and delivered,
// completes the session, and bumps the customer counter. Delivery
// failing leaves the artifact in captured with the image on disk; an
// operator can re-deliver by hand.
func (w *Worker) finishCaptured(ctx context.Context, job Job, imageName string) {
	artifact, err := w.artifactRepo.GetByID(ctx, job.ArtifactID)
	if err != nil {
		w.logger.Errorw("failed to load artifact", "artifact_id", job.ArtifactID, "error", err)
		return
	}
	if err := artifact.MarkCaptured(imageName); err != nil {
		w.logger.Errorw("failed to mark artifact captured", "artifact_id", job.ArtifactID, "error", err)
		return
	}
	if err := w.artifactRepo.Update(ctx, artifact); err != nil {
		w.logger.Errorw("failed to persist captured artifact", "artifact_id", job.ArtifactID, "error", err)
		return
	}

	delivered := w.deliver(ctx, job, imageName)
	if delivered {
		if err := artifact.MarkDelivered(); err == nil {
			if err := w.artifactRepo.Update(ctx, artifact); err != nil {
				w.logger.Errorw("failed to persist delivered artifact", "artifact_id", job.ArtifactID, "error", err)
			}
		}
	}

	w.completeSession(ctx, job)
	w.recordCapture(ctx, job)

	w.logger.Infow("capture job finished",
		"session_id", job.SessionID,
		"artifact_id", job.ArtifactID,
		"image", imageName,
		"delivered", delivered,
	)
}

func (w *Worker) deliver(ctx context.Context, job Job, imageName string) bool {
	if w.notifier == nil || job.TelegramChatID == 0 {
		return false
	}

	path, err := w.images.Path(imageName)
	if err != nil {
		w.logger.Errorw("failed to resolve image path", "image", imageName, "error", err)
		return false
	}

	caption := "Your pickup code is ready."
	if job.CourierName != "" && job.LockerCode != "" {
		caption = fmt.Sprintf("Your pickup code is ready.\nCourier: %s\nLocker: %s", job.CourierName, job.LockerCode)
	}
	if err := w.notifier.SendPhotoFile(ctx, job.TelegramChatID, path, caption); err != nil {
		w.logger.Errorw("failed to deliver screenshot", "session_id", job.SessionID, "error", err)
		return false
	}
	return true
}

// finishFailed records the terminal failure on the artifact, ends the
// session so the device returns to the pool, and tells the customer.
// Retrying means a fresh request and a fresh session.
func (w *Worker) finishFailed(ctx context.Context, job Job, reason string) {
	artifact, err := w.artifactRepo.GetByID(ctx, job.ArtifactID)
	if err != nil {
		w.logger.Errorw("failed to load artifact", "artifact_id", job.ArtifactID, "error", err)
	} else {
		if err := artifact.MarkFailed(reason); err != nil {
			w.logger.Errorw("failed to mark artifact failed", "artifact_id", job.ArtifactID, "error", err)
		} else if err := w.artifactRepo.Update(ctx, artifact); err != nil {
			w.logger.Errorw("failed to persist failed artifact", "artifact_id", job.ArtifactID, "error", err)
		}
	}

	w.completeSession(ctx, job)

	if w.notifier != nil && job.TelegramChatID != 0 {
		msg := "The capture could not be completed. Please try again in a few minutes."
		if err := w.notifier.SendMessage(ctx, job.TelegramChatID, msg); err != nil {
			w.logger.Warnw("failed to notify capture failure", "session_id", job.SessionID, "error", err)
		}
	}
}

func (w *Worker) completeSession(ctx context.Context, job Job) {
	s, err := w.sessionRepo.GetByID(ctx, job.SessionID)
	if err != nil {
		w.logger.Errorw("failed to load session for completion", "session_id", job.SessionID, "error", err)
		return
	}
	if err := w.tracker.Complete(ctx, s); err != nil {
		w.logger.Errorw("failed to complete session", "session_id", job.SessionID, "error", err)
	}
}

func (w *Worker) recordCapture(ctx context.Context, job Job) {
	c, err := w.customerRepo.GetByID(ctx, job.CustomerID)
	if err != nil {
		w.logger.Warnw("failed to load customer for capture count", "customer_id", job.CustomerID, "error", err)
		return
	}
	c.RecordCapture()
	if err := w.customerRepo.Update(ctx, c); err != nil {
		w.logger.Warnw("failed to bump capture count", "customer_id", job.CustomerID, "error", err)
	}
}
