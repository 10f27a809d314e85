package workers

import (
	"context"
	"errors"
	"time"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/queue"
)

const idleSleep = time.Second

// ProcessFunc handles one dequeued entity id.
type ProcessFunc func(ctx context.Context, id int64) error

// Worker polls one redis queue and processes items sequentially, so a
// single worker never runs two recomputations of the same id at once.
type Worker struct {
	log       *logger.Logger
	queue     queue.Queue
	queueName string
	process   ProcessFunc
}

func NewWorker(log *logger.Logger, q queue.Queue, queueName string, process ProcessFunc) *Worker {
	return &Worker{
		log:       log.With("worker", queueName),
		queue:     q,
		queueName: queueName,
		process:   process,
	}
}

// Run blocks until ctx is cancelled. Processing failures are logged and
// the item is dropped; upstream activity will re-enqueue it eventually.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		default:
		}

		id, err := w.queue.Dequeue(ctx, w.queueName)
		if errors.Is(err, queue.ErrEmpty) {
			w.sleep(ctx)
			continue
		}
		if err != nil {
			w.log.Warn("dequeue failed", "error", err)
			w.sleep(ctx)
			continue
		}

		if err := w.process(ctx, id); err != nil {
			w.log.Error("processing failed", "id", id, "error", err)
		}
	}
}

func (w *Worker) sleep(ctx context.Context) {
	timer := time.NewTimer(idleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
