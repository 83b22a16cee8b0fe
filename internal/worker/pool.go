package worker

import (
	"context"
	"fmt"

	"scribo/internal/admission"
	"scribo/internal/job"
	"scribo/internal/queue"
	"scribo/internal/transport"
	"scribo/pkg/logger"

	"go.uber.org/zap"
)

// Pool runs a fixed number of worker goroutines, each bound to its own
// recognizer instance. Workers drain the queue until the context is
// cancelled; a single job's failure never takes a worker down.
type Pool struct {
	queue     *queue.JobQueue
	processor *Processor
	admission *admission.Control
	transport transport.Transport
	workers   int

	newRecognizer func() (Recognizer, error)
}

func NewPool(
	q *queue.JobQueue,
	processor *Processor,
	adm *admission.Control,
	tp transport.Transport,
	workers int,
	newRecognizer func() (Recognizer, error),
) *Pool {
	return &Pool{
		queue:         q,
		processor:     processor,
		admission:     adm,
		transport:     tp,
		workers:       workers,
		newRecognizer: newRecognizer,
	}
}

// Start launches the workers. A worker that cannot obtain its recognizer
// fails closed: it logs and contributes no throughput, but the process
// keeps running with the workers that did come up. Returns the number of
// workers actually started.
func (p *Pool) Start(ctx context.Context) int {
	started := 0
	for i := 1; i <= p.workers; i++ {
		name := fmt.Sprintf("worker-%d", i)

		rec, err := p.newRecognizer()
		if err != nil {
			logger.Error("Failed to initialize recognizer for worker",
				zap.String("worker", name),
				zap.Error(err))
			continue
		}

		started++
		go p.run(ctx, name, rec)
	}

	logger.Info("Worker pool started", zap.Int("workers", started))
	return started
}

func (p *Pool) run(ctx context.Context, name string, rec Recognizer) {
	logger.Info("Worker started", zap.String("worker", name))

	for {
		j, err := p.queue.Get(ctx)
		if err != nil {
			logger.Info("Worker stopping", zap.String("worker", name), zap.Error(err))
			return
		}
		p.handle(ctx, name, j, rec)
	}
}

// handle processes one job. Cleanup is deferred so it runs on every exit:
// the status message is deleted best-effort and the admission slot is
// released exactly once, whatever happened in between.
func (p *Pool) handle(ctx context.Context, name string, j job.Job, rec Recognizer) {
	logger.Info("Worker picked up job",
		zap.String("worker", name),
		zap.String("job_id", j.ID),
		zap.Int64("chat_id", j.ChatID))

	defer p.admission.Release(j.ChatID)
	defer func() {
		// The status message may already be gone.
		_ = p.transport.DeleteMessage(ctx, j.ChatID, j.StatusMessageID)
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker recovered from panic",
				zap.String("worker", name),
				zap.String("job_id", j.ID),
				zap.Any("panic", r))
		}
	}()

	if p.processor.Process(ctx, j, rec) {
		logger.Info("Worker completed job",
			zap.String("worker", name),
			zap.String("job_id", j.ID))
	} else {
		logger.Warn("Worker failed job",
			zap.String("worker", name),
			zap.String("job_id", j.ID))
	}
}
