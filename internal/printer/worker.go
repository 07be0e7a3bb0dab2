package printer

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/tillworks/pos-bridge/internal/config"
	"github.com/tillworks/pos-bridge/internal/serialport"
)

// wirePort is the part of the serial port the worker touches.
type wirePort interface {
	io.WriteCloser
	Drain() error
}

// Worker consumes the job queue and writes each job to the printer. The
// port is opened per job and closed right after; the printer powers its
// interface down between receipts and a held connection goes stale.
type Worker struct {
	cfg      config.Printer
	queue    *Queue
	encoder  *Encoder
	resolver serialport.Resolver
	open     func(path string, s serialport.Settings) (wirePort, error)
}

// NewWorker creates a Worker consuming queue.
func NewWorker(cfg config.Printer, queue *Queue) *Worker {
	return &Worker{
		cfg:     cfg,
		queue:   queue,
		encoder: NewEncoder(cfg),
		resolver: serialport.Resolver{
			Match:    cfg.ByIDMatch,
			Fallback: cfg.Fallback,
		},
		open: func(path string, s serialport.Settings) (wirePort, error) {
			return serialport.Open(path, s)
		},
	}
}

// Run processes jobs until ctx is cancelled or the queue is closed. A
// failed job is logged and dropped; it never blocks the jobs behind it.
func (w *Worker) Run(ctx context.Context) {
	for {
		job := w.queue.Dequeue()
		if job == nil || ctx.Err() != nil {
			return
		}

		err := w.deliver(job)
		w.queue.Finish(job, err)

		if err != nil {
			log.Error().Err(err).Str("job", job.ID).Msg("print failed")
		} else {
			log.Info().Str("job", job.ID).Msg("print completed")
		}
	}
}

// deliver encodes and writes one job.
func (w *Worker) deliver(job *Job) error {
	data, err := w.encoder.Encode(job.Text)
	if err != nil {
		return err
	}

	path := w.resolver.Resolve()

	port, err := w.open(path, serialport.Settings{
		BaudRate:        w.cfg.BaudRate,
		ReadTimeout:     w.cfg.Timeout(),
		DTRDSRHandshake: true,
	})
	if err != nil {
		return err
	}
	defer port.Close()

	log.Debug().Str("port", path).Int("baud", w.cfg.BaudRate).Int("bytes", len(data)).Msg("printer connected")

	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("failed to write to printer: %w", err)
	}

	if err := port.Drain(); err != nil {
		return fmt.Errorf("failed to flush printer: %w", err)
	}

	return nil
}
