package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/amitcrm/campaign-pipeline/pkg/types/errs"
	"github.com/segmentio/kafka-go"
)

type (
	// EventSource is the slice of a consumer the worker needs: fetch without
	// committing, commit explicitly after the handler succeeds.
	EventSource interface {
		ReadEvent(ctx context.Context) (kafka.Message, error)
		CommitEvent(ctx context.Context, event kafka.Message) error
		Close() error
	}

	// ConsumerFactory builds a fresh consumer for each supervision cycle, so
	// a restart after a crash starts from the last committed offset.
	ConsumerFactory func(ctx context.Context) (EventSource, error)

	Handler interface {
		Handle(ctx context.Context, event kafka.Message) error
	}
)

// Worker runs one consume loop under supervision. When the loop dies for any
// reason other than shutdown, the worker waits restartDelay, rebuilds the
// consumer and resumes. Uncommitted messages are redelivered, which is why
// every handler must tolerate duplicates.
type Worker struct {
	name    string
	factory ConsumerFactory
	handler Handler

	restartDelay  time.Duration
	commitTimeout time.Duration

	logger logger.Interface

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewWorker(
	name string,
	factory ConsumerFactory,
	handler Handler,
	restartDelay time.Duration,
	commitTimeout time.Duration,
	l logger.Interface,
) *Worker {
	return &Worker{
		name:          name,
		factory:       factory,
		handler:       handler,
		restartDelay:  restartDelay,
		commitTimeout: commitTimeout,
		logger:        l,
		done:          make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go w.supervise(ctx)
}

func (w *Worker) supervise(ctx context.Context) {
	defer close(w.done)

	for {
		err := w.consume(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		w.logger.Error(err, "%s worker crashed, restarting in %s", w.name, w.restartDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.restartDelay):
		}
	}
}

// consume runs one consumer until it fails or the context ends. A panic in a
// handler is converted into an error so supervision treats it like any other
// crash.
func (w *Worker) consume(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s worker panic: %v", w.name, r)
		}
	}()

	source, err := w.factory(ctx)
	if err != nil {
		return fmt.Errorf("Worker - consume - w.factory: %w", err)
	}
	defer source.Close()

	for {
		event, err := source.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("Worker - consume - source.ReadEvent: %w", err)
		}

		err = w.handler.Handle(ctx, event)
		if err != nil {
			if errors.Is(err, errs.ErrInvalidPayload) {
				// Malformed messages never become valid; skip past them.
				w.logger.Warn("%s worker skipping bad message at %s/%d/%d: %s", w.name, event.Topic, event.Partition, event.Offset, err)
			} else {
				// Leave the offset uncommitted so the message is retried.
				return fmt.Errorf("Worker - consume - w.handler.Handle: %w", err)
			}
		}

		commitCtx, cancel := context.WithTimeout(ctx, w.commitTimeout)
		err = source.CommitEvent(commitCtx, event)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("Worker - consume - source.CommitEvent: %w", err)
		}
	}
}

// Shutdown stops the consume loop and waits for it to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Worker - Shutdown - %s: %w", w.name, ctx.Err())
	}
}
