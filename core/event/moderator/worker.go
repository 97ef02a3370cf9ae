package moderator

import (
	"context"
	"sync"
	"time"

	"github.com/goto/salt/log"
)

type Writer interface {
	Write(messages [][]byte) error
	Close() error
}

type Worker struct {
	mu       sync.Mutex
	messages [][]byte

	messageChan   <-chan []byte
	batchInterval time.Duration
	wg            sync.WaitGroup
	writer        Writer
	logger        log.Logger
}

func NewWorker(messageChan <-chan []byte, writer Writer, batchInterval time.Duration, logger log.Logger) *Worker {
	w := &Worker{
		messageChan:   messageChan,
		batchInterval: batchInterval,
		writer:        writer,
		logger:        logger,
	}
	w.wg.Add(1)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.batchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			w.Flush()
			return
		case msg := <-w.messageChan:
			w.add(msg)
		case <-ticker.C:
			w.Flush()
		}
	}
}

func (w *Worker) add(msg []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msg)
}

func (w *Worker) drain() {
	for {
		select {
		case msg := <-w.messageChan:
			w.add(msg)
		default:
			return
		}
	}
}

// Flush writes the pending batch, the batch stays queued when the writer fails
func (w *Worker) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.messages) == 0 {
		return
	}

	if err := w.writer.Write(w.messages); err != nil {
		w.logger.Error("error publishing %d events: %s", len(w.messages), err)
		return
	}
	w.messages = make([][]byte, 0)
}

func (w *Worker) Close() error {
	// wait for the last batch to be written
	w.wg.Wait()
	return w.writer.Close()
}
