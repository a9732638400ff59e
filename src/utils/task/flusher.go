package task

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/commerceblock/coordinator/src/utils/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/gammazero/deque"
)

// Processing task. Ensures flush is over before another is started.
type Flusher[In any] struct {
	*Task

	// Channel for the data to be processed
	input chan In

	// Periodically called to handle a batch of processed data
	onFlush func([]In) error

	// Queue for the processed data
	queue deque.Deque[In]

	// Batch size that will trigger the onFlush function
	batchSize int

	// Flush interval
	flushInterval time.Duration

	// Max time flush should be retried. 0 means no limit.
	maxElapsedTime time.Duration

	// Max time between flush retries
	maxInterval time.Duration
}

func NewFlusher[In any](config *config.Config, name string) (self *Flusher[In]) {
	self = new(Flusher[In])

	self.Task = NewTask(config, name).
		WithSubtaskFunc(self.run)

	return
}

func (self *Flusher[In]) WithBatchSize(batchSize int) *Flusher[In] {
	self.batchSize = batchSize
	exp := uint(math.Round(math.Logb(float64(batchSize)))) + 1
	self.queue.SetMinCapacity(exp)
	return self
}

func (self *Flusher[In]) WithInputChannel(v chan In) *Flusher[In] {
	self.input = v
	return self
}

func (self *Flusher[In]) WithOnFlush(interval time.Duration, f func([]In) error) *Flusher[In] {
	self.flushInterval = interval
	self.onFlush = f
	return self
}

func (self *Flusher[In]) WithBackoff(maxElapsedTime, maxInterval time.Duration) *Flusher[In] {
	self.maxElapsedTime = maxElapsedTime
	self.maxInterval = maxInterval
	return self
}

func (self *Flusher[In]) flush() (err error) {
	size := self.queue.Len()
	if size == 0 {
		return nil
	}
	data := make([]In, 0, size)
	for i := 0; i < size; i++ {
		data = append(data, self.queue.PopFront())
	}

	err = NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.maxElapsedTime).
		WithMaxInterval(self.maxInterval).
		WithOnError(func(err error) {
			if errors.Is(err, context.Canceled) && self.IsStopping.Load() {
				return
			}
			self.Log.WithError(err).Warn("Failed to flush batch, retrying")
		}).
		Run(func() error {
			err := self.onFlush(data)
			if errors.Is(err, context.Canceled) && self.IsStopping.Load() {
				return backoff.Permanent(err)
			}
			return err
		})
	if err != nil {
		self.Log.WithError(err).Error("Failed to flush data")
		return
	}

	return
}

// Receives data from the input channel and periodically hands a batch to onFlush
func (self *Flusher[In]) run() (err error) {
	// Used to ensure data isn't stuck in the queue for too long
	timer := time.NewTimer(self.flushInterval)

	for {
		select {
		case in, ok := <-self.input:
			if !ok {
				// Input channel closed, the source is stopping.
				// There will be no more data, flush everything there is and quit.
				return self.flush()
			}

			self.queue.PushBack(in)

			if self.queue.Len() >= self.batchSize {
				err = self.flush()
				if err != nil {
					return
				}
			}
		case <-timer.C:
			err = self.flush()
			if err != nil {
				return
			}
			timer = time.NewTimer(self.flushInterval)
		}
	}
}
