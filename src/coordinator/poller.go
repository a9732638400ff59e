package coordinator

import (
	"time"

	"github.com/commerceblock/coordinator/src/utils/chain"
	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// Task that periodically polls the service chain for a new height.
// Every observed height advance drives the tracker and the scheduler.
type HeightPoller struct {
	*task.Task

	serviceChain *chain.Client
	clientChain  *chain.Client
	monitor      *monitoring.Monitor

	// Output channel
	Output chan int64

	// Runtime variables
	lastHeight int64
}

func NewHeightPoller(config *config.Config) (self *HeightPoller) {
	self = new(HeightPoller)

	self.Output = make(chan int64)

	self.Task = task.NewTask(config, "height-poller").
		WithPeriodicSubtaskFunc(config.Coordinator.PollerInterval, self.runPeriodically).
		WithOnAfterStop(func() {
			close(self.Output)
		})
	return
}

func (self *HeightPoller) WithServiceChain(client *chain.Client) *HeightPoller {
	self.serviceChain = client
	return self
}

func (self *HeightPoller) WithClientChain(client *chain.Client) *HeightPoller {
	self.clientChain = client
	return self
}

func (self *HeightPoller) WithMonitor(monitor *monitoring.Monitor) *HeightPoller {
	self.monitor = monitor
	return self
}

// The coordinator cannot make progress without chain data, so the poll
// retries forever with bounded backoff and never fails the task
func (self *HeightPoller) runPeriodically() error {
	var height int64
	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxInterval(self.Config.Coordinator.ChainBackoffMaxInterval).
		WithOnError(func(err error) {
			self.monitor.GetReport().Errors.ChainErrors.Inc()
			self.Log.WithError(err).Warn("Failed to get service chain height, retrying")
		}).
		Run(func() (err error) {
			height, err = self.serviceChain.GetBlockCount(self.Ctx)
			return
		})
	if err != nil {
		// Stopping
		return nil
	}

	self.monitor.GetReport().State.ServiceChainHeight.Store(uint64(height))
	self.monitor.GetReport().State.LastHeightTimestamp.Store(uint64(time.Now().Unix()))

	// Client chain height is informational only
	if clientHeight, err := self.clientChain.GetBlockCount(self.Ctx); err == nil {
		self.monitor.GetReport().State.ClientChainHeight.Store(uint64(clientHeight))
	}

	if height <= self.lastHeight {
		// Nothing changed, retry later
		return nil
	}

	// Emit every height since the last poll. The chain can advance by
	// several blocks within one interval and a skipped height would
	// silently skip the challenge round due at it.
	from := self.lastHeight + 1
	if self.lastHeight == 0 {
		from = height
	}
	self.lastHeight = height

	for h := from; h <= height; h++ {
		select {
		case <-self.StopChannel:
			return nil
		case self.Output <- h:
		}
	}

	return nil
}
