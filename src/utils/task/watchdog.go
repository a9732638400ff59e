package task

import (
	"time"

	"github.com/commerceblock/coordinator/src/utils/config"
)

// Restarts the watched task tree whenever the health check fails
type Watchdog struct {
	*Task

	taskFunc func() *Task
	isOK     func() bool
	interval time.Duration

	watched *Task
}

func NewWatchdog(config *config.Config) (self *Watchdog) {
	self = new(Watchdog)

	self.interval = 30 * time.Second

	self.Task = NewTask(config, "watchdog").
		WithOnBeforeStart(self.start).
		WithOnStop(func() {
			if self.watched != nil {
				self.watched.StopWait()
			}
		})

	return
}

// Factory of the watched task, called again upon each restart
func (self *Watchdog) WithTask(f func() *Task) *Watchdog {
	self.taskFunc = f
	return self
}

func (self *Watchdog) WithIsOK(f func() bool) *Watchdog {
	self.isOK = f
	return self
}

func (self *Watchdog) WithInterval(interval time.Duration) *Watchdog {
	self.interval = interval
	return self
}

func (self *Watchdog) start() (err error) {
	self.watched = self.taskFunc()
	err = self.watched.Start()
	if err != nil {
		return
	}

	self.Task = self.Task.WithPeriodicSubtaskFunc(self.interval, self.check)
	return
}

func (self *Watchdog) check() (err error) {
	if self.isOK == nil || self.isOK() {
		return nil
	}

	self.Log.Warn("Health check failed, restarting watched task")

	self.watched.StopWait()

	self.watched = self.taskFunc()
	return self.watched.Start()
}
