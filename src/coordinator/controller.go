package coordinator

import (
	"errors"

	"github.com/commerceblock/coordinator/src/api"
	"github.com/commerceblock/coordinator/src/utils/chain"
	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// Controller wires the whole coordinator: storage, chain clients, the
// height pipeline and the proof listener, all watched by a watchdog that
// restarts the pipeline when the service chain poll stalls.
type Controller struct {
	*task.Task

	Store storage.Storage
}

func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)
	self.Task = task.NewTask(config, "controller")

	monitor := monitoring.NewMonitor()

	server := monitoring.NewServer(config).
		WithMonitor(monitor)

	db, err := model.NewConnection(self.Ctx, config, "coordinator")
	if err != nil {
		return nil, err
	}
	self.Store = storage.NewPostgres(db)

	serviceChain := chain.NewClient(&config.ServiceChain, "service-chain")
	clientChain := chain.NewClient(&config.ClientChain, "client-chain")

	// A node serving the wrong chain is a deployment mistake, fail fast
	err = clientChain.VerifyGenesis(self.Ctx, config.ClientChain.GenesisHash)
	if err != nil {
		if errors.Is(err, chain.ErrChainMismatch) {
			return nil, err
		}
		// Unavailable is tolerated at boot, the pipeline retries
		self.Log.WithError(err).Warn("Could not verify client chain genesis yet")
	}

	watchdog := task.NewWatchdog(config).
		WithTask(func() *task.Task {
			return self.pipeline(config, monitor, serviceChain, clientChain)
		}).
		WithIsOK(func() (ok bool) {
			ok = monitor.IsOK()
			if !ok {
				monitor.GetReport().State.WatchdogRestarts.Inc()
			}
			return
		})

	apiServer := api.NewServer(config).
		WithStorage(self.Store)

	self.Task = self.Task.
		WithSubtask(monitor.Task).
		WithSubtask(server.Task).
		WithSubtask(apiServer.Task).
		WithSubtask(watchdog.Task)

	return
}

// One watched task tree. Heights flow poller -> tracker -> scheduler,
// proofs flow listener -> verifier, bids drain through the flusher.
func (self *Controller) pipeline(config *config.Config, monitor *monitoring.Monitor, serviceChain, clientChain *chain.Client) *task.Task {
	arena := NewArena()

	poller := NewHeightPoller(config).
		WithServiceChain(serviceChain).
		WithClientChain(clientChain).
		WithMonitor(monitor)

	tracker := NewTracker(config).
		WithArena(arena).
		WithStorage(self.Store).
		WithServiceChain(serviceChain).
		WithMonitor(monitor).
		WithInputChannel(poller.Output)

	scheduler := NewScheduler(config).
		WithArena(arena).
		WithStorage(self.Store).
		WithMonitor(monitor).
		WithInputChannel(tracker.Output)

	bidStore := NewBidStore(config, self.Store, monitor).
		WithInputChannel(tracker.Bids)

	verifier := NewVerifier().
		WithArena(arena).
		WithStorage(self.Store).
		WithMonitor(monitor).
		WithHeight(tracker.Height)

	listener := NewListener(config).
		WithVerifier(verifier)

	return task.NewTask(config, "pipeline").
		WithSubtask(poller.Task).
		WithSubtask(tracker.Task).
		WithSubtask(scheduler.Task).
		WithSubtask(bidStore.Task).
		WithSubtask(listener.Task)
}
