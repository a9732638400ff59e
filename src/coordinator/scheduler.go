package coordinator

import (
	"github.com/rs/xid"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// Scheduler emits challenges for active requests and times out the ones
// whose response window passed. It is the only component that creates
// challenges, the verifier only closes them.
type Scheduler struct {
	*task.Task

	arena   *Arena
	store   storage.Storage
	monitor *monitoring.Monitor

	input chan int64
}

func NewScheduler(config *config.Config) (self *Scheduler) {
	self = new(Scheduler)

	self.Task = task.NewTask(config, "scheduler").
		WithSubtaskFunc(self.run)
	return
}

func (self *Scheduler) WithArena(arena *Arena) *Scheduler {
	self.arena = arena
	return self
}

func (self *Scheduler) WithStorage(store storage.Storage) *Scheduler {
	self.store = store
	return self
}

func (self *Scheduler) WithMonitor(monitor *monitoring.Monitor) *Scheduler {
	self.monitor = monitor
	return self
}

func (self *Scheduler) WithInputChannel(v chan int64) *Scheduler {
	self.input = v
	return self
}

func (self *Scheduler) run() (err error) {
	for height := range self.input {
		for _, entry := range self.arena.All() {
			self.advance(entry, height)
		}
	}
	return nil
}

// Times out the previous challenge once its deadline passed and opens a
// new one when the height lands on the request's challenge cadence.
// Serialized with the verifier through the entry lock.
func (self *Scheduler) advance(entry *Entry, height int64) {
	entry.Lock()
	defer entry.Unlock()

	request := entry.Request
	if request.State != model.RequestStateActive {
		return
	}

	due := self.challengeDue(request, height)

	if entry.Open != nil && entry.Open.State.IsOpen() {
		if height <= entry.Open.DeadlineHeight && !due {
			return
		}
		// Past the deadline, or a new round is due while the previous one
		// is still open. Either way the previous round is over.
		self.timeout(entry, height)
	}

	if due {
		self.create(entry, height)
	}
}

func (self *Scheduler) challengeDue(request *model.Request, height int64) bool {
	if height < request.StartHeight || height >= request.EndHeight {
		return false
	}
	frequency := self.Config.Coordinator.ChallengeFrequency
	return (height-request.StartHeight)%frequency == 0
}

// Caller holds the entry lock
func (self *Scheduler) timeout(entry *Entry, height int64) {
	won, err := self.store.TransitionChallenge(entry.Open.Id, model.ChallengeStateTimedOut)
	if err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		self.Log.WithError(err).
			WithField("challenge", entry.Open.Id).
			Error("Failed to time out challenge")
		return
	}
	if won {
		self.monitor.GetReport().State.ChallengesTimedOut.Inc()
		self.Log.WithField("txid", entry.Request.Txid).
			WithField("challenge", entry.Open.Id).
			WithField("height", height).
			Warn("Challenge timed out")
	}
	entry.Open = nil
}

// Caller holds the entry lock
func (self *Scheduler) create(entry *Entry, height int64) {
	hash, err := ChallengeHash(entry.Request.Txid, height)
	if err != nil {
		// Request txids are validated on ingestion
		self.Log.WithError(err).WithField("txid", entry.Request.Txid).Error("Failed to derive challenge hash")
		return
	}

	challenge := &model.Challenge{
		Id:             xid.New().String(),
		RequestTxid:    entry.Request.Txid,
		Hash:           hash,
		HeightCreated:  height,
		DeadlineHeight: height + self.Config.Coordinator.ChallengeDuration,
		State:          model.ChallengeStateCreated,
	}

	err = self.store.SaveChallenge(challenge)
	if err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		self.Log.WithError(err).WithField("txid", entry.Request.Txid).Error("Failed to save challenge")
		return
	}

	entry.Open = challenge
	self.monitor.GetReport().State.ChallengesCreated.Inc()
	self.Log.WithField("txid", entry.Request.Txid).
		WithField("challenge", challenge.Id).
		WithField("hash", hash).
		WithField("deadline", challenge.DeadlineHeight).
		Info("Challenge created")
}
