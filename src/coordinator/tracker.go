package coordinator

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/commerceblock/coordinator/src/utils/auction"
	"github.com/commerceblock/coordinator/src/utils/chain"
	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
	"github.com/commerceblock/coordinator/src/utils/task"
)

// Tracker maintains the authoritative in-process view of active requests
// and their bids, reconciling chain scans with stored state on every
// height advance. It exclusively owns request and bid state.
type Tracker struct {
	*task.Task

	arena        *Arena
	store        storage.Storage
	serviceChain *chain.Client
	monitor      *monitoring.Monitor

	input chan int64

	// Heights forwarded to the scheduler once tracking is reconciled
	Output chan int64

	// Observed bids handed to the snapshot flusher
	Bids chan *model.Bid

	// Last fully processed service chain height
	height atomic.Int64
}

func NewTracker(config *config.Config) (self *Tracker) {
	self = new(Tracker)

	self.Output = make(chan int64)
	self.Bids = make(chan *model.Bid)

	self.Task = task.NewTask(config, "tracker").
		WithOnBeforeStart(self.restore).
		WithSubtaskFunc(self.run).
		WithOnAfterStop(func() {
			close(self.Output)
			close(self.Bids)
		})
	return
}

func (self *Tracker) WithArena(arena *Arena) *Tracker {
	self.arena = arena
	return self
}

func (self *Tracker) WithStorage(store storage.Storage) *Tracker {
	self.store = store
	return self
}

func (self *Tracker) WithServiceChain(client *chain.Client) *Tracker {
	self.serviceChain = client
	return self
}

func (self *Tracker) WithMonitor(monitor *monitoring.Monitor) *Tracker {
	self.monitor = monitor
	return self
}

func (self *Tracker) WithInputChannel(v chan int64) *Tracker {
	self.input = v
	return self
}

// Height is the last service chain height the tracker fully processed
func (self *Tracker) Height() int64 {
	return self.height.Load()
}

// Rebuilds the arena from storage after a restart
func (self *Tracker) restore() (err error) {
	requests, err := self.store.GetOpenRequests()
	if err != nil {
		return
	}

	for _, request := range requests {
		entry, err := self.arena.Add(request)
		if err != nil {
			// Storage enforces the same uniqueness, this can't normally happen
			self.Log.WithError(err).WithField("txid", request.Txid).Error("Skipped stored request")
			continue
		}

		bids, err := self.store.GetBids(request.Txid)
		if err != nil {
			return err
		}
		for _, bid := range bids {
			entry.Bids[bid.Txid] = bid
		}

		open, err := self.store.GetOpenChallenge(request.Txid)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		entry.Open = open
	}

	self.Log.WithField("requests", len(requests)).Info("Restored tracked requests")
	return nil
}

func (self *Tracker) run() (err error) {
	for height := range self.input {
		self.reconcile(height)

		self.height.Store(height)
		self.updateGauges()

		select {
		case <-self.StopChannel:
			return nil
		case self.Output <- height:
		}
	}
	return nil
}

func (self *Tracker) reconcile(height int64) {
	requests, err := self.fetchRequests()
	if err != nil {
		// Stopping, or the chain stayed unavailable past the backoff cap
		self.Log.WithError(err).Error("Failed to scan service chain requests")
		return
	}

	for _, result := range requests {
		self.observeRequest(result, height)
	}

	// Promote and expire independently of the scan, a request missing from
	// the chain view still expires by height
	for _, entry := range self.arena.All() {
		self.advanceRequest(entry, height)
	}
}

func (self *Tracker) fetchRequests() (requests []chain.RequestResult, err error) {
	err = task.NewRetry().
		WithContext(self.Ctx).
		WithMaxInterval(self.Config.Coordinator.ChainBackoffMaxInterval).
		WithMaxElapsedTime(self.Config.Coordinator.PollerInterval).
		WithOnError(func(err error) {
			self.monitor.GetReport().Errors.ChainErrors.Inc()
		}).
		Run(func() (err error) {
			requests, err = self.serviceChain.GetRequests(self.Ctx)
			return
		})
	return
}

// Ingests one request transaction observed on the service chain
func (self *Tracker) observeRequest(result chain.RequestResult, height int64) {
	if _, ok := self.arena.Get(result.Txid); ok {
		return
	}

	request := &model.Request{
		Txid:          result.Txid,
		GenesisHash:   result.GenesisBlock,
		StartHeight:   result.StartBlockHeight,
		EndHeight:     result.EndBlockHeight,
		NumTickets:    result.NumTickets,
		FeePercentage: result.FeePercentage,
		StartPrice:    result.StartPrice,
		EndPrice:      result.EndPrice,
		DecayConst:    result.DecayConst,
		Pubkey:        result.Pubkey,
		Value:         result.Value,
		State:         model.RequestStatePending,
	}

	if height >= request.EndHeight {
		// Already over, not worth tracking
		return
	}

	_, err := self.arena.Add(request)
	if err != nil {
		// ErrDuplicateGenesisHash: rejected, existing state unaffected
		self.monitor.GetReport().Errors.DuplicateGenesisHashes.Inc()
		self.Log.WithError(err).
			WithField("txid", request.Txid).
			WithField("genesis", request.GenesisHash).
			Warn("Rejected request")
		return
	}

	// Synchronous write, later challenges reference this row
	err = self.store.SaveRequest(request)
	if err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		self.Log.WithError(err).WithField("txid", request.Txid).Error("Failed to save request")
		self.arena.Remove(request.Txid)
		return
	}

	self.Log.WithField("txid", request.Txid).
		WithField("genesis", request.GenesisHash).
		Info("Tracking new request")

	self.checkAuctionPrice(result, height)
}

// The coordinator only reproduces the auction curve to flag anomalies,
// it never enforces payment
func (self *Tracker) checkAuctionPrice(result chain.RequestResult, height int64) {
	if result.AuctionPrice == 0 {
		return
	}

	request := &model.Request{
		StartHeight: result.StartBlockHeight,
		EndHeight:   result.EndBlockHeight,
		StartPrice:  result.StartPrice,
		EndPrice:    result.EndPrice,
		DecayConst:  result.DecayConst,
	}
	expected := auction.Price(request, height)
	if math.Abs(expected-result.AuctionPrice) > 1e-8*math.Max(1, expected) {
		self.Log.WithField("txid", result.Txid).
			WithField("expected", expected).
			WithField("reported", result.AuctionPrice).
			Warn("Auction price anomaly")
	}
}

// Applies height-driven request transitions and pulls in new bids
func (self *Tracker) advanceRequest(entry *Entry, height int64) {
	entry.Lock()
	request := entry.Request

	if request.State == model.RequestStatePending && height >= request.StartHeight {
		request.State = model.RequestStateActive
		if err := self.store.SetRequestState(request.Txid, request.State); err != nil {
			self.monitor.GetReport().Errors.DbErrors.Inc()
			self.Log.WithError(err).WithField("txid", request.Txid).Error("Failed to activate request")
			request.State = model.RequestStatePending
			entry.Unlock()
			return
		}
		self.Log.WithField("txid", request.Txid).Info("Request active")
	}

	if request.IsOpen() && height >= request.EndHeight {
		self.expireRequest(entry, request)
		entry.Unlock()
		return
	}
	entry.Unlock()

	if request.State == model.RequestStateActive {
		self.scanBids(entry, height)
	}
}

// Caller holds the entry lock
func (self *Tracker) expireRequest(entry *Entry, request *model.Request) {
	if entry.Open != nil && entry.Open.State.IsOpen() {
		won, err := self.store.TransitionChallenge(entry.Open.Id, model.ChallengeStateTimedOut)
		if err != nil {
			self.monitor.GetReport().Errors.DbErrors.Inc()
			self.Log.WithError(err).WithField("txid", request.Txid).Error("Failed to time out challenge")
			return
		}
		if won {
			entry.Open.State = model.ChallengeStateTimedOut
			self.monitor.GetReport().State.ChallengesTimedOut.Inc()
		}
		entry.Open = nil
	}

	request.State = model.RequestStateExpired
	if err := self.store.SetRequestState(request.Txid, request.State); err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		self.Log.WithError(err).WithField("txid", request.Txid).Error("Failed to expire request")
		request.State = model.RequestStateActive
		return
	}

	self.arena.Remove(request.Txid)
	self.monitor.GetReport().State.RequestsExpired.Inc()
	self.Log.WithField("txid", request.Txid).Info("Request expired")
}

func (self *Tracker) scanBids(entry *Entry, height int64) {
	results, err := self.serviceChain.GetRequestBids(self.Ctx, entry.Request.Txid)
	if err != nil {
		self.monitor.GetReport().Errors.ChainErrors.Inc()
		self.Log.WithError(err).WithField("txid", entry.Request.Txid).Warn("Failed to scan bids")
		return
	}

	for _, result := range results {
		bid := &model.Bid{
			Txid:          result.Txid,
			RequestTxid:   entry.Request.Txid,
			FeePubkey:     result.FeePubKey,
			Value:         result.Value,
			Change:        result.Change,
			ChangeAddress: result.ChangeAddress,
			Fee:           result.Fee,
		}

		entry.Lock()
		_, known := entry.Bids[bid.Txid]
		if !known {
			if entry.Request.IsOpen() {
				entry.Bids[bid.Txid] = bid
			} else {
				// Recorded for diagnostics but never part of the bid set
				bid.Unattached = true
				self.monitor.GetReport().Errors.UnattachableBids.Inc()
			}
		}
		entry.Unlock()

		if known {
			continue
		}

		select {
		case <-self.StopChannel:
			return
		case self.Bids <- bid:
		}
	}
}

func (self *Tracker) updateGauges() {
	var bids uint64
	for _, entry := range self.arena.All() {
		entry.Lock()
		bids += uint64(len(entry.Bids))
		entry.Unlock()
	}
	self.monitor.GetReport().State.RequestsTracked.Store(uint64(self.arena.Len()))
	self.monitor.GetReport().State.BidsTracked.Store(bids)
}
