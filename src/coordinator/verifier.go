package coordinator

import (
	"errors"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/commerceblock/coordinator/src/utils/logger"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

// Verifier applies the acceptance pipeline to submitted challenge proofs.
// It owns response state and the AwaitingResponses/Closed transitions of
// open challenges.
type Verifier struct {
	arena   *Arena
	store   storage.Storage
	monitor *monitoring.Monitor

	// Last reconciled service chain height, provided by the tracker
	height func() int64

	log *logrus.Entry
}

func NewVerifier() (self *Verifier) {
	self = new(Verifier)
	self.log = logger.NewSublogger("verifier")
	return
}

func (self *Verifier) WithArena(arena *Arena) *Verifier {
	self.arena = arena
	return self
}

func (self *Verifier) WithStorage(store storage.Storage) *Verifier {
	self.store = store
	return self
}

func (self *Verifier) WithMonitor(monitor *monitoring.Monitor) *Verifier {
	self.monitor = monitor
	return self
}

func (self *Verifier) WithHeight(v func() int64) *Verifier {
	self.height = v
	return self
}

// Submit runs every check in order and either atomically persists the
// response or reports the first failed check. A nil return means the
// response is durably recorded.
func (self *Verifier) Submit(proof *ChallengeProof) (err error) {
	entry, ok := self.arena.Get(proof.RequestTxid)
	if !ok {
		return self.reject(proof, ErrRequestNotFound)
	}

	entry.Lock()
	defer entry.Unlock()

	challenge := entry.Open
	if challenge == nil || !challenge.State.IsOpen() {
		return self.reject(proof, ErrChallengeExpired)
	}
	if proof.Hash != challenge.Hash || self.height() > challenge.DeadlineHeight {
		// Stale hash from a previous round, or the window already passed
		return self.reject(proof, ErrChallengeExpired)
	}

	exists, err := self.store.HasResponse(challenge.Id, proof.Pubkey)
	if err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		return err
	}
	if exists {
		return self.reject(proof, ErrDuplicateResponse)
	}

	for _, txid := range proof.BidTxids {
		bid, ok := entry.Bids[txid]
		if !ok || bid.FeePubkey != proof.Pubkey {
			return self.reject(proof, ErrUnauthorizedBid)
		}
	}

	err = proof.VerifySignature()
	if err != nil {
		return self.reject(proof, err)
	}

	response := &model.Response{
		Id:              xid.New().String(),
		ChallengeId:     challenge.Id,
		RequestTxid:     proof.RequestTxid,
		GuardnodePubkey: proof.Pubkey,
		BidTxids:        proof.BidTxids,
		ReceivedHeight:  self.height(),
		Verified:        true,
	}

	challengeTo := self.nextState(entry, challenge)
	err = self.store.SaveResponse(response, challengeTo)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			return self.reject(proof, ErrDuplicateResponse)
		case errors.Is(err, storage.ErrConflict):
			// Lost against a concurrent timeout
			return self.reject(proof, ErrChallengeExpired)
		}
		self.monitor.GetReport().Errors.DbErrors.Inc()
		return err
	}

	if challengeTo != "" {
		challenge.State = challengeTo
	}
	if challengeTo == model.ChallengeStateClosed {
		entry.Open = nil
		self.monitor.GetReport().State.ChallengesClosed.Inc()
	}

	self.monitor.GetReport().State.ResponsesAccepted.Inc()
	self.log.WithField("txid", proof.RequestTxid).
		WithField("challenge", challenge.Id).
		WithField("pubkey", proof.Pubkey).
		WithField("bids", len(proof.BidTxids)).
		Info("Response accepted")
	return nil
}

// Caller holds the entry lock. The challenge closes once every guardnode
// with an attached bid has responded.
func (self *Verifier) nextState(entry *Entry, challenge *model.Challenge) model.ChallengeState {
	guardnodes := entry.Guardnodes()

	responded, err := self.store.CountChallengeResponses(challenge.Id)
	if err != nil {
		self.monitor.GetReport().Errors.DbErrors.Inc()
		// Close on a later submission instead
		responded = 0
	}

	if responded+1 >= int64(len(guardnodes)) && len(guardnodes) > 0 {
		return model.ChallengeStateClosed
	}
	if challenge.State == model.ChallengeStateCreated {
		return model.ChallengeStateAwaitingResponses
	}
	return ""
}

func (self *Verifier) reject(proof *ChallengeProof, err error) error {
	self.monitor.GetReport().Errors.ResponsesRejected.Inc()
	self.log.WithError(err).
		WithField("txid", proof.RequestTxid).
		WithField("pubkey", proof.Pubkey).
		Debug("Response rejected")
	return err
}
