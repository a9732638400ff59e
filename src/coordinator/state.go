package coordinator

import (
	"sync"

	"github.com/commerceblock/coordinator/src/utils/model"
)

// Entry is the in-process state of one tracked request.
// All transitions affecting the request (bid attachment, challenge
// creation and closure, response acceptance) serialize on its mutex.
// Independent requests are processed fully in parallel.
type Entry struct {
	mtx sync.Mutex

	Request *model.Request

	// Attached bids by txid
	Bids map[string]*model.Bid

	// The single open challenge, nil when none is scheduled
	Open *model.Challenge
}

func (self *Entry) Lock() {
	self.mtx.Lock()
}

func (self *Entry) Unlock() {
	self.mtx.Unlock()
}

// Distinct guardnode pubkeys holding a bid on this request.
// Caller holds the entry lock.
func (self *Entry) Guardnodes() map[string]bool {
	guardnodes := make(map[string]bool, len(self.Bids))
	for _, bid := range self.Bids {
		guardnodes[bid.FeePubkey] = true
	}
	return guardnodes
}

// Arena is the explicit state store of tracked requests, keyed by txid.
// It is created by the controller and injected into the tracker, the
// scheduler and the verifier. There are no ambient singletons.
type Arena struct {
	mtx     sync.RWMutex
	entries map[string]*Entry

	// Open request txid per genesis hash, for duplicate detection
	genesis map[string]string
}

func NewArena() *Arena {
	return &Arena{
		entries: make(map[string]*Entry),
		genesis: make(map[string]string),
	}
}

func (self *Arena) Get(txid string) (entry *Entry, ok bool) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	entry, ok = self.entries[txid]
	return
}

// Registers a new tracked request. Fails with ErrDuplicateGenesisHash when a
// pending/active request already carries the same genesis hash.
func (self *Arena) Add(request *model.Request) (entry *Entry, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	if _, ok := self.entries[request.Txid]; ok {
		entry = self.entries[request.Txid]
		return
	}

	if _, ok := self.genesis[request.GenesisHash]; ok {
		return nil, ErrDuplicateGenesisHash
	}

	entry = &Entry{
		Request: request,
		Bids:    make(map[string]*model.Bid),
	}
	self.entries[request.Txid] = entry
	self.genesis[request.GenesisHash] = request.Txid
	return
}

// Drops an expired request from scheduling eligibility.
// The genesis hash becomes claimable again.
func (self *Arena) Remove(txid string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	entry, ok := self.entries[txid]
	if !ok {
		return
	}
	delete(self.entries, txid)
	if self.genesis[entry.Request.GenesisHash] == txid {
		delete(self.genesis, entry.Request.GenesisHash)
	}
}

// Snapshot of all tracked entries
func (self *Arena) All() (entries []*Entry) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	entries = make([]*Entry, 0, len(self.entries))
	for _, entry := range self.entries {
		entries = append(entries, entry)
	}
	return
}

func (self *Arena) Len() int {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return len(self.entries)
}
