package storage

import (
	"sort"
	"sync"

	"github.com/commerceblock/coordinator/src/utils/model"
)

// In-memory Storage implementation used in tests.
// Mirrors the durable semantics of the Postgres implementation, including
// guarded challenge transitions and the atomic response+transition write.
type Memory struct {
	mtx sync.RWMutex

	// Flag that when set returns ErrStorage on all writes
	FailWrites bool

	requests   map[string]*model.Request
	bids       map[string]*model.Bid
	challenges map[string]*model.Challenge
	responses  map[string]*model.Response

	requestOrder   []string
	challengeOrder []string
	responseOrder  []string
}

func NewMemory() *Memory {
	return &Memory{
		requests:   make(map[string]*model.Request),
		bids:       make(map[string]*model.Bid),
		challenges: make(map[string]*model.Challenge),
		responses:  make(map[string]*model.Response),
	}
}

func (self *Memory) SaveRequest(request *model.Request) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return ErrStorage
	}

	clone := *request
	if _, ok := self.requests[request.Txid]; !ok {
		self.requestOrder = append(self.requestOrder, request.Txid)
	}
	self.requests[request.Txid] = &clone
	return nil
}

func (self *Memory) SaveBids(bids []*model.Bid) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return ErrStorage
	}

	for _, bid := range bids {
		if _, ok := self.bids[bid.Txid]; ok {
			continue
		}
		clone := *bid
		self.bids[bid.Txid] = &clone
	}
	return nil
}

func (self *Memory) SetRequestState(txid string, state model.RequestState) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return ErrStorage
	}

	request, ok := self.requests[txid]
	if !ok {
		return ErrNotFound
	}
	request.State = state
	return nil
}

func (self *Memory) SaveChallenge(challenge *model.Challenge) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return ErrStorage
	}

	if _, ok := self.challenges[challenge.Id]; ok {
		return ErrDuplicate
	}
	clone := *challenge
	self.challenges[challenge.Id] = &clone
	self.challengeOrder = append(self.challengeOrder, challenge.Id)
	return nil
}

func (self *Memory) TransitionChallenge(id string, to model.ChallengeState) (bool, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return false, ErrStorage
	}

	challenge, ok := self.challenges[id]
	if !ok {
		return false, ErrNotFound
	}
	if !challenge.State.IsOpen() {
		return false, nil
	}
	challenge.State = to
	return true, nil
}

func (self *Memory) SaveResponse(response *model.Response, challengeTo model.ChallengeState) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if self.FailWrites {
		return ErrStorage
	}

	for _, existing := range self.responses {
		if existing.ChallengeId == response.ChallengeId &&
			existing.GuardnodePubkey == response.GuardnodePubkey {
			return ErrDuplicate
		}
	}

	if challengeTo != "" {
		challenge, ok := self.challenges[response.ChallengeId]
		if !ok {
			return ErrNotFound
		}
		if !challenge.State.IsOpen() {
			// Transition lost, roll the whole write back
			return ErrConflict
		}
		challenge.State = challengeTo
	}

	clone := *response
	clone.BidTxids = append([]string(nil), response.BidTxids...)
	self.responses[response.Id] = &clone
	self.responseOrder = append(self.responseOrder, response.Id)
	return nil
}

func (self *Memory) GetRequest(txid string) (*model.Request, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	request, ok := self.requests[txid]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *request
	return &clone, nil
}

func (self *Memory) GetRequests(limit, offset int) ([]*model.Request, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	requests := make([]*model.Request, 0, len(self.requestOrder))
	for _, txid := range self.requestOrder {
		clone := *self.requests[txid]
		requests = append(requests, &clone)
	}
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].StartHeight != requests[j].StartHeight {
			return requests[i].StartHeight < requests[j].StartHeight
		}
		return requests[i].Txid < requests[j].Txid
	})

	if limit <= 0 {
		return requests, nil
	}
	if offset >= len(requests) {
		return nil, nil
	}
	end := offset + limit
	if end > len(requests) {
		end = len(requests)
	}
	return requests[offset:end], nil
}

func (self *Memory) CountRequests() (int64, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()
	return int64(len(self.requests)), nil
}

func (self *Memory) GetOpenRequests() ([]*model.Request, error) {
	all, err := self.GetRequests(0, 0)
	if err != nil {
		return nil, err
	}
	requests := make([]*model.Request, 0, len(all))
	for _, request := range all {
		if request.IsOpen() {
			requests = append(requests, request)
		}
	}
	return requests, nil
}

func (self *Memory) GetBids(requestTxid string) ([]*model.Bid, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	var bids []*model.Bid
	for _, bid := range self.bids {
		if bid.RequestTxid == requestTxid && !bid.Unattached {
			clone := *bid
			bids = append(bids, &clone)
		}
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Txid < bids[j].Txid })
	return bids, nil
}

func (self *Memory) GetOpenChallenge(requestTxid string) (*model.Challenge, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	for i := len(self.challengeOrder) - 1; i >= 0; i-- {
		challenge := self.challenges[self.challengeOrder[i]]
		if challenge.RequestTxid == requestTxid && challenge.State.IsOpen() {
			clone := *challenge
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (self *Memory) GetResponses(requestTxid string, verifiedOnly bool) ([]*model.Response, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	var responses []*model.Response
	for _, id := range self.responseOrder {
		response := self.responses[id]
		if response.RequestTxid != requestTxid {
			continue
		}
		if verifiedOnly && !response.Verified {
			continue
		}
		clone := *response
		clone.BidTxids = append([]string(nil), response.BidTxids...)
		responses = append(responses, &clone)
	}
	return responses, nil
}

func (self *Memory) HasResponse(challengeId, guardnodePubkey string) (bool, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	for _, response := range self.responses {
		if response.ChallengeId == challengeId && response.GuardnodePubkey == guardnodePubkey {
			return true, nil
		}
	}
	return false, nil
}

func (self *Memory) CountChallengeResponses(challengeId string) (int64, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	var count int64
	for _, response := range self.responses {
		if response.ChallengeId == challengeId && response.Verified {
			count++
		}
	}
	return count, nil
}

func (self *Memory) GetChallengeResponses(requestTxid string) ([]*ChallengeResponses, error) {
	self.mtx.RLock()
	defer self.mtx.RUnlock()

	var out []*ChallengeResponses
	for _, id := range self.challengeOrder {
		challenge := self.challenges[id]
		if challenge.RequestTxid != requestTxid {
			continue
		}

		seen := make(map[string]bool)
		union := []string{}
		for _, respId := range self.responseOrder {
			response := self.responses[respId]
			if response.ChallengeId != challenge.Id || !response.Verified {
				continue
			}
			for _, txid := range response.BidTxids {
				if !seen[txid] {
					seen[txid] = true
					union = append(union, txid)
				}
			}
		}
		sort.Strings(union)

		out = append(out, &ChallengeResponses{
			ChallengeId:    challenge.Id,
			Hash:           challenge.Hash,
			HeightCreated:  challenge.HeightCreated,
			DeadlineHeight: challenge.DeadlineHeight,
			State:          challenge.State,
			BidTxids:       union,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].HeightCreated < out[j].HeightCreated })
	return out, nil
}

func (self *Memory) GetResponseSummary(requestTxid string) (*ResponseSummary, error) {
	challenges, err := self.GetChallengeResponses(requestTxid)
	if err != nil {
		return nil, err
	}

	summary := &ResponseSummary{BidResponses: make(map[string]uint32)}
	for _, challenge := range challenges {
		summary.NumChallenges++
		for _, txid := range challenge.BidTxids {
			summary.BidResponses[txid]++
		}
	}
	return summary, nil
}
