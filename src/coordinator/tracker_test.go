package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/commerceblock/coordinator/src/utils/chain"
	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

func TestTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

type TrackerTestSuite struct {
	suite.Suite

	arena   *Arena
	store   *storage.Memory
	monitor *monitoring.Monitor
	tracker *Tracker
}

func (s *TrackerTestSuite) SetupTest() {
	s.arena = NewArena()
	s.store = storage.NewMemory()
	s.monitor = monitoring.NewMonitor()

	s.tracker = NewTracker(config.Default()).
		WithArena(s.arena).
		WithStorage(s.store).
		WithMonitor(s.monitor)
}

func (s *TrackerTestSuite) result(txid, genesis string) chain.RequestResult {
	return chain.RequestResult{
		Txid:             txid,
		GenesisBlock:     genesis,
		StartBlockHeight: 100,
		EndBlockHeight:   2100,
		NumTickets:       10,
		StartPrice:       1000,
		EndPrice:         100,
		Value:            500,
	}
}

func (s *TrackerTestSuite) TestObserveNewRequest() {
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 50)

	entry, ok := s.arena.Get("req-1")
	require.True(s.T(), ok)
	require.Equal(s.T(), model.RequestStatePending, entry.Request.State)

	stored, err := s.store.GetRequest("req-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), "gen-1", stored.GenesisHash)
}

func (s *TrackerTestSuite) TestObserveIsIdempotent() {
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 50)
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 60)
	require.Equal(s.T(), 1, s.arena.Len())
}

func (s *TrackerTestSuite) TestRejectsDuplicateGenesis() {
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 50)
	s.tracker.observeRequest(s.result("req-2", "gen-1"), 50)

	_, ok := s.arena.Get("req-2")
	require.False(s.T(), ok)
	_, err := s.store.GetRequest("req-2")
	require.ErrorIs(s.T(), err, storage.ErrNotFound)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().Errors.DuplicateGenesisHashes.Load())
}

func (s *TrackerTestSuite) TestSkipsEndedRequest() {
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 2100)
	require.Equal(s.T(), 0, s.arena.Len())
}

func (s *TrackerTestSuite) TestRollsBackOnStorageFailure() {
	s.store.FailWrites = true
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 50)

	// Not tracked, the genesis hash stays claimable
	require.Equal(s.T(), 0, s.arena.Len())
	s.store.FailWrites = false
	s.tracker.observeRequest(s.result("req-2", "gen-1"), 50)
	require.Equal(s.T(), 1, s.arena.Len())
}

func (s *TrackerTestSuite) TestExpireRequest() {
	s.tracker.observeRequest(s.result("req-1", "gen-1"), 50)
	entry, _ := s.arena.Get("req-1")
	entry.Request.State = model.RequestStateActive
	require.NoError(s.T(), s.store.SetRequestState("req-1", model.RequestStateActive))

	challenge := &model.Challenge{
		Id: "ch-1", RequestTxid: "req-1",
		HeightCreated: 2080, DeadlineHeight: 2110,
		State: model.ChallengeStateAwaitingResponses,
	}
	require.NoError(s.T(), s.store.SaveChallenge(challenge))
	entry.Open = challenge

	s.tracker.advanceRequest(entry, 2100)

	require.Equal(s.T(), 0, s.arena.Len())
	stored, err := s.store.GetRequest("req-1")
	require.NoError(s.T(), err)
	require.Equal(s.T(), model.RequestStateExpired, stored.State)

	// The still open round is forced to its timed out state
	_, err = s.store.GetOpenChallenge("req-1")
	require.ErrorIs(s.T(), err, storage.ErrNotFound)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.ChallengesTimedOut.Load())
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.RequestsExpired.Load())
}

func (s *TrackerTestSuite) TestRestore() {
	require.NoError(s.T(), s.store.SaveRequest(&model.Request{
		Txid: "req-1", GenesisHash: "gen-1",
		StartHeight: 100, EndHeight: 2100,
		State: model.RequestStateActive,
	}))
	require.NoError(s.T(), s.store.SaveRequest(&model.Request{
		Txid: "req-2", GenesisHash: "gen-2",
		StartHeight: 100, EndHeight: 2100,
		State: model.RequestStateExpired,
	}))
	require.NoError(s.T(), s.store.SaveBids([]*model.Bid{
		{Txid: "bid-1", RequestTxid: "req-1", FeePubkey: "pub-1"},
	}))
	require.NoError(s.T(), s.store.SaveChallenge(&model.Challenge{
		Id: "ch-1", RequestTxid: "req-1",
		HeightCreated: 160, DeadlineHeight: 190,
		State: model.ChallengeStateAwaitingResponses,
	}))

	require.NoError(s.T(), s.tracker.restore())

	// Expired requests are not restored
	require.Equal(s.T(), 1, s.arena.Len())

	entry, ok := s.arena.Get("req-1")
	require.True(s.T(), ok)
	require.Len(s.T(), entry.Bids, 1)
	require.NotNil(s.T(), entry.Open)
	require.Equal(s.T(), "ch-1", entry.Open.Id)
}

func (s *TrackerTestSuite) TestRestoreWithoutOpenChallenge() {
	require.NoError(s.T(), s.store.SaveRequest(&model.Request{
		Txid: "req-1", GenesisHash: "gen-1",
		StartHeight: 100, EndHeight: 2100,
		State: model.RequestStatePending,
	}))

	require.NoError(s.T(), s.tracker.restore())

	entry, ok := s.arena.Get("req-1")
	require.True(s.T(), ok)
	require.Nil(s.T(), entry.Open)
}
