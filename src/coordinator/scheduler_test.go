package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

type SchedulerTestSuite struct {
	suite.Suite

	config    *config.Config
	arena     *Arena
	store     *storage.Memory
	monitor   *monitoring.Monitor
	scheduler *Scheduler

	entry *Entry
}

func (s *SchedulerTestSuite) SetupTest() {
	s.config = config.Default()
	s.arena = NewArena()
	s.store = storage.NewMemory()
	s.monitor = monitoring.NewMonitor()

	s.scheduler = NewScheduler(s.config).
		WithArena(s.arena).
		WithStorage(s.store).
		WithMonitor(s.monitor)

	request := &model.Request{
		Txid:        testRequestTxid,
		GenesisHash: "gen-1",
		StartHeight: 100,
		EndHeight:   2100,
		State:       model.RequestStateActive,
	}
	require.NoError(s.T(), s.store.SaveRequest(request))

	entry, err := s.arena.Add(request)
	require.NoError(s.T(), err)
	s.entry = entry
}

func (s *SchedulerTestSuite) TestCreatesOnCadence() {
	// Defaults: one challenge every 60 blocks, 30 block response window
	s.scheduler.advance(s.entry, 100)

	require.NotNil(s.T(), s.entry.Open)
	require.Equal(s.T(), model.ChallengeStateCreated, s.entry.Open.State)
	require.EqualValues(s.T(), 100, s.entry.Open.HeightCreated)
	require.EqualValues(s.T(), 130, s.entry.Open.DeadlineHeight)

	expected, err := ChallengeHash(testRequestTxid, 100)
	require.NoError(s.T(), err)
	require.Equal(s.T(), expected, s.entry.Open.Hash)

	stored, err := s.store.GetOpenChallenge(testRequestTxid)
	require.NoError(s.T(), err)
	require.Equal(s.T(), s.entry.Open.Id, stored.Id)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.ChallengesCreated.Load())
}

func (s *SchedulerTestSuite) TestOffCadenceHeightsDoNothing() {
	for _, height := range []int64{99, 101, 130, 159} {
		s.scheduler.advance(s.entry, height)
		require.Nil(s.T(), s.entry.Open, "height %d", height)
	}
	require.EqualValues(s.T(), 0, s.monitor.GetReport().State.ChallengesCreated.Load())
}

func (s *SchedulerTestSuite) TestNoChallengeAtOrPastEnd() {
	// 2080 is on cadence but 2100 is the end height
	s.scheduler.advance(s.entry, 2100)
	require.Nil(s.T(), s.entry.Open)

	s.scheduler.advance(s.entry, 2160)
	require.Nil(s.T(), s.entry.Open)
}

func (s *SchedulerTestSuite) TestIgnoresPendingRequest() {
	s.entry.Request.State = model.RequestStatePending
	s.scheduler.advance(s.entry, 100)
	require.Nil(s.T(), s.entry.Open)
}

func (s *SchedulerTestSuite) TestTimesOutPastDeadline() {
	s.scheduler.advance(s.entry, 100)
	challenge := s.entry.Open
	require.NotNil(s.T(), challenge)

	// Within the window nothing happens
	s.scheduler.advance(s.entry, 130)
	require.Equal(s.T(), challenge, s.entry.Open)

	s.scheduler.advance(s.entry, 131)
	require.Nil(s.T(), s.entry.Open)
	require.Equal(s.T(), model.ChallengeStateTimedOut, s.stored(challenge.Id).State)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.ChallengesTimedOut.Load())
}

func (s *SchedulerTestSuite) TestForcedTimeoutOnNextRound() {
	s.scheduler.advance(s.entry, 100)
	first := s.entry.Open
	require.NotNil(s.T(), first)

	// Next cadence height arrives with the previous round still open
	s.scheduler.advance(s.entry, 160)

	require.NotNil(s.T(), s.entry.Open)
	require.NotEqual(s.T(), first.Id, s.entry.Open.Id)
	require.EqualValues(s.T(), 160, s.entry.Open.HeightCreated)
	require.Equal(s.T(), model.ChallengeStateTimedOut, s.stored(first.Id).State)
}

func (s *SchedulerTestSuite) TestClosedChallengeNotTimedOut() {
	s.scheduler.advance(s.entry, 100)
	challenge := s.entry.Open

	// The verifier closed the round in the meantime
	won, err := s.store.TransitionChallenge(challenge.Id, model.ChallengeStateClosed)
	require.NoError(s.T(), err)
	require.True(s.T(), won)

	s.scheduler.advance(s.entry, 160)

	// Terminal state stays, a fresh round is opened
	require.Equal(s.T(), model.ChallengeStateClosed, s.stored(challenge.Id).State)
	require.NotNil(s.T(), s.entry.Open)
	require.EqualValues(s.T(), 0, s.monitor.GetReport().State.ChallengesTimedOut.Load())
}

func (s *SchedulerTestSuite) TestFullAuctionSchedule() {
	created := 0
	for height := int64(100); height < 2100; height++ {
		s.scheduler.advance(s.entry, height)
		if s.entry.Open != nil && s.entry.Open.HeightCreated == height {
			created++
		}
	}
	// Rounds at 100, 160, ..., 2080
	require.Equal(s.T(), 34, created)
	require.EqualValues(s.T(), 34, s.monitor.GetReport().State.ChallengesCreated.Load())
}

func (s *SchedulerTestSuite) stored(id string) *model.Challenge {
	challenges, err := s.store.GetChallengeResponses(testRequestTxid)
	require.NoError(s.T(), err)
	for _, challenge := range challenges {
		if challenge.ChallengeId == id {
			return &model.Challenge{
				Id:    challenge.ChallengeId,
				State: challenge.State,
			}
		}
	}
	s.T().Fatalf("challenge %s not stored", id)
	return nil
}
