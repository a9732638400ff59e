package coordinator

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

func TestVerifierTestSuite(t *testing.T) {
	suite.Run(t, new(VerifierTestSuite))
}

type VerifierTestSuite struct {
	suite.Suite

	arena    *Arena
	store    *storage.Memory
	monitor  *monitoring.Monitor
	verifier *Verifier

	entry  *Entry
	height int64
}

func (s *VerifierTestSuite) SetupTest() {
	s.arena = NewArena()
	s.store = storage.NewMemory()
	s.monitor = monitoring.NewMonitor()
	s.height = 185

	s.verifier = NewVerifier().
		WithArena(s.arena).
		WithStorage(s.store).
		WithMonitor(s.monitor).
		WithHeight(func() int64 { return s.height })

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

// Opens a challenge created at height 160 with a 30 block window
func (s *VerifierTestSuite) openChallenge() *model.Challenge {
	hash, err := ChallengeHash(testRequestTxid, 160)
	require.NoError(s.T(), err)

	challenge := &model.Challenge{
		Id:             "ch-1",
		RequestTxid:    testRequestTxid,
		Hash:           hash,
		HeightCreated:  160,
		DeadlineHeight: 190,
		State:          model.ChallengeStateCreated,
	}
	require.NoError(s.T(), s.store.SaveChallenge(challenge))
	s.entry.Open = challenge
	return challenge
}

func (s *VerifierTestSuite) attachBid(proof *ChallengeProof, bidTxid string) {
	proof.BidTxids = []string{bidTxid}
	s.entry.Bids[bidTxid] = &model.Bid{
		Txid:        bidTxid,
		RequestTxid: testRequestTxid,
		FeePubkey:   proof.Pubkey,
	}
}

func (s *VerifierTestSuite) TestRequestNotFound() {
	proof, _ := signedProof(&s.Suite, 160)
	proof.RequestTxid = "0000000000000000000000000000000000000000000000000000000000000001"
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrRequestNotFound)
}

func (s *VerifierTestSuite) TestNoOpenChallenge() {
	proof, _ := signedProof(&s.Suite, 160)
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrChallengeExpired)
}

func (s *VerifierTestSuite) TestStaleHash() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 100)
	s.attachBid(proof, "bid-1")
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrChallengeExpired)
}

func (s *VerifierTestSuite) TestPastDeadline() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")

	s.height = 195
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrChallengeExpired)
}

func (s *VerifierTestSuite) TestUnauthorizedBidUnknownTxid() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	// No bid attached at all
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrUnauthorizedBid)
}

func (s *VerifierTestSuite) TestUnauthorizedBidWrongOwner() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)

	other, err := btcec.NewPrivateKey()
	require.NoError(s.T(), err)
	s.entry.Bids[proof.BidTxids[0]] = &model.Bid{
		Txid:        proof.BidTxids[0],
		RequestTxid: testRequestTxid,
		FeePubkey:   hex.EncodeToString(other.PubKey().SerializeCompressed()),
	}

	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrUnauthorizedBid)
}

func (s *VerifierTestSuite) TestBadSignature() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")

	other, _ := signedProof(&s.Suite, 160)
	proof.Sig = other.Sig

	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrBadSignature)
}

func (s *VerifierTestSuite) TestAcceptedResponse() {
	challenge := s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")

	// A second guardnode keeps the challenge open after the first response
	otherProof, _ := signedProof(&s.Suite, 160)
	s.attachBid(otherProof, "bid-2")

	require.NoError(s.T(), s.verifier.Submit(proof))
	require.Equal(s.T(), model.ChallengeStateAwaitingResponses, challenge.State)

	responses, err := s.store.GetResponses(testRequestTxid, true)
	require.NoError(s.T(), err)
	require.Len(s.T(), responses, 1)
	require.Equal(s.T(), proof.Pubkey, responses[0].GuardnodePubkey)
	require.Equal(s.T(), s.height, responses[0].ReceivedHeight)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.ResponsesAccepted.Load())
}

func (s *VerifierTestSuite) TestDuplicateResponse() {
	s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")
	otherProof, _ := signedProof(&s.Suite, 160)
	s.attachBid(otherProof, "bid-2")

	require.NoError(s.T(), s.verifier.Submit(proof))
	require.ErrorIs(s.T(), s.verifier.Submit(proof), ErrDuplicateResponse)
}

func (s *VerifierTestSuite) TestClosedWhenAllGuardnodesResponded() {
	challenge := s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")
	otherProof, _ := signedProof(&s.Suite, 160)
	s.attachBid(otherProof, "bid-2")

	require.NoError(s.T(), s.verifier.Submit(proof))
	require.NoError(s.T(), s.verifier.Submit(otherProof))

	require.Nil(s.T(), s.entry.Open)
	require.Equal(s.T(), model.ChallengeStateClosed, challenge.State)

	stored, err := s.store.GetOpenChallenge(testRequestTxid)
	require.ErrorIs(s.T(), err, storage.ErrNotFound)
	require.Nil(s.T(), stored)
	require.EqualValues(s.T(), 1, s.monitor.GetReport().State.ChallengesClosed.Load())
}

func (s *VerifierTestSuite) TestSingleGuardnodeClosesImmediately() {
	challenge := s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")

	require.NoError(s.T(), s.verifier.Submit(proof))
	require.Equal(s.T(), model.ChallengeStateClosed, challenge.State)
	require.Nil(s.T(), s.entry.Open)
}

func (s *VerifierTestSuite) TestPartialRoundTimesOutAndAggregates() {
	challenge := s.openChallenge()
	proof, _ := signedProof(&s.Suite, 160)
	s.attachBid(proof, "bid-1")
	otherProof, _ := signedProof(&s.Suite, 160)
	s.attachBid(otherProof, "bid-2")

	// Only the first of two guardnodes responds before the deadline
	require.NoError(s.T(), s.verifier.Submit(proof))
	require.Equal(s.T(), model.ChallengeStateAwaitingResponses, challenge.State)

	// The deadline passes with the second guardnode silent
	scheduler := NewScheduler(config.Default()).
		WithArena(s.arena).
		WithStorage(s.store).
		WithMonitor(s.monitor)
	scheduler.advance(s.entry, 191)
	require.Nil(s.T(), s.entry.Open)

	challenges, err := s.store.GetChallengeResponses(testRequestTxid)
	require.NoError(s.T(), err)
	require.Len(s.T(), challenges, 1)
	require.Equal(s.T(), model.ChallengeStateTimedOut, challenges[0].State)

	// The aggregation carries only the responding guardnode's bid
	require.Equal(s.T(), []string{"bid-1"}, challenges[0].BidTxids)

	summary, err := s.store.GetResponseSummary(testRequestTxid)
	require.NoError(s.T(), err)
	require.EqualValues(s.T(), 1, summary.NumChallenges)
	require.EqualValues(s.T(), 1, summary.BidResponses["bid-1"])
	require.NotContains(s.T(), summary.BidResponses, "bid-2")
}
