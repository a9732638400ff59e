package coordinator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/commerceblock/coordinator/src/utils/config"
	"github.com/commerceblock/coordinator/src/utils/model"
	"github.com/commerceblock/coordinator/src/utils/monitoring"
	"github.com/commerceblock/coordinator/src/utils/storage"
)

func TestListenerTestSuite(t *testing.T) {
	suite.Run(t, new(ListenerTestSuite))
}

type ListenerTestSuite struct {
	suite.Suite

	arena    *Arena
	store    *storage.Memory
	entry    *Entry
	listener *Listener
}

func (s *ListenerTestSuite) SetupTest() {
	conf := config.Default()
	s.arena = NewArena()
	s.store = storage.NewMemory()
	monitor := monitoring.NewMonitor()

	verifier := NewVerifier().
		WithArena(s.arena).
		WithStorage(s.store).
		WithMonitor(monitor).
		WithHeight(func() int64 { return 185 })

	s.listener = NewListener(conf).WithVerifier(verifier)
	s.listener.Router.POST("challengeproof", s.listener.onChallengeProof)

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
}

func (s *ListenerTestSuite) post(body interface{}) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/challengeproof", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.listener.Router.ServeHTTP(rec, req)
	return rec
}

func (s *ListenerTestSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(s.T(), json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func (s *ListenerTestSuite) TestAcceptsValidProof() {
	proof, _ := signedProof(&s.Suite, 160)
	s.entry.Bids[proof.BidTxids[0]] = &model.Bid{
		Txid:        proof.BidTxids[0],
		RequestTxid: testRequestTxid,
		FeePubkey:   proof.Pubkey,
	}

	rec := s.post(proof)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	responses, err := s.store.GetResponses(testRequestTxid, true)
	require.NoError(s.T(), err)
	require.Len(s.T(), responses, 1)
}

func (s *ListenerTestSuite) TestRejectsMalformedJson() {
	req := httptest.NewRequest(http.MethodPost, "/challengeproof", bytes.NewReader([]byte(`{broken`)))
	rec := httptest.NewRecorder()
	s.listener.Router.ServeHTTP(rec, req)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), "bad-format", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsBadFieldFormat() {
	proof, _ := signedProof(&s.Suite, 160)
	proof.Pubkey = "not-hex"
	rec := s.post(proof)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), "bad-format", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsUnknownRequest() {
	proof, _ := signedProof(&s.Suite, 160)
	proof.RequestTxid = "0000000000000000000000000000000000000000000000000000000000000001"
	rec := s.post(proof)
	require.Equal(s.T(), http.StatusNotFound, rec.Code)
	require.Equal(s.T(), "bad-request-id", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsUnownedBid() {
	proof, _ := signedProof(&s.Suite, 160)
	rec := s.post(proof)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), "bad-bid", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsBadSignature() {
	proof, _ := signedProof(&s.Suite, 160)
	s.entry.Bids[proof.BidTxids[0]] = &model.Bid{
		Txid:        proof.BidTxids[0],
		RequestTxid: testRequestTxid,
		FeePubkey:   proof.Pubkey,
	}

	other, _ := signedProof(&s.Suite, 160)
	proof.Sig = other.Sig

	rec := s.post(proof)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), "bad-sig", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsStaleRound() {
	proof, _ := signedProof(&s.Suite, 100)
	s.entry.Bids[proof.BidTxids[0]] = &model.Bid{
		Txid:        proof.BidTxids[0],
		RequestTxid: testRequestTxid,
		FeePubkey:   proof.Pubkey,
	}
	rec := s.post(proof)
	require.Equal(s.T(), http.StatusBadRequest, rec.Code)
	require.Equal(s.T(), "no-active-challenge", s.errorCode(rec))
}

func (s *ListenerTestSuite) TestRejectsDuplicate() {
	proof, _ := signedProof(&s.Suite, 160)
	s.entry.Bids[proof.BidTxids[0]] = &model.Bid{
		Txid:        proof.BidTxids[0],
		RequestTxid: testRequestTxid,
		FeePubkey:   proof.Pubkey,
	}
	// Keep the round open so the duplicate check is what fires
	other, _ := signedProof(&s.Suite, 160)
	s.entry.Bids["bid-2"] = &model.Bid{
		Txid:        "bid-2",
		RequestTxid: testRequestTxid,
		FeePubkey:   other.Pubkey,
	}

	require.Equal(s.T(), http.StatusOK, s.post(proof).Code)

	rec := s.post(proof)
	require.Equal(s.T(), http.StatusConflict, rec.Code)
	require.Equal(s.T(), "duplicate-response", s.errorCode(rec))
}
