package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/commerceblock/coordinator/src/utils/model"
)

func TestArenaTestSuite(t *testing.T) {
	suite.Run(t, new(ArenaTestSuite))
}

type ArenaTestSuite struct {
	suite.Suite
	arena *Arena
}

func (s *ArenaTestSuite) SetupTest() {
	s.arena = NewArena()
}

func (s *ArenaTestSuite) TestAddAndGet() {
	entry, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)
	require.NotNil(s.T(), entry)

	got, ok := s.arena.Get("req-1")
	require.True(s.T(), ok)
	require.Same(s.T(), entry, got)
	require.Equal(s.T(), 1, s.arena.Len())
}

func (s *ArenaTestSuite) TestAddIsIdempotentPerTxid() {
	first, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)

	second, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)
	require.Same(s.T(), first, second)
	require.Equal(s.T(), 1, s.arena.Len())
}

func (s *ArenaTestSuite) TestRejectsDuplicateGenesisHash() {
	_, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)

	_, err = s.arena.Add(&model.Request{Txid: "req-2", GenesisHash: "gen-1"})
	require.ErrorIs(s.T(), err, ErrDuplicateGenesisHash)

	// The original stays tracked
	_, ok := s.arena.Get("req-1")
	require.True(s.T(), ok)
	_, ok = s.arena.Get("req-2")
	require.False(s.T(), ok)
}

func (s *ArenaTestSuite) TestRemoveFreesGenesisHash() {
	_, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)

	s.arena.Remove("req-1")
	require.Equal(s.T(), 0, s.arena.Len())

	_, err = s.arena.Add(&model.Request{Txid: "req-2", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)
}

func (s *ArenaTestSuite) TestGuardnodes() {
	entry, err := s.arena.Add(&model.Request{Txid: "req-1", GenesisHash: "gen-1"})
	require.NoError(s.T(), err)

	entry.Bids["bid-1"] = &model.Bid{Txid: "bid-1", FeePubkey: "pub-1"}
	entry.Bids["bid-2"] = &model.Bid{Txid: "bid-2", FeePubkey: "pub-1"}
	entry.Bids["bid-3"] = &model.Bid{Txid: "bid-3", FeePubkey: "pub-2"}

	guardnodes := entry.Guardnodes()
	require.Len(s.T(), guardnodes, 2)
	require.True(s.T(), guardnodes["pub-1"])
	require.True(s.T(), guardnodes["pub-2"])
}
