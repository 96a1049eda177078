package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
	"github.com/Paracosm-Labs/mintdeals-ledger/credit"
	"github.com/Paracosm-Labs/mintdeals-ledger/ledger"
	"github.com/Paracosm-Labs/mintdeals-ledger/storage"
)

var (
	userAddr  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	tokenAddr = common.HexToAddress("0x0000000000000000000000000000000000000010")
)

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestPositionRoundTrip(t *testing.T) {
	m := newTestManager()

	missing, err := m.GetPosition(userAddr, tokenAddr)
	require.NoError(t, err)
	require.Nil(t, missing)

	pos := &ledger.Position{
		User:            userAddr,
		Token:           tokenAddr,
		Deposited:       big.NewInt(1000),
		Borrowed:        big.NewInt(250),
		LastAccrualStep: 7,
	}
	require.NoError(t, m.PutPosition(pos))

	loaded, err := m.GetPosition(userAddr, tokenAddr)
	require.NoError(t, err)
	require.Equal(t, pos.Deposited, loaded.Deposited)
	require.Equal(t, pos.Borrowed, loaded.Borrowed)
	require.Equal(t, uint64(7), loaded.LastAccrualStep)
	require.Equal(t, userAddr, loaded.User)
	require.Equal(t, tokenAddr, loaded.Token)
}

func TestPositionNilAmountsNormalized(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.PutPosition(&ledger.Position{User: userAddr, Token: tokenAddr}))

	loaded, err := m.GetPosition(userAddr, tokenAddr)
	require.NoError(t, err)
	require.Zero(t, loaded.Deposited.Sign())
	require.Zero(t, loaded.Borrowed.Sign())
}

func TestLedgerPositionView(t *testing.T) {
	m := newTestManager()

	deposited, borrowed, err := m.LedgerPosition(userAddr, tokenAddr)
	require.NoError(t, err)
	require.Zero(t, deposited.Sign())
	require.Zero(t, borrowed.Sign())

	require.NoError(t, m.PutPosition(&ledger.Position{
		User: userAddr, Token: tokenAddr,
		Deposited: big.NewInt(42), Borrowed: big.NewInt(7),
	}))
	deposited, borrowed, err = m.LedgerPosition(userAddr, tokenAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(42), deposited)
	require.Equal(t, big.NewInt(7), borrowed)
}

func TestFeeAccrualRoundTrip(t *testing.T) {
	m := newTestManager()

	missing, err := m.GetFeeAccrual(tokenAddr)
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, m.PutFeeAccrual(&ledger.FeeAccrual{Token: tokenAddr, CollectedWei: big.NewInt(55)}))
	loaded, err := m.GetFeeAccrual(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(55), loaded.CollectedWei)
}

func TestProfileRoundTrip(t *testing.T) {
	m := newTestManager()

	missing, err := m.GetProfile(userAddr)
	require.NoError(t, err)
	require.Nil(t, missing)

	profile := &credit.Profile{
		User:             userAddr,
		Score:            494,
		DebtUsed:         big.NewInt(100),
		LastUpdateStep:   3,
		LastPositiveStep: 2,
		Boost:            2,
	}
	require.NoError(t, m.PutProfile(profile))

	loaded, err := m.GetProfile(userAddr)
	require.NoError(t, err)
	require.Equal(t, profile.Score, loaded.Score)
	require.Equal(t, profile.DebtUsed, loaded.DebtUsed)
	require.Equal(t, profile.LastPositiveStep, loaded.LastPositiveStep)
	require.Equal(t, profile.Boost, loaded.Boost)
}

func TestCreditPoolRoundTrip(t *testing.T) {
	m := newTestManager()

	missing, err := m.GetCreditPool()
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, m.PutCreditPool(&credit.PoolState{
		TotalCreditUsed: big.NewInt(700),
		GlobalCeiling:   big.NewInt(10_000),
	}))
	loaded, err := m.GetCreditPool()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(700), loaded.TotalCreditUsed)
	require.Equal(t, big.NewInt(10_000), loaded.GlobalCeiling)
}

func TestManagerPoolAndCommission(t *testing.T) {
	m := newTestManager()

	pool, err := m.GetManagerPool(tokenAddr)
	require.NoError(t, err)
	require.Zero(t, pool.Sign())

	require.NoError(t, m.PutManagerPool(tokenAddr, big.NewInt(500)))
	pool, err = m.GetManagerPool(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), pool)

	commission, err := m.GetCollectedCommission(tokenAddr)
	require.NoError(t, err)
	require.Zero(t, commission.Sign())

	require.NoError(t, m.PutCollectedCommission(tokenAddr, big.NewInt(16)))
	commission, err = m.GetCollectedCommission(tokenAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(16), commission)
}

func TestDrainEvents(t *testing.T) {
	m := newTestManager()
	require.Empty(t, m.DrainEvents())

	m.AppendEvent(&types.Event{Type: "ledger.deposit", Attributes: map[string]string{"amount": "1"}})
	m.AppendEvent(&types.Event{Type: "ledger.borrow"})
	m.AppendEvent(nil)

	drained := m.DrainEvents()
	require.Len(t, drained, 2)
	require.Equal(t, "ledger.deposit", drained[0].Type)
	require.Empty(t, m.DrainEvents())
}

func TestPositionsKeyedPerTokenAndUser(t *testing.T) {
	m := newTestManager()
	otherUser := common.HexToAddress("0x0000000000000000000000000000000000000002")
	otherToken := common.HexToAddress("0x0000000000000000000000000000000000000020")

	require.NoError(t, m.PutPosition(&ledger.Position{User: userAddr, Token: tokenAddr, Deposited: big.NewInt(1)}))
	require.NoError(t, m.PutPosition(&ledger.Position{User: otherUser, Token: tokenAddr, Deposited: big.NewInt(2)}))
	require.NoError(t, m.PutPosition(&ledger.Position{User: userAddr, Token: otherToken, Deposited: big.NewInt(3)}))

	a, _ := m.GetPosition(userAddr, tokenAddr)
	b, _ := m.GetPosition(otherUser, tokenAddr)
	c, _ := m.GetPosition(userAddr, otherToken)
	require.Equal(t, big.NewInt(1), a.Deposited)
	require.Equal(t, big.NewInt(2), b.Deposited)
	require.Equal(t, big.NewInt(3), c.Deposited)
}
