package feesplit

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	holderAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	memberAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")
	feeToken   = common.HexToAddress("0x0000000000000000000000000000000000000010")
	usdToken   = common.HexToAddress("0x0000000000000000000000000000000000000011")
)

type mockRouterState struct {
	pools       map[common.Address]*big.Int
	commissions map[common.Address]*big.Int
	events      []*types.Event
}

func newMockRouterState() *mockRouterState {
	return &mockRouterState{
		pools:       make(map[common.Address]*big.Int),
		commissions: make(map[common.Address]*big.Int),
	}
}

func (m *mockRouterState) GetManagerPool(token common.Address) (*big.Int, error) {
	return m.pools[token], nil
}

func (m *mockRouterState) PutManagerPool(token common.Address, amount *big.Int) error {
	m.pools[token] = new(big.Int).Set(amount)
	return nil
}

func (m *mockRouterState) GetCollectedCommission(token common.Address) (*big.Int, error) {
	return m.commissions[token], nil
}

func (m *mockRouterState) PutCollectedCommission(token common.Address, amount *big.Int) error {
	m.commissions[token] = new(big.Int).Set(amount)
	return nil
}

func (m *mockRouterState) AppendEvent(evt *types.Event) {
	m.events = append(m.events, evt)
}

type facilityCall struct {
	user   common.Address
	token  common.Address
	amount *big.Int
}

type mockFacility struct {
	calls []facilityCall
	fail  bool
}

func (f *mockFacility) Deposit(user, token common.Address, amount *big.Int) error {
	if f.fail {
		return errors.New("facility unavailable")
	}
	f.calls = append(f.calls, facilityCall{user: user, token: token, amount: new(big.Int).Set(amount)})
	return nil
}

type mockTransferPayer struct {
	calls []facilityCall
}

func (p *mockTransferPayer) Transfer(token, to common.Address, amount *big.Int) error {
	p.calls = append(p.calls, facilityCall{user: to, token: token, amount: new(big.Int).Set(amount)})
	return nil
}

type mockVenue struct {
	path     []common.Address
	amountIn *big.Int
	deadline uint64
	out      *big.Int
}

func (v *mockVenue) Swap(path []common.Address, amountIn, _ *big.Int, _ common.Address, deadline uint64) ([]*big.Int, error) {
	v.path = path
	v.amountIn = new(big.Int).Set(amountIn)
	v.deadline = deadline
	return []*big.Int{new(big.Int).Set(amountIn), new(big.Int).Set(v.out)}, nil
}

func newTestRouter(t *testing.T, splitPct, commissionPct uint64) (*Router, *mockRouterState, *mockFacility, *mockTransferPayer) {
	t.Helper()
	router, err := NewRouter(holderAddr, splitPct, commissionPct)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	st := newMockRouterState()
	facility := &mockFacility{}
	payer := &mockTransferPayer{}
	router.SetState(st)
	router.SetFacility(facility)
	router.SetPayer(payer)
	router.SetAuthorizer(ledgercommon.NewStaticRoles(map[string][]common.Address{
		ledgercommon.RoleAdmin: {adminAddr},
	}))
	return router, st, facility, payer
}

func TestNewRouterValidatesPercents(t *testing.T) {
	if _, err := NewRouter(holderAddr, 101, 0); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("got %v, want ErrInvalidSplit", err)
	}
	if _, err := NewRouter(holderAddr, 80, 101); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("got %v, want ErrInvalidCommission", err)
	}
}

func TestSetSplitValidatesPercents(t *testing.T) {
	router, st, _, _ := newTestRouter(t, 80, 8)
	if err := router.SetSplit(101, 0); !errors.Is(err, ErrInvalidSplit) {
		t.Fatalf("got %v, want ErrInvalidSplit", err)
	}
	if err := router.SetSplit(50, 101); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("got %v, want ErrInvalidCommission", err)
	}
	if err := router.SetSplit(50, 0); err != nil {
		t.Fatalf("set split: %v", err)
	}
	if err := router.RouteInflow(feeToken, big.NewInt(100), memberAddr, true); err != nil {
		t.Fatalf("route: %v", err)
	}
	if st.pools[feeToken].Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("pool = %s, want 50 after split update", st.pools[feeToken])
	}
}

func TestRouteInflowToFacility(t *testing.T) {
	router, st, facility, payer := newTestRouter(t, 80, 8)
	gross := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))

	if err := router.RouteInflow(feeToken, gross, memberAddr, true); err != nil {
		t.Fatalf("route: %v", err)
	}
	if len(facility.calls) != 1 {
		t.Fatalf("facility calls = %d, want 1", len(facility.calls))
	}
	wantFacility := new(big.Int).Mul(big.NewInt(80), big.NewInt(1e18))
	if facility.calls[0].amount.Cmp(wantFacility) != 0 || facility.calls[0].user != memberAddr {
		t.Fatalf("facility deposit %s for %s, want %s for %s",
			facility.calls[0].amount, facility.calls[0].user.Hex(), wantFacility, memberAddr.Hex())
	}
	wantPool := new(big.Int).Mul(big.NewInt(20), big.NewInt(1e18))
	if st.pools[feeToken].Cmp(wantPool) != 0 {
		t.Fatalf("manager pool = %s, want %s", st.pools[feeToken], wantPool)
	}
	// The facility path never takes commission.
	if st.commissions[feeToken] != nil && st.commissions[feeToken].Sign() != 0 {
		t.Fatalf("commission on facility path = %s, want 0", st.commissions[feeToken])
	}
	if len(payer.calls) != 0 {
		t.Fatalf("payer used on facility path")
	}
}

func TestRouteInflowDirect(t *testing.T) {
	router, st, facility, payer := newTestRouter(t, 80, 8)
	gross := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))

	if err := router.RouteInflow(feeToken, gross, memberAddr, false); err != nil {
		t.Fatalf("route: %v", err)
	}
	// The recipient's share goes out through the payer, not the facility.
	if len(facility.calls) != 0 {
		t.Fatalf("facility used on direct path")
	}
	wantDirect := new(big.Int).Mul(big.NewInt(80), big.NewInt(1e18))
	if len(payer.calls) != 1 || payer.calls[0].amount.Cmp(wantDirect) != 0 {
		t.Fatalf("payer calls = %v, want one of %s", payer.calls, wantDirect)
	}
	// 8% commission on the 20e18 manager share.
	wantCommission := new(big.Int).Mul(big.NewInt(16), big.NewInt(1e17))
	if st.commissions[feeToken].Cmp(wantCommission) != 0 {
		t.Fatalf("commission = %s, want %s", st.commissions[feeToken], wantCommission)
	}
	wantPool := new(big.Int).Mul(big.NewInt(184), big.NewInt(1e17))
	if st.pools[feeToken].Cmp(wantPool) != 0 {
		t.Fatalf("manager pool = %s, want %s", st.pools[feeToken], wantPool)
	}
}

func TestRouteInflowAccumulates(t *testing.T) {
	router, st, _, _ := newTestRouter(t, 80, 0)
	for i := 0; i < 3; i++ {
		if err := router.RouteInflow(feeToken, big.NewInt(100), memberAddr, true); err != nil {
			t.Fatalf("route %d: %v", i, err)
		}
	}
	if st.pools[feeToken].Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("pool = %s, want 60", st.pools[feeToken])
	}
}

func TestRouteInflowRejectsInvalidAmount(t *testing.T) {
	router, _, _, _ := newTestRouter(t, 80, 8)
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		if err := router.RouteInflow(feeToken, amount, memberAddr, true); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("route %v: got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestSweepBelowThresholdIsNoOp(t *testing.T) {
	router, st, facility, _ := newTestRouter(t, 80, 0)
	router.SetSweepConfig(SweepConfig{Threshold: big.NewInt(500)})
	st.pools[feeToken] = big.NewInt(499)

	swept, err := router.Sweep(feeToken, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept.Sign() != 0 {
		t.Fatalf("swept = %s, want 0", swept)
	}
	if st.pools[feeToken].Cmp(big.NewInt(499)) != 0 {
		t.Fatalf("pool mutated by no-op sweep: %s", st.pools[feeToken])
	}
	if len(facility.calls) != 0 {
		t.Fatalf("facility called by no-op sweep")
	}
}

func TestSweepAtThresholdForwardsWholePool(t *testing.T) {
	router, st, facility, _ := newTestRouter(t, 80, 0)
	router.SetSweepConfig(SweepConfig{Threshold: big.NewInt(500)})
	st.pools[feeToken] = big.NewInt(500)

	swept, err := router.Sweep(feeToken, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("swept = %s, want 500", swept)
	}
	if len(facility.calls) != 1 || facility.calls[0].user != holderAddr || facility.calls[0].amount.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("facility calls = %v, want 500 for pool holder", facility.calls)
	}
	if st.pools[feeToken].Sign() != 0 {
		t.Fatalf("pool after sweep = %s, want 0", st.pools[feeToken])
	}
}

func TestSweepWithoutThresholdAlwaysForwards(t *testing.T) {
	router, st, _, _ := newTestRouter(t, 80, 0)
	st.pools[feeToken] = big.NewInt(1)

	swept, err := router.Sweep(feeToken, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("swept = %s, want 1", swept)
	}
}

func TestSweepConvertsThroughVenue(t *testing.T) {
	router, st, facility, _ := newTestRouter(t, 80, 0)
	venue := &mockVenue{out: big.NewInt(1200)}
	router.SetVenue(venue)
	router.SetNowFunc(func() int64 { return 1_000 })
	router.SetSweepConfig(SweepConfig{
		Threshold:    big.NewInt(500),
		ConvertPath:  []common.Address{feeToken, usdToken},
		DeadlineSecs: 300,
	})
	st.pools[feeToken] = big.NewInt(500)

	swept, err := router.Sweep(feeToken, big.NewInt(1100))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("swept = %s, want pre-conversion 500", swept)
	}
	if venue.amountIn.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("venue amountIn = %s, want 500", venue.amountIn)
	}
	if venue.deadline != 1_300 {
		t.Fatalf("venue deadline = %d, want 1300", venue.deadline)
	}
	// The facility receives the conversion proceeds in the target asset.
	if len(facility.calls) != 1 || facility.calls[0].token != usdToken || facility.calls[0].amount.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("facility calls = %v, want 1200 of the target asset", facility.calls)
	}
	if st.pools[feeToken].Sign() != 0 {
		t.Fatalf("pool after converted sweep = %s, want 0", st.pools[feeToken])
	}
}

type shortVenue struct{}

func (shortVenue) Swap([]common.Address, *big.Int, *big.Int, common.Address, uint64) ([]*big.Int, error) {
	return nil, nil
}

func TestSweepRejectsMalformedVenueReply(t *testing.T) {
	router, st, facility, _ := newTestRouter(t, 80, 0)
	router.SetVenue(shortVenue{})
	router.SetSweepConfig(SweepConfig{
		ConvertPath: []common.Address{feeToken, usdToken},
	})
	st.pools[feeToken] = big.NewInt(500)

	if _, err := router.Sweep(feeToken, nil); !errors.Is(err, errVenueLegMismatch) {
		t.Fatalf("got %v, want errVenueLegMismatch", err)
	}
	// Nothing moved: the pool keeps its balance and the facility saw no
	// deposit.
	if st.pools[feeToken].Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("pool after failed sweep = %s, want 500", st.pools[feeToken])
	}
	if len(facility.calls) != 0 {
		t.Fatalf("facility calls = %d, want 0", len(facility.calls))
	}
}

func TestSweepEmptyPool(t *testing.T) {
	router, _, facility, _ := newTestRouter(t, 80, 0)
	swept, err := router.Sweep(feeToken, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept.Sign() != 0 || len(facility.calls) != 0 {
		t.Fatalf("empty pool sweep moved funds: swept=%s calls=%d", swept, len(facility.calls))
	}
}

func TestWithdrawCollectedFees(t *testing.T) {
	router, st, _, payer := newTestRouter(t, 80, 8)
	st.commissions[feeToken] = big.NewInt(100)

	if err := router.WithdrawCollectedFees(memberAddr, feeToken, memberAddr, big.NewInt(50)); !errors.Is(err, ledgercommon.ErrUnauthorized) {
		t.Fatalf("non-admin withdrawal: got %v, want ErrUnauthorized", err)
	}
	if err := router.WithdrawCollectedFees(adminAddr, feeToken, adminAddr, big.NewInt(101)); !errors.Is(err, ErrInsufficientFees) {
		t.Fatalf("over-withdrawal: got %v, want ErrInsufficientFees", err)
	}
	if err := router.WithdrawCollectedFees(adminAddr, feeToken, adminAddr, big.NewInt(60)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(payer.calls) != 1 || payer.calls[0].amount.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("payer calls = %v, want one of 60", payer.calls)
	}
	if st.commissions[feeToken].Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("remaining commission = %s, want 40", st.commissions[feeToken])
	}
}

func TestPausedRouterRejectsOperations(t *testing.T) {
	router, _, _, _ := newTestRouter(t, 80, 8)
	pauses := ledgercommon.NewPauses()
	router.SetPauses(pauses)
	pauses.Pause(moduleName)

	if err := router.RouteInflow(feeToken, big.NewInt(1), memberAddr, true); !errors.Is(err, ledgercommon.ErrModulePaused) {
		t.Fatalf("route while paused: got %v, want ErrModulePaused", err)
	}
	if _, err := router.Sweep(feeToken, nil); !errors.Is(err, ledgercommon.ErrModulePaused) {
		t.Fatalf("sweep while paused: got %v, want ErrModulePaused", err)
	}
}
