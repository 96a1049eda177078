package registry

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/market"
)

var (
	adminAddr = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	otherAddr = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	tokenA    = common.HexToAddress("0x0000000000000000000000000000000000000010")
	tokenB    = common.HexToAddress("0x0000000000000000000000000000000000000020")
)

type stubAdapter struct{}

func (stubAdapter) Supply(*big.Int) error                                { return nil }
func (stubAdapter) RedeemUnderlying(*big.Int) error                      { return nil }
func (stubAdapter) Borrow(*big.Int) error                                { return nil }
func (stubAdapter) RepayBorrow(*big.Int) error                           { return nil }
func (stubAdapter) BorrowRatePerStep() (*big.Int, error)                 { return big.NewInt(0), nil }
func (stubAdapter) BalanceOfUnderlying(common.Address) (*big.Int, error) { return big.NewInt(0), nil }

func newTestRegistry() *Registry {
	return NewRegistry(ledgercommon.NewStaticRoles(map[string][]common.Address{
		ledgercommon.RoleAdmin: {adminAddr},
	}))
}

func TestRegisterAndResolve(t *testing.T) {
	reg := newTestRegistry()
	if err := reg.Register(adminAddr, Asset{Token: tokenA, Adapter: stubAdapter{}, Decimals: 18, Stable: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	asset, err := reg.Resolve(tokenA)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !asset.Stable || asset.Decimals != 18 {
		t.Fatalf("descriptor mismatch: %+v", asset)
	}
	if _, err := reg.ResolveAdapter(tokenA); err != nil {
		t.Fatalf("resolve adapter: %v", err)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	reg := newTestRegistry()
	err := reg.Register(otherAddr, Asset{Token: tokenA, Adapter: stubAdapter{}, Stable: true})
	if !errors.Is(err, ledgercommon.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := newTestRegistry()
	asset := Asset{Token: tokenA, Adapter: stubAdapter{}, Stable: true}
	if err := reg.Register(adminAddr, asset); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := reg.Register(adminAddr, asset); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	reg := newTestRegistry()
	oracle := market.NewManualOracle(big.NewInt(1), 8)

	cases := []struct {
		name  string
		asset Asset
		want  error
	}{
		{"zero address", Asset{Adapter: stubAdapter{}, Stable: true}, ErrInvalidAssetAddress},
		{"missing adapter", Asset{Token: tokenA, Stable: true}, ErrMissingAdapter},
		{"non-stable without oracle", Asset{Token: tokenA, Adapter: stubAdapter{}}, ErrMissingOracle},
		{"stable with oracle", Asset{Token: tokenA, Adapter: stubAdapter{}, Stable: true, Oracle: oracle}, ErrUnexpectedOracle},
	}
	for _, tc := range cases {
		if err := reg.Register(adminAddr, tc.asset); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestResolveUnknownAsset(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.Resolve(tokenA); !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("got %v, want ErrUnsupportedAsset", err)
	}
}

func TestAssetsPreserveRegistrationOrder(t *testing.T) {
	reg := newTestRegistry()
	oracle := market.NewManualOracle(big.NewInt(1), 8)
	if err := reg.Register(adminAddr, Asset{Token: tokenB, Adapter: stubAdapter{}, Oracle: oracle}); err != nil {
		t.Fatalf("register B: %v", err)
	}
	if err := reg.Register(adminAddr, Asset{Token: tokenA, Adapter: stubAdapter{}, Stable: true}); err != nil {
		t.Fatalf("register A: %v", err)
	}
	assets := reg.Assets()
	if len(assets) != 2 || assets[0].Token != tokenB || assets[1].Token != tokenA {
		t.Fatalf("unexpected order: %v", assets)
	}
}
