package registry

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	ledgercommon "github.com/Paracosm-Labs/mintdeals-ledger/common"
	"github.com/Paracosm-Labs/mintdeals-ledger/market"
)

var (
	ErrUnsupportedAsset    = errors.New("registry: unsupported asset")
	ErrAlreadyRegistered   = errors.New("registry: asset already registered")
	ErrMissingAdapter      = errors.New("registry: adapter handle required")
	ErrMissingOracle       = errors.New("registry: non-stable asset requires an oracle")
	ErrUnexpectedOracle    = errors.New("registry: stable asset must not carry an oracle")
	ErrInvalidAssetAddress = errors.New("registry: zero asset address")
)

// Asset describes one registered underlying token. Descriptors are immutable
// once registered.
type Asset struct {
	// Token is the underlying asset identifier.
	Token common.Address
	// Adapter is the wrapped-position-token market holding this asset.
	Adapter market.Adapter
	// Decimals is the native precision of the underlying token.
	Decimals uint8
	// Stable marks assets valued 1:1 with the unit of account. Borrowing is
	// restricted to stable assets.
	Stable bool
	// Oracle prices non-stable collateral. Nil for stable assets.
	Oracle market.PriceOracle
}

// Registry is the pure lookup table mapping underlying tokens to their
// descriptors. Iteration order is registration order so collateral sums stay
// deterministic.
type Registry struct {
	assets map[common.Address]*Asset
	order  []common.Address
	auth   ledgercommon.Authorizer
}

// NewRegistry constructs an empty registry gated by the supplied authorizer.
func NewRegistry(auth ledgercommon.Authorizer) *Registry {
	return &Registry{assets: make(map[common.Address]*Asset), auth: auth}
}

// Register records a new asset descriptor. Re-registering an existing token
// fails; descriptors cannot be amended in place.
func (r *Registry) Register(caller common.Address, asset Asset) error {
	if err := ledgercommon.RequireRole(r.auth, caller, ledgercommon.RoleAdmin); err != nil {
		return err
	}
	if asset.Token == (common.Address{}) {
		return ErrInvalidAssetAddress
	}
	if asset.Adapter == nil {
		return ErrMissingAdapter
	}
	if asset.Stable {
		if asset.Oracle != nil {
			return ErrUnexpectedOracle
		}
	} else if asset.Oracle == nil {
		return ErrMissingOracle
	}
	if _, exists := r.assets[asset.Token]; exists {
		return ErrAlreadyRegistered
	}
	stored := asset
	r.assets[asset.Token] = &stored
	r.order = append(r.order, asset.Token)
	return nil
}

// Resolve returns the descriptor for token, failing on unregistered assets.
func (r *Registry) Resolve(token common.Address) (*Asset, error) {
	if r == nil {
		return nil, ErrUnsupportedAsset
	}
	asset, ok := r.assets[token]
	if !ok {
		return nil, ErrUnsupportedAsset
	}
	return asset, nil
}

// ResolveAdapter is the outward lookup used by the club registry.
func (r *Registry) ResolveAdapter(token common.Address) (market.Adapter, error) {
	asset, err := r.Resolve(token)
	if err != nil {
		return nil, err
	}
	return asset.Adapter, nil
}

// Assets returns descriptors in registration order.
func (r *Registry) Assets() []*Asset {
	if r == nil {
		return nil
	}
	out := make([]*Asset, 0, len(r.order))
	for _, token := range r.order {
		out = append(out, r.assets[token])
	}
	return out
}
