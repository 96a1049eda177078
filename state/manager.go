package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Paracosm-Labs/mintdeals-ledger/core/types"
	"github.com/Paracosm-Labs/mintdeals-ledger/credit"
	"github.com/Paracosm-Labs/mintdeals-ledger/ledger"
	"github.com/Paracosm-Labs/mintdeals-ledger/storage"
)

var (
	positionPrefix   = []byte("ledger/position/")
	feeAccrualPrefix = []byte("ledger/fees/")
	profilePrefix    = []byte("credit/profile/")
	creditPoolKey    = []byte("credit/pool")
	managerPrefix    = []byte("feesplit/manager/")
	commissionPrefix = []byte("feesplit/commission/")
)

// Manager is the single owned store backing every engine. It satisfies each
// engine's narrow state interface over one key-value database, encoding
// records with RLP.
type Manager struct {
	db     storage.Database
	events []*types.Event
}

// NewManager wraps the database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func compositeKey(prefix []byte, parts ...common.Address) []byte {
	key := append([]byte(nil), prefix...)
	for _, part := range parts {
		key = append(key, part.Bytes()...)
	}
	return key
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, raw)
}

// GetPosition loads the stored position for (user, token), nil when absent.
func (m *Manager) GetPosition(user, token common.Address) (*ledger.Position, error) {
	pos := new(ledger.Position)
	ok, err := m.get(compositeKey(positionPrefix, token, user), pos)
	if err != nil || !ok {
		return nil, err
	}
	return pos, nil
}

// PutPosition persists the position under its composite key.
func (m *Manager) PutPosition(pos *ledger.Position) error {
	if pos == nil {
		return nil
	}
	ensureInt(&pos.Deposited)
	ensureInt(&pos.Borrowed)
	return m.put(compositeKey(positionPrefix, pos.Token, pos.User), pos)
}

// LedgerPosition implements the collateral engine's position source.
func (m *Manager) LedgerPosition(user, token common.Address) (*big.Int, *big.Int, error) {
	pos, err := m.GetPosition(user, token)
	if err != nil {
		return nil, nil, err
	}
	if pos == nil {
		return big.NewInt(0), big.NewInt(0), nil
	}
	return pos.Deposited, pos.Borrowed, nil
}

// GetFeeAccrual loads the retained repay fees for token, nil when absent.
func (m *Manager) GetFeeAccrual(token common.Address) (*ledger.FeeAccrual, error) {
	fees := new(ledger.FeeAccrual)
	ok, err := m.get(compositeKey(feeAccrualPrefix, token), fees)
	if err != nil || !ok {
		return nil, err
	}
	return fees, nil
}

// PutFeeAccrual persists the retained repay fees.
func (m *Manager) PutFeeAccrual(fees *ledger.FeeAccrual) error {
	if fees == nil {
		return nil
	}
	ensureInt(&fees.CollectedWei)
	return m.put(compositeKey(feeAccrualPrefix, fees.Token), fees)
}

// GetProfile loads the credit profile for user, nil when absent.
func (m *Manager) GetProfile(user common.Address) (*credit.Profile, error) {
	profile := new(credit.Profile)
	ok, err := m.get(compositeKey(profilePrefix, user), profile)
	if err != nil || !ok {
		return nil, err
	}
	return profile, nil
}

// PutProfile persists the credit profile.
func (m *Manager) PutProfile(profile *credit.Profile) error {
	if profile == nil {
		return nil
	}
	ensureInt(&profile.DebtUsed)
	return m.put(compositeKey(profilePrefix, profile.User), profile)
}

// GetCreditPool loads the global credit accounting, nil when absent.
func (m *Manager) GetCreditPool() (*credit.PoolState, error) {
	pool := new(credit.PoolState)
	ok, err := m.get(creditPoolKey, pool)
	if err != nil || !ok {
		return nil, err
	}
	return pool, nil
}

// PutCreditPool persists the global credit accounting.
func (m *Manager) PutCreditPool(pool *credit.PoolState) error {
	if pool == nil {
		return nil
	}
	ensureInt(&pool.TotalCreditUsed)
	ensureInt(&pool.GlobalCeiling)
	return m.put(creditPoolKey, pool)
}

// GetManagerPool loads the accumulated manager balance for token.
func (m *Manager) GetManagerPool(token common.Address) (*big.Int, error) {
	return m.getAmount(compositeKey(managerPrefix, token))
}

// PutManagerPool persists the accumulated manager balance for token.
func (m *Manager) PutManagerPool(token common.Address, amount *big.Int) error {
	return m.putAmount(compositeKey(managerPrefix, token), amount)
}

// GetCollectedCommission loads the accumulated commission for token.
func (m *Manager) GetCollectedCommission(token common.Address) (*big.Int, error) {
	return m.getAmount(compositeKey(commissionPrefix, token))
}

// PutCollectedCommission persists the accumulated commission for token.
func (m *Manager) PutCollectedCommission(token common.Address, amount *big.Int) error {
	return m.putAmount(compositeKey(commissionPrefix, token), amount)
}

func (m *Manager) getAmount(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.get(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) putAmount(key []byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	return m.put(key, amount)
}

// AppendEvent queues an engine event for the host to drain.
func (m *Manager) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	m.events = append(m.events, evt)
}

// DrainEvents returns queued events and clears the queue.
func (m *Manager) DrainEvents() []*types.Event {
	out := m.events
	m.events = nil
	return out
}

func ensureInt(v **big.Int) {
	if *v == nil {
		*v = big.NewInt(0)
	}
}
