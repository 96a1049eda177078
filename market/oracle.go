package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
)

// ErrInvalidOraclePrice flags a non-positive price answer. Valuation callers
// must treat this as a hard failure, never as a zero valuation.
var ErrInvalidOraclePrice = errors.New("market: invalid oracle price")

// PriceOracle reports the latest price for one non-stable asset together with
// the decimal precision of the answer.
type PriceOracle interface {
	LatestPrice() (*big.Int, error)
	PriceDecimals() (uint8, error)
}

// HTTPOracle is the production PriceOracle client.
type HTTPOracle struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPOracle constructs an oracle client. When client is nil
// http.DefaultClient is used.
func NewHTTPOracle(client HTTPDoer, endpoint string) *HTTPOracle {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPOracle{client: client, endpoint: strings.TrimSpace(endpoint)}
}

func (o *HTTPOracle) fetch() (*big.Int, uint8, error) {
	if o == nil {
		return nil, 0, fmt.Errorf("price oracle not configured")
	}
	req, err := http.NewRequest(http.MethodGet, o.endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("price oracle: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var payload struct {
		Price    string `json:"price"`
		Decimals uint8  `json:"decimals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("price oracle: decode: %w", err)
	}
	price, ok := new(big.Int).SetString(strings.TrimSpace(payload.Price), 10)
	if !ok {
		return nil, 0, fmt.Errorf("price oracle: invalid price %q", payload.Price)
	}
	if price.Sign() <= 0 {
		return nil, 0, ErrInvalidOraclePrice
	}
	return price, payload.Decimals, nil
}

func (o *HTTPOracle) LatestPrice() (*big.Int, error) {
	price, _, err := o.fetch()
	return price, err
}

func (o *HTTPOracle) PriceDecimals() (uint8, error) {
	_, decimals, err := o.fetch()
	return decimals, err
}

// ManualOracle stores an operator-set price. It backs local deployments and
// tests where no external feed exists.
type ManualOracle struct {
	mu       sync.RWMutex
	price    *big.Int
	decimals uint8
}

// NewManualOracle seeds the oracle with an initial answer.
func NewManualOracle(price *big.Int, decimals uint8) *ManualOracle {
	o := &ManualOracle{decimals: decimals}
	if price != nil {
		o.price = new(big.Int).Set(price)
	}
	return o
}

// Set replaces the stored answer.
func (o *ManualOracle) Set(price *big.Int, decimals uint8) {
	if o == nil || price == nil {
		return
	}
	o.mu.Lock()
	o.price = new(big.Int).Set(price)
	o.decimals = decimals
	o.mu.Unlock()
}

func (o *ManualOracle) LatestPrice() (*big.Int, error) {
	if o == nil {
		return nil, fmt.Errorf("manual oracle not configured")
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.price == nil || o.price.Sign() <= 0 {
		return nil, ErrInvalidOraclePrice
	}
	return new(big.Int).Set(o.price), nil
}

func (o *ManualOracle) PriceDecimals() (uint8, error) {
	if o == nil {
		return 0, fmt.Errorf("manual oracle not configured")
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.decimals, nil
}
