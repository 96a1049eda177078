package market

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Adapter is the wrapped-position-token money market that actually holds the
// facility's funds. Every mutating call is a synchronous round-trip; any error
// aborts the ledger operation that issued it.
type Adapter interface {
	Supply(amount *big.Int) error
	RedeemUnderlying(amount *big.Int) error
	Borrow(amount *big.Int) error
	RepayBorrow(amount *big.Int) error
	// BorrowRatePerStep reports the market's per-step borrow rate scaled by
	// 1e18.
	BorrowRatePerStep() (*big.Int, error)
	BalanceOfUnderlying(user common.Address) (*big.Int, error)
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter is the production Adapter client speaking the market service's
// JSON contract.
type HTTPAdapter struct {
	client   HTTPDoer
	endpoint string
	token    common.Address
}

// NewHTTPAdapter constructs an adapter client bound to one wrapped market.
// When client is nil http.DefaultClient is used.
func NewHTTPAdapter(client HTTPDoer, endpoint string, token common.Address) *HTTPAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAdapter{client: client, endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"), token: token}
}

type adapterCallResult struct {
	Status uint64 `json:"status"`
	Value  string `json:"value,omitempty"`
}

func (a *HTTPAdapter) call(method string, body any) (*adapterCallResult, error) {
	if a == nil {
		return nil, fmt.Errorf("market adapter not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, a.endpoint+"/"+method, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market adapter: %s status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var result adapterCallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("market adapter: %s decode: %w", method, err)
	}
	// The market reports Compound-style status codes; zero is success.
	if result.Status != 0 {
		return nil, fmt.Errorf("market adapter: %s returned status %d", method, result.Status)
	}
	return &result, nil
}

type adapterAmountParams struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (a *HTTPAdapter) amountCall(method string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("market adapter: %s amount must be positive", method)
	}
	_, err := a.call(method, adapterAmountParams{Token: a.token.Hex(), Amount: amount.String()})
	return err
}

func (a *HTTPAdapter) Supply(amount *big.Int) error {
	return a.amountCall("supply", amount)
}

func (a *HTTPAdapter) RedeemUnderlying(amount *big.Int) error {
	return a.amountCall("redeemUnderlying", amount)
}

func (a *HTTPAdapter) Borrow(amount *big.Int) error {
	return a.amountCall("borrow", amount)
}

func (a *HTTPAdapter) RepayBorrow(amount *big.Int) error {
	return a.amountCall("repayBorrow", amount)
}

func (a *HTTPAdapter) BorrowRatePerStep() (*big.Int, error) {
	result, err := a.call("borrowRatePerStep", adapterAmountParams{Token: a.token.Hex()})
	if err != nil {
		return nil, err
	}
	return parseAmount("borrowRatePerStep", result.Value)
}

func (a *HTTPAdapter) BalanceOfUnderlying(user common.Address) (*big.Int, error) {
	result, err := a.call("balanceOfUnderlying", struct {
		Token string `json:"token"`
		User  string `json:"user"`
	}{Token: a.token.Hex(), User: user.Hex()})
	if err != nil {
		return nil, err
	}
	return parseAmount("balanceOfUnderlying", result.Value)
}

func parseAmount(method, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("market adapter: %s returned empty value", method)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("market adapter: %s returned invalid value %q", method, raw)
	}
	return value, nil
}
