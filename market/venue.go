package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrSlippageExceeded indicates the final swap leg fell short of the caller's
// minimum output.
var ErrSlippageExceeded = errors.New("market: swap output below minimum")

// SwapVenue converts one asset into another along a token path. Swap returns
// one amount per path leg; callers must not assume the reply is well-formed.
type SwapVenue interface {
	Swap(path []common.Address, amountIn, minAmountOut *big.Int, recipient common.Address, deadline uint64) ([]*big.Int, error)
}

// HTTPVenue is the production SwapVenue client.
type HTTPVenue struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPVenue constructs a venue client. When client is nil
// http.DefaultClient is used.
func NewHTTPVenue(client HTTPDoer, endpoint string) *HTTPVenue {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPVenue{client: client, endpoint: strings.TrimSpace(endpoint)}
}

func (v *HTTPVenue) Swap(path []common.Address, amountIn, minAmountOut *big.Int, recipient common.Address, deadline uint64) ([]*big.Int, error) {
	if v == nil {
		return nil, fmt.Errorf("swap venue not configured")
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("swap venue: path requires at least two tokens")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("swap venue: amountIn must be positive")
	}
	if minAmountOut == nil {
		minAmountOut = big.NewInt(0)
	}
	hexPath := make([]string, len(path))
	for i, token := range path {
		hexPath[i] = token.Hex()
	}
	body, err := json.Marshal(struct {
		Path         []string `json:"path"`
		AmountIn     string   `json:"amountIn"`
		MinAmountOut string   `json:"minAmountOut"`
		Recipient    string   `json:"recipient"`
		Deadline     uint64   `json:"deadline"`
	}{hexPath, amountIn.String(), minAmountOut.String(), recipient.Hex(), deadline})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, v.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("swap venue: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var payload struct {
		AmountsOut []string `json:"amountsOut"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("swap venue: decode: %w", err)
	}
	if len(payload.AmountsOut) != len(path) {
		return nil, fmt.Errorf("swap venue: expected %d legs, got %d", len(path), len(payload.AmountsOut))
	}
	amounts := make([]*big.Int, len(payload.AmountsOut))
	for i, raw := range payload.AmountsOut {
		value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
		if !ok || value.Sign() < 0 {
			return nil, fmt.Errorf("swap venue: invalid leg amount %q", raw)
		}
		amounts[i] = value
	}
	// Verify the final leg before reporting success; the venue's own checks
	// are not trusted.
	if minAmountOut != nil && amounts[len(amounts)-1].Cmp(minAmountOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	return amounts, nil
}
