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

// HTTPPayer moves asset balances out of the service wallet through the
// treasury service's JSON contract.
type HTTPPayer struct {
	client   HTTPDoer
	endpoint string
}

// NewHTTPPayer constructs a payer client. When client is nil
// http.DefaultClient is used.
func NewHTTPPayer(client HTTPDoer, endpoint string) *HTTPPayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPayer{client: client, endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/")}
}

// Transfer pays amount of token out to the recipient's wallet.
func (p *HTTPPayer) Transfer(token, to common.Address, amount *big.Int) error {
	if p == nil {
		return fmt.Errorf("payer not configured")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("payer: amount must be positive")
	}
	payload, err := json.Marshal(struct {
		Token  string `json:"token"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}{Token: token.Hex(), To: to.Hex(), Amount: amount.String()})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, p.endpoint+"/transfer", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payer: transfer status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var result adapterCallResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("payer: transfer decode: %w", err)
	}
	if result.Status != 0 {
		return fmt.Errorf("payer: transfer returned status %d", result.Status)
	}
	return nil
}
