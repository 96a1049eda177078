package rpc

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Paracosm-Labs/mintdeals-ledger/collateral"
	"github.com/Paracosm-Labs/mintdeals-ledger/feesplit"
)

func (s *Server) handleAdminAdvanceStep(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Step uint64 `json:"step"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.Step == 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "step must be positive"}
	}
	s.ledger.SetStep(params.Step)
	s.credit.SetStep(params.Step)
	return map[string]uint64{"step": s.ledger.Step()}, nil
}

func (s *Server) handleAdminAdjustScore(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		User  string `json:"user"`
		Delta int64  `json:"delta"`
		Boost uint64 `json:"boost"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.credit.AdminAdjust(s.admin, user, params.Delta, params.Boost); err != nil {
		return nil, engineError(err)
	}
	score, debtUsed, capacity, err := s.credit.GetCreditInfo(user)
	if err != nil {
		return nil, engineError(err)
	}
	return creditInfoResult{Score: score, DebtUsed: debtUsed.String(), Capacity: capacity.String()}, nil
}

func (s *Server) handleAdminSetGlobalCeiling(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		CeilingWei string `json:"ceilingWei"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	ceiling, rpcErr := parseNonNegativeAmount("ceilingWei", params.CeilingWei)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.credit.SetGlobalCeiling(s.admin, ceiling); err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"globalCeiling": ceiling.String()}, nil
}

// handleAdminDeriveGlobalCeiling reprices a reserve deposit and installs a
// percentage of its valuation as the new pool-wide ceiling.
func (s *Server) handleAdminDeriveGlobalCeiling(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Holder    string `json:"holder"`
		Token     string `json:"token"`
		FactorPct uint64 `json:"factorPct"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	holder, rpcErr := parseAddress("holder", params.Holder)
	if rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.FactorPct == 0 || params.FactorPct > 100 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "factorPct must be within (0,100]"}
	}
	valuation, err := s.collateral.ReserveValuation(token, holder)
	if err != nil {
		return nil, engineError(err)
	}
	ceiling := new(big.Int).Mul(valuation, new(big.Int).SetUint64(params.FactorPct))
	ceiling.Quo(ceiling, big.NewInt(100))
	if err := s.credit.SetGlobalCeiling(s.admin, ceiling); err != nil {
		return nil, engineError(err)
	}
	return map[string]string{
		"valuationWei":  valuation.String(),
		"globalCeiling": ceiling.String(),
	}, nil
}

func (s *Server) handleAdminWithdrawRepayFees(req *RPCRequest) (interface{}, *RPCError) {
	token, to, amount, rpcErr := s.decodeWithdrawParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.WithdrawProtocolFees(s.admin, token, to, amount); err != nil {
		return nil, engineError(err)
	}
	remaining, err := s.ledger.CollectedFees(token)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"remaining": remaining.String()}, nil
}

func (s *Server) handleAdminWithdrawCommission(req *RPCRequest) (interface{}, *RPCError) {
	token, to, amount, rpcErr := s.decodeWithdrawParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.router.WithdrawCollectedFees(s.admin, token, to, amount); err != nil {
		return nil, engineError(err)
	}
	remaining, err := s.router.CollectedFees(token)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"remaining": remaining.String()}, nil
}

func (s *Server) handleAdminSetCollateralFactors(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		StableFactorPct    uint64 `json:"stableFactorPct"`
		NonStableFactorPct uint64 `json:"nonStableFactorPct"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	for _, pct := range []uint64{params.StableFactorPct, params.NonStableFactorPct} {
		if pct == 0 || pct > 100 {
			return nil, &RPCError{Code: codeInvalidParams, Message: "factors must be within (0,100]"}
		}
	}
	s.collateral.SetParams(collateral.Params{
		StableFactorPct:    params.StableFactorPct,
		NonStableFactorPct: params.NonStableFactorPct,
	})
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAdminSetLedgerParams(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		RateDeltaBps uint64 `json:"rateDeltaBps"`
		RepayFeeBps  uint64 `json:"repayFeeBps"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.RateDeltaBps > 10_000 || params.RepayFeeBps > 10_000 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "basis points must not exceed 10000"}
	}
	s.ledger.SetRateDelta(params.RateDeltaBps)
	s.ledger.SetRepayFee(params.RepayFeeBps)
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAdminSetFeeSplit(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		SplitPct      uint64 `json:"splitPct"`
		CommissionPct uint64 `json:"commissionPct"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.router.SetSplit(params.SplitPct, params.CommissionPct); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAdminSetSweepPolicy(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		ThresholdWei string   `json:"thresholdWei"`
		ConvertPath  []string `json:"convertPath,omitempty"`
		DeadlineSecs uint64   `json:"deadlineSecs"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	threshold, rpcErr := parseNonNegativeAmount("thresholdWei", params.ThresholdWei)
	if rpcErr != nil {
		return nil, rpcErr
	}
	path := make([]common.Address, 0, len(params.ConvertPath))
	for _, hop := range params.ConvertPath {
		addr, rpcErr := parseAddress("convertPath", hop)
		if rpcErr != nil {
			return nil, rpcErr
		}
		path = append(path, addr)
	}
	s.router.SetSweepConfig(feesplit.SweepConfig{
		Threshold:    threshold,
		ConvertPath:  path,
		DeadlineSecs: params.DeadlineSecs,
	})
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleAdminSetPause(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Module string `json:"module"`
		Paused bool   `json:"paused"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	module := strings.TrimSpace(params.Module)
	if module == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "module must not be empty"}
	}
	if params.Paused {
		s.pauses.Pause(module)
	} else {
		s.pauses.Resume(module)
	}
	return map[string]bool{"paused": params.Paused}, nil
}

func (s *Server) decodeWithdrawParams(req *RPCRequest) (token, to common.Address, amount *big.Int, rpcErr *RPCError) {
	var params struct {
		Token  string `json:"token"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if rpcErr = decodeParams(req, &params); rpcErr != nil {
		return
	}
	if token, rpcErr = parseAddress("token", params.Token); rpcErr != nil {
		return
	}
	if to, rpcErr = parseAddress("to", params.To); rpcErr != nil {
		return
	}
	amount, rpcErr = parsePositiveAmount("amount", params.Amount)
	return
}

func parseNonNegativeAmount(field, raw string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: field + " must be a non-negative integer", Data: raw}
	}
	return value, nil
}
