package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type positionParams struct {
	User  string `json:"user"`
	Token string `json:"token"`
}

type amountParams struct {
	User   string `json:"user"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type positionResult struct {
	User            string `json:"user"`
	Token           string `json:"token"`
	Deposited       string `json:"deposited"`
	Borrowed        string `json:"borrowed"`
	LastAccrualStep uint64 `json:"lastAccrualStep"`
}

func (s *Server) handleLedgerDeposit(req *RPCRequest) (interface{}, *RPCError) {
	user, token, amount, rpcErr := s.decodeAmountParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Deposit(user, token, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLedgerWithdraw(req *RPCRequest) (interface{}, *RPCError) {
	user, token, amount, rpcErr := s.decodeAmountParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Withdraw(user, token, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLedgerBorrow(req *RPCRequest) (interface{}, *RPCError) {
	user, token, amount, rpcErr := s.decodeAmountParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Borrow(user, token, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLedgerRepay(req *RPCRequest) (interface{}, *RPCError) {
	user, token, amount, rpcErr := s.decodeAmountParams(req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.ledger.Repay(user, token, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLedgerGetPosition(req *RPCRequest) (interface{}, *RPCError) {
	var params positionParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	pos, err := s.ledger.Position(user, token)
	if err != nil {
		return nil, engineError(err)
	}
	return positionResult{
		User:            pos.User.Hex(),
		Token:           pos.Token.Hex(),
		Deposited:       pos.Deposited.String(),
		Borrowed:        pos.Borrowed.String(),
		LastAccrualStep: pos.LastAccrualStep,
	}, nil
}

func (s *Server) handleCollateralPower(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		User string `json:"user"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	power, err := s.collateral.TotalBorrowingPower(user)
	if err != nil {
		return nil, engineError(err)
	}
	debt, err := s.collateral.TotalStablecoinDebt(user)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{
		"borrowingPower": power.String(),
		"stablecoinDebt": debt.String(),
	}, nil
}

func (s *Server) handleCollateralReserve(req *RPCRequest) (interface{}, *RPCError) {
	var params positionParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	valuation, err := s.collateral.ReserveValuation(token, user)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"valuationWei": valuation.String()}, nil
}

func (s *Server) decodeAmountParams(req *RPCRequest) (user, token common.Address, amount *big.Int, rpcErr *RPCError) {
	var params amountParams
	if rpcErr = decodeParams(req, &params); rpcErr != nil {
		return
	}
	if user, rpcErr = parseAddress("user", params.User); rpcErr != nil {
		return
	}
	if token, rpcErr = parseAddress("token", params.Token); rpcErr != nil {
		return
	}
	amount, rpcErr = parsePositiveAmount("amount", params.Amount)
	return
}
