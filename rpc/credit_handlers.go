package rpc

type creditInfoResult struct {
	Score    uint64 `json:"score"`
	DebtUsed string `json:"debtUsed"`
	Capacity string `json:"capacity"`
}

func (s *Server) handleCreditRegister(req *RPCRequest) (interface{}, *RPCError) {
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
	if err := s.credit.RegisterUser(user); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleCreditGetInfo(req *RPCRequest) (interface{}, *RPCError) {
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
	score, debtUsed, capacity, err := s.credit.GetCreditInfo(user)
	if err != nil {
		return nil, engineError(err)
	}
	return creditInfoResult{
		Score:    score,
		DebtUsed: debtUsed.String(),
		Capacity: capacity.String(),
	}, nil
}

func (s *Server) handleCreditDraw(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		User   string `json:"user"`
		Amount string `json:"amount"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parsePositiveAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.credit.Draw(user, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleCreditSettle(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		User   string `json:"user"`
		Amount string `json:"amount"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddress("user", params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parsePositiveAmount("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.credit.Settle(user, amount); err != nil {
		return nil, engineError(err)
	}
	return map[string]bool{"ok": true}, nil
}
