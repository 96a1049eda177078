package rpc

import "math/big"

func (s *Server) handleFeeSplitRoute(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Token      string `json:"token"`
		Gross      string `json:"gross"`
		Recipient  string `json:"recipient"`
		ToFacility bool   `json:"toFacility"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	recipient, rpcErr := parseAddress("recipient", params.Recipient)
	if rpcErr != nil {
		return nil, rpcErr
	}
	gross, rpcErr := parsePositiveAmount("gross", params.Gross)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.router.RouteInflow(token, gross, recipient, params.ToFacility); err != nil {
		return nil, engineError(err)
	}
	pool, err := s.router.ManagerPool(token)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"managerPool": pool.String()}, nil
}

func (s *Server) handleFeeSplitSweep(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Token        string `json:"token"`
		MinAmountOut string `json:"minAmountOut,omitempty"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	minOut := big.NewInt(0)
	if params.MinAmountOut != "" {
		var err *RPCError
		if minOut, err = parsePositiveAmount("minAmountOut", params.MinAmountOut); err != nil {
			return nil, err
		}
	}
	swept, err := s.router.Sweep(token, minOut)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]string{"swept": swept.String()}, nil
}

func (s *Server) handleRegistryResolve(req *RPCRequest) (interface{}, *RPCError) {
	var params struct {
		Token string `json:"token"`
	}
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	token, rpcErr := parseAddress("token", params.Token)
	if rpcErr != nil {
		return nil, rpcErr
	}
	asset, err := s.assets.Resolve(token)
	if err != nil {
		return nil, engineError(err)
	}
	return map[string]interface{}{
		"token":    asset.Token.Hex(),
		"decimals": asset.Decimals,
		"stable":   asset.Stable,
	}, nil
}
