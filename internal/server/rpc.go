package server

import (
	"errors"

	"contract_gate/internal/dataType"
	"contract_gate/internal/policy"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Namespace the admin methods are registered under, e.g.
// ibft_addContractAddress.
const RPCNamespace = "ibft"

// Application error codes, inside the JSON-RPC server error range.
const (
	CodeUnknownListKind = -32001
	CodeInvalidAddress  = -32002
)

type rpcError struct {
	code int
	err  error
}

func (e *rpcError) Error() string  { return e.err.Error() }
func (e *rpcError) ErrorCode() int { return e.code }
func (e *rpcError) Unwrap() error  { return e.err }

var _ rpc.Error = (*rpcError)(nil)

func toRPCError(err error) error {
	switch {
	case errors.Is(err, dataType.ErrUnknownListKind):
		return &rpcError{code: CodeUnknownListKind, err: err}
	case errors.Is(err, dataType.ErrInvalidAddress):
		return &rpcError{code: CodeInvalidAddress, err: err}
	}
	return err
}

// PolicyAPI is the administrative method object for the local lists.
type PolicyAPI struct {
	store  *policy.Store
	logger *zap.Logger
}

func NewPolicyAPI(store *policy.Store, logger *zap.Logger) *PolicyAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyAPI{store: store, logger: logger}
}

// AddContractAddress adds or removes address on the named list. Requests
// that already match the current state succeed without changing anything.
func (api *PolicyAPI) AddContractAddress(listType string, address string, add bool) (bool, error) {
	if err := api.store.AddOrRemove(listType, address, add); err != nil {
		api.logger.Warn("rejected admin update",
			zap.String("list", listType), zap.String("address", address), zap.Error(err))
		return false, toRPCError(err)
	}
	return true, nil
}

// GetContractAddressList returns the named local list in address order.
func (api *PolicyAPI) GetContractAddressList(listType string) ([]common.Address, error) {
	kind, err := dataType.ParseListKind(listType)
	if err != nil {
		return nil, toRPCError(err)
	}
	return api.store.List(kind), nil
}

// NewRPCServer returns a JSON-RPC server exposing api. It serves HTTP
// through its ServeHTTP method.
func NewRPCServer(api *PolicyAPI) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(RPCNamespace, api); err != nil {
		return nil, err
	}
	return srv, nil
}
