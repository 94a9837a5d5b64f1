package rpc

import (
	"fmt"

	"github.com/barterlabs/goBarterd/internal/core/tx"
)

// RpcError is a JSON-RPC 2.0 error object. Engine rejections use the
// engine's own result codes, which sit outside the reserved JSON-RPC
// range.
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32604
)

func errParse(detail string) *RpcError {
	return &RpcError{Code: CodeParseError, Message: "parse error", Data: detail}
}

func errMethodNotFound(method string) *RpcError {
	return &RpcError{Code: CodeMethodNotFound, Message: "method not found", Data: method}
}

func errInvalidParams(detail string) *RpcError {
	return &RpcError{Code: CodeInvalidParams, Message: "invalid params", Data: detail}
}

func errUnauthorized(detail string) *RpcError {
	return &RpcError{Code: CodeUnauthorized, Message: "unauthorized", Data: detail}
}

// errFromResult maps an engine rejection onto an RpcError.
func errFromResult(code tx.Result) *RpcError {
	return &RpcError{Code: int(code), Message: code.String(), Data: code.Message()}
}

// errFromErr wraps a domain error.
func errFromErr(err error) *RpcError {
	return &RpcError{Code: CodeInternalError, Message: "internal error", Data: err.Error()}
}
