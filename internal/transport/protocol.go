// Package transport carries host operations between a workspace and the
// host process, over HTTP or a WebSocket.
//
// A call is an operation name plus its JSON-encoded request struct. The
// reply is a Response whose Result holds the JSON-encoded return value, or
// whose Error and Code describe the failure. Code is the fs error class, so
// errors.Is keeps working on the caller's side.
package transport

import (
	"encoding/json"
	"errors"

	"github.com/CageChen/ezworkspace/internal/fs"
	"github.com/bytedance/sonic"
)

// ErrClosed is returned by invokers whose connection has shut down.
var ErrClosed = errors.New("transport closed")

// Request is one WebSocket call frame.
type Request struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the reply to a call.
type Response struct {
	ID     string          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// ErrorResponse builds the reply for a failed call.
func ErrorResponse(err error) *Response {
	return &Response{Error: err.Error(), Code: fs.ErrorCode(err)}
}

// Err rebuilds the error carried by r, or returns nil.
func (r *Response) Err() error {
	if r.Error == "" && r.Code == "" {
		return nil
	}
	return fs.FromCode(r.Code, r.Error)
}

// Decode unmarshals the result into v. A nil v discards the result.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Result) == 0 {
		return nil
	}
	return sonic.Unmarshal(r.Result, v)
}

// Encode marshals a value into a call's arguments or result.
func Encode(v any) (json.RawMessage, error) {
	return sonic.Marshal(v)
}
