package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"daochain/crypto"
)

// MaxDecodeDepth bounds how deeply batch calls may nest inside an encoded
// call. Decoding stops as soon as the bound is crossed so a small payload
// cannot fan out into unbounded work.
const MaxDecodeDepth = 16

const (
	// ModuleUtility hosts call combinators.
	ModuleUtility = "utility"
	// MethodBatch dispatches a list of nested calls in order.
	MethodBatch = "batch"
)

var (
	// ErrMalformedCall is returned when bytes do not decode into a call.
	ErrMalformedCall = errors.New("dispatch: malformed call")
	// ErrDecodeDepth is returned when nested calls exceed MaxDecodeDepth.
	ErrDecodeDepth = errors.New("dispatch: call nesting too deep")
	// ErrUnknownCall is returned for module/method pairs the host does not
	// route.
	ErrUnknownCall = errors.New("dispatch: unknown call")
)

// Weight measures the execution cost of a call in abstract units.
type Weight = uint64

// Call is an opaque, routable request. Args carries the rlp encoded
// parameters of the target method.
type Call struct {
	Module string
	Method string
	Args   []byte
}

// BatchArgs holds the encoded calls of a utility batch.
type BatchArgs struct {
	Calls [][]byte
}

// NewCall encodes args and wraps them into a call for module.method.
func NewCall(module, method string, args interface{}) (*Call, error) {
	module = strings.TrimSpace(module)
	method = strings.TrimSpace(method)
	if module == "" || method == "" {
		return nil, fmt.Errorf("%w: module and method required", ErrMalformedCall)
	}
	call := &Call{Module: module, Method: method}
	if args != nil {
		encoded, err := rlp.EncodeToBytes(args)
		if err != nil {
			return nil, fmt.Errorf("dispatch: encode args: %w", err)
		}
		call.Args = encoded
	}
	return call, nil
}

// NewBatch wraps already built calls into a utility batch.
func NewBatch(calls ...*Call) (*Call, error) {
	args := BatchArgs{Calls: make([][]byte, 0, len(calls))}
	for _, call := range calls {
		encoded, err := call.Encode()
		if err != nil {
			return nil, err
		}
		args.Calls = append(args.Calls, encoded)
	}
	return NewCall(ModuleUtility, MethodBatch, args)
}

// Name returns the routing key "module.method".
func (c *Call) Name() string {
	if c == nil {
		return ""
	}
	return c.Module + "." + c.Method
}

// Encode returns the canonical byte form of the call.
func (c *Call) Encode() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil call", ErrMalformedCall)
	}
	return rlp.EncodeToBytes(c)
}

// Hash returns the content address of the encoded call.
func (c *Call) Hash() ([32]byte, error) {
	encoded, err := c.Encode()
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.HashCall(encoded), nil
}

// DecodeArgs decodes the call parameters into out.
func (c *Call) DecodeArgs(out interface{}) error {
	if c == nil {
		return fmt.Errorf("%w: nil call", ErrMalformedCall)
	}
	if err := rlp.DecodeBytes(c.Args, out); err != nil {
		return fmt.Errorf("%w: %s args: %v", ErrMalformedCall, c.Name(), err)
	}
	return nil
}

// DecodeCall parses encoded bytes into a call and walks nested batches,
// failing with ErrDecodeDepth once MaxDecodeDepth is crossed.
func DecodeCall(encoded []byte) (*Call, error) {
	return decodeCall(encoded, 0)
}

func decodeCall(encoded []byte, depth int) (*Call, error) {
	if depth > MaxDecodeDepth {
		return nil, ErrDecodeDepth
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedCall)
	}
	call := new(Call)
	if err := rlp.DecodeBytes(encoded, call); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCall, err)
	}
	if call.Module == "" || call.Method == "" {
		return nil, fmt.Errorf("%w: module and method required", ErrMalformedCall)
	}
	if call.Module == ModuleUtility && call.Method == MethodBatch {
		var args BatchArgs
		if err := call.DecodeArgs(&args); err != nil {
			return nil, err
		}
		for _, inner := range args.Calls {
			if _, err := decodeCall(inner, depth+1); err != nil {
				return nil, err
			}
		}
	}
	return call, nil
}

// PostInfo reports the resources a dispatched call actually consumed. It is
// meaningful for both successful and failed dispatches.
type PostInfo struct {
	ActualWeight Weight
}

// Dispatcher executes opaque calls under a given origin. The governance
// engine only hashes, meters and forwards calls through it.
type Dispatcher interface {
	DecodeCall(encoded []byte) (*Call, error)
	Dispatch(origin Origin, call *Call) (PostInfo, error)
}
