package encoder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	typeAddress, _      = abi.NewType("address", "", nil)
	typeUint256, _      = abi.NewType("uint256", "", nil)
	typeAddressSlice, _ = abi.NewType("address[]", "", nil)
	typeUint256Slice, _ = abi.NewType("uint256[]", "", nil)
)

// Argument is one typed value of a contract function call.
type Argument struct {
	Type  abi.Type
	Value interface{}
}

// Address wraps an address argument
func Address(addr common.Address) Argument {
	return Argument{Type: typeAddress, Value: addr}
}

// Uint256 wraps a uint256 argument
func Uint256(v *big.Int) Argument {
	return Argument{Type: typeUint256, Value: v}
}

// Addresses wraps an address[] argument
func Addresses(addrs []common.Address) Argument {
	return Argument{Type: typeAddressSlice, Value: addrs}
}

// Uint256s wraps a uint256[] argument
func Uint256s(values []*big.Int) Argument {
	return Argument{Type: typeUint256Slice, Value: values}
}

// FunctionEncoder produces the call payload for a named contract function
// with typed arguments. Implementations must be pure: the same inputs
// always yield the same bytes.
type FunctionEncoder interface {
	Encode(functionName string, args []Argument) ([]byte, error)
}

// ABIEncoder encodes call payloads with standard ABI packing: the 4-byte
// keccak selector of the canonical signature followed by packed arguments.
type ABIEncoder struct{}

var _ FunctionEncoder = ABIEncoder{}

func (ABIEncoder) Encode(functionName string, args []Argument) ([]byte, error) {
	arguments := make(abi.Arguments, len(args))
	values := make([]interface{}, len(args))
	typeNames := make([]string, len(args))
	for i, arg := range args {
		arguments[i] = abi.Argument{Type: arg.Type}
		values[i] = arg.Value
		typeNames[i] = arg.Type.String()
	}

	packed, err := arguments.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack arguments for %s: %w", functionName, err)
	}

	signature := fmt.Sprintf("%s(%s)", functionName, strings.Join(typeNames, ","))
	selector := crypto.Keccak256([]byte(signature))[:4]

	return append(selector, packed...), nil
}
