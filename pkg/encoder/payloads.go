package encoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The payload builders below produce the expected call data for each
// intent kind. They are evaluated both at creation time (returned to the
// caller so it can broadcast a matching transaction) and at reconciliation
// time (compared against mined evidence).

// TransferData encodes transfer(recipient, amount) for a token send.
func TransferData(enc FunctionEncoder, recipient common.Address, amount *big.Int) ([]byte, error) {
	return enc.Encode("transfer", []Argument{
		Address(recipient),
		Uint256(amount),
	})
}

// ApproveData encodes approve(spender, totalAmount) for the approve phase
// of a token payout.
func ApproveData(enc FunctionEncoder, spender common.Address, totalAmount *big.Int) ([]byte, error) {
	return enc.Encode("approve", []Argument{
		Address(spender),
		Uint256(totalAmount),
	})
}

// DisperseEtherData encodes disperseEther(recipients, values) for a
// native-asset payout.
func DisperseEtherData(enc FunctionEncoder, recipients []common.Address, values []*big.Int) ([]byte, error) {
	return enc.Encode("disperseEther", []Argument{
		Addresses(recipients),
		Uint256s(values),
	})
}

// DisperseTokenData encodes disperseToken(token, recipients, values) for a
// token payout.
func DisperseTokenData(enc FunctionEncoder, token common.Address, recipients []common.Address, values []*big.Int) ([]byte, error) {
	return enc.Encode("disperseToken", []Argument{
		Address(token),
		Addresses(recipients),
		Uint256s(values),
	})
}

// BalanceOfData encodes balanceOf(wallet) for token balance lookups.
func BalanceOfData(enc FunctionEncoder, wallet common.Address) ([]byte, error) {
	return enc.Encode("balanceOf", []Argument{
		Address(wallet),
	})
}
