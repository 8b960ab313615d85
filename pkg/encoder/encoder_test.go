package encoder

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferDataSelector(t *testing.T) {
	enc := ABIEncoder{}

	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(1000)

	data, err := TransferData(enc, recipient, amount)
	require.NoError(t, err)

	// transfer(address,uint256) has the well-known selector a9059cbb
	assert.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	// selector + two 32-byte words
	assert.Equal(t, 4+32+32, len(data))
	// recipient is left-padded into the first word
	assert.Equal(t, recipient.Bytes(), data[4+12:4+32])
	// amount is the second word
	assert.Equal(t, amount, new(big.Int).SetBytes(data[4+32:]))
}

func TestApproveDataSelector(t *testing.T) {
	enc := ABIEncoder{}

	spender := common.HexToAddress("0x2222222222222222222222222222222222222222")

	data, err := ApproveData(enc, spender, big.NewInt(42))
	require.NoError(t, err)

	// approve(address,uint256) has the well-known selector 095ea7b3
	assert.Equal(t, "095ea7b3", hex.EncodeToString(data[:4]))
	assert.Equal(t, 4+32+32, len(data))
}

func TestDisperseEtherDataSelector(t *testing.T) {
	enc := ABIEncoder{}

	recipients := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	values := []*big.Int{big.NewInt(1), big.NewInt(2)}

	data, err := DisperseEtherData(enc, recipients, values)
	require.NoError(t, err)

	expectedSelector := crypto.Keccak256([]byte("disperseEther(address[],uint256[])"))[:4]
	assert.Equal(t, expectedSelector, data[:4])
	// two offsets + two lengths + four elements
	assert.Equal(t, 4+8*32, len(data))
}

func TestDisperseTokenDataSelector(t *testing.T) {
	enc := ABIEncoder{}

	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	recipients := []common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111")}
	values := []*big.Int{big.NewInt(7)}

	data, err := DisperseTokenData(enc, token, recipients, values)
	require.NoError(t, err)

	expectedSelector := crypto.Keccak256([]byte("disperseToken(address,address[],uint256[])"))[:4]
	assert.Equal(t, expectedSelector, data[:4])
}

func TestBalanceOfDataSelector(t *testing.T) {
	enc := ABIEncoder{}

	data, err := BalanceOfData(enc, common.HexToAddress("0x4444444444444444444444444444444444444444"))
	require.NoError(t, err)

	// balanceOf(address) has the well-known selector 70a08231
	assert.Equal(t, "70a08231", hex.EncodeToString(data[:4]))
	assert.Equal(t, 4+32, len(data))
}

func TestEncodeIsDeterministic(t *testing.T) {
	enc := ABIEncoder{}

	first, err := TransferData(enc, common.HexToAddress("0x01"), big.NewInt(5))
	require.NoError(t, err)
	second, err := TransferData(enc, common.HexToAddress("0x01"), big.NewInt(5))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRedirectURL(t *testing.T) {
	testCases := []struct {
		name        string
		base        string
		custom      string
		defaultPath string
		id          string
		expected    string
	}{
		{
			name:        "custom URL with placeholder",
			base:        "https://base.example.com",
			custom:      "https://custom.example.com/intent/${id}",
			defaultPath: "/request-send/${id}/action",
			id:          "abc-123",
			expected:    "https://custom.example.com/intent/abc-123",
		},
		{
			name:        "default path when no custom URL",
			base:        "https://base.example.com",
			custom:      "",
			defaultPath: "/request-send/${id}/action",
			id:          "abc-123",
			expected:    "https://base.example.com/request-send/abc-123/action",
		},
		{
			name:        "custom URL without placeholder is untouched",
			base:        "https://base.example.com",
			custom:      "https://custom.example.com/done",
			defaultPath: "/request-send/${id}/action",
			id:          "abc-123",
			expected:    "https://custom.example.com/done",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RedirectURL(tc.base, tc.custom, tc.defaultPath, tc.id))
		})
	}
}
