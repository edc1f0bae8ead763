package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/dexsim/internal/batch"
)

// Test token addresses. Values are arbitrary but stable so tests can assert
// on paths and keys.
var (
	TokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	TokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	TokenC = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	Taker  = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	Maker  = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

// CreateTestSwap creates a structurally valid PancakeSwap V2 swap descriptor.
func CreateTestSwap(amountIn string) batch.SwapDescriptor {
	return batch.SwapDescriptor{
		TokenIn:           TokenA.Hex(),
		TokenOut:          TokenB.Hex(),
		AmountIn:          amountIn,
		PoolAddress:       "0x00000000000000000000000000000000000000d4",
		ExpectedAmountOut: "1000000000000000000",
		Fee:               2500,
		Protocol:          "PancakeV2",
	}
}

// CreateTestOrder creates a structurally valid limit order descriptor with a
// placeholder signature. The signature will not recover to the maker, so a
// live chain rejects the fill; that is the expected end state for fixtures.
func CreateTestOrder(makingAmount, takingAmount string) batch.OrderDescriptor {
	return batch.OrderDescriptor{
		Salt:          "42",
		Maker:         Maker.Hex(),
		Receiver:      "0x0000000000000000000000000000000000000000",
		AllowedSender: "0x0000000000000000000000000000000000000000",
		MakerAsset:    TokenA.Hex(),
		TakerAsset:    TokenB.Hex(),
		MakingAmount:  makingAmount,
		TakingAmount:  takingAmount,
		MakerTraits:   "0",
		Signature:     "0x" + placeholderSignature(),
	}
}

// CreateTestDocument creates a batch document with the given entries.
func CreateTestDocument(block uint64, swaps []batch.SwapDescriptor, orders []batch.OrderDescriptor) *batch.Document {
	return &batch.Document{
		Block:  block,
		Swaps:  swaps,
		Orders: orders,
	}
}

// SeedSwapHappyPath scripts a gateway so CreateTestSwap resolves and submits
// cleanly: funded balance, a live quote and a pre-existing allowance.
func SeedSwapHappyPath(gw *MockGateway, amountIn, quotedOut *big.Int, router common.Address) {
	gw.SetBalance(TokenA, gw.Account(), new(big.Int).Mul(amountIn, big.NewInt(2)))
	gw.SetQuote([]common.Address{TokenA, TokenB}, []*big.Int{amountIn, quotedOut})
	gw.SetAllowance(TokenA, gw.Account(), router, new(big.Int).Mul(amountIn, big.NewInt(10)))
}

// placeholderSignature is 65 bytes of 0x11, hex encoded without the prefix.
func placeholderSignature() string {
	sig := ""
	for i := 0; i < 65; i++ {
		sig += "11"
	}
	return sig
}
