package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mselser95/dexsim/pkg/types"
)

// Gateway is the capability surface the execution engine depends on. Reads
// fail with *types.ReadError, writes with *types.SubmitError; a revert is a
// classified SubmitError, never a crash. Implementations own nonce management
// and must not let two writes for the same account be in flight at once.
type Gateway interface {
	// QuoteAmountsOut returns the router's quoted output amounts for amountIn
	// along path. The last element is the expected output of the swap.
	QuoteAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)

	// BalanceOf returns owner's balance of token.
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)

	// Allowance returns how much spender may transfer on owner's behalf.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// TokenSymbol and TokenDecimals read ERC-20 metadata for reporting.
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)

	// Approve grants spender an allowance of amount from the acting account.
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*types.Receipt, error)

	// SwapExactTokensForTokens submits a constant-product swap via router.
	SwapExactTokensForTokens(ctx context.Context, router common.Address, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) (*types.Receipt, error)

	// FillOrderArgs fills a signed limit order via router.
	FillOrderArgs(ctx context.Context, router common.Address, order LimitOrder, sig Signature, amount, takerTraits *big.Int, args []byte) (*types.Receipt, error)

	// Account is the acting account all writes are signed with.
	Account() common.Address

	// Close releases the underlying RPC connection.
	Close()
}
