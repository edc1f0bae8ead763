package fork

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// maxBalanceSlot bounds the storage slot probe. Common ERC-20 implementations
// keep the balances mapping in one of the first few slots.
const maxBalanceSlot = 10

const balanceOfABI = `[{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// SetERC20Balance writes amount into the token's balances mapping for account
// via anvil_setStorageAt, probing candidate slots and verifying each write
// through balanceOf until one sticks.
func (a *Anvil) SetERC20Balance(ctx context.Context, token, account common.Address, amount *big.Int) error {
	for slot := uint8(0); slot < maxBalanceSlot; slot++ {
		SlotProbesTotal.Inc()

		err := a.setBalanceSlot(ctx, token, account, amount, slot)
		if err != nil {
			a.logger.Debug("balance-slot-write-failed",
				zap.Uint8("slot", slot),
				zap.Error(err))
			continue
		}

		balance, err := a.erc20Balance(ctx, token, account)
		if err != nil {
			continue
		}

		if balance.Cmp(amount) >= 0 {
			BalanceSeedsTotal.WithLabelValues("success").Inc()
			a.logger.Info("balance-seeded",
				zap.String("token", token.Hex()),
				zap.String("account", account.Hex()),
				zap.Uint8("slot", slot),
				zap.String("amount", amount.String()))
			return nil
		}
	}

	BalanceSeedsTotal.WithLabelValues("failure").Inc()

	return fmt.Errorf("no storage slot produced the requested balance for token %s", token.Hex())
}

// setBalanceSlot writes the mapping entry keccak256(pad(account) . pad(slot)).
func (a *Anvil) setBalanceSlot(ctx context.Context, token, account common.Address, amount *big.Int, slot uint8) error {
	key := balanceStorageKey(account, slot)

	var value [32]byte
	amount.FillBytes(value[:])

	var ok bool
	err := a.rpc.CallContext(ctx, &ok, "anvil_setStorageAt",
		token.Hex(),
		hexutil.Encode(key[:]),
		hexutil.Encode(value[:]))
	if err != nil {
		return fmt.Errorf("anvil_setStorageAt: %w", err)
	}

	return nil
}

// balanceStorageKey computes the Solidity mapping slot for balances[account]
// stored at the given base slot.
func balanceStorageKey(account common.Address, slot uint8) common.Hash {
	var buf [64]byte
	copy(buf[12:32], account.Bytes())
	buf[63] = slot

	return common.BytesToHash(crypto.Keccak256(buf[:]))
}

// erc20Balance reads balanceOf directly against the fork.
func (a *Anvil) erc20Balance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	parsed, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	data, err := parsed.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}

	result, err := a.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}
