package batch

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mselser95/dexsim/pkg/types"
)

// Parse turns a document into an ordered batch. Structural failures do not
// abort parsing: each malformed entry becomes an Item carrying its error, so
// the engine can report it in place while the rest of the batch proceeds.
// No chain access happens here.
func Parse(doc *Document) *Batch {
	b := &Batch{
		Block:     doc.Block,
		ForkBlock: forkBlock(doc.Block),
		Items:     make([]Item, 0, len(doc.Swaps)+len(doc.Orders)),
	}

	for i := range doc.Swaps {
		op, err := parseSwap(i, &doc.Swaps[i])
		item := Item{Kind: KindSwap, Info: doc.Swaps[i].TransactionInfo}
		if err != nil {
			item.Err = err
		} else {
			item.Op = op
		}
		b.Items = append(b.Items, item)
	}

	for i := range doc.Orders {
		op, err := parseOrder(i, &doc.Orders[i])
		item := Item{Kind: KindOrder, Info: doc.Orders[i].TransactionInfo}
		if err != nil {
			item.Err = err
		} else {
			item.Op = op
		}
		b.Items = append(b.Items, item)
	}

	return b
}

// forkBlock is the snapshot point: one block before the source transactions,
// so execution sees the pre-transaction state.
func forkBlock(block uint64) uint64 {
	if block > 0 {
		return block - 1
	}

	return block
}

func parseSwap(index int, d *SwapDescriptor) (*Operation, error) {
	fail := func(field, detail string) error {
		return &types.MalformedDescriptorError{Kind: string(KindSwap), Index: index, Field: field, Detail: detail}
	}

	tokenIn, err := parseAddress(d.TokenIn)
	if err != nil {
		return nil, fail("token1", err.Error())
	}

	tokenOut, err := parseAddress(d.TokenOut)
	if err != nil {
		return nil, fail("token2", err.Error())
	}

	pool, err := parseAddress(d.PoolAddress)
	if err != nil {
		return nil, fail("pool_address", err.Error())
	}

	amountIn, err := parseAmount(d.AmountIn)
	if err != nil {
		return nil, fail("amount_in", err.Error())
	}

	expectedOut, err := parseAmount(d.ExpectedAmountOut)
	if err != nil {
		return nil, fail("expected_amount_out", err.Error())
	}

	if d.Protocol == "" {
		return nil, fail("type", "missing protocol tag")
	}

	return &Operation{
		ID:   uuid.NewString(),
		Kind: KindSwap,
		Swap: &SwapOperation{
			TokenIn:           tokenIn,
			TokenOut:          tokenOut,
			Pool:              pool,
			AmountIn:          amountIn,
			ExpectedAmountOut: expectedOut,
			Fee:               d.Fee,
			Protocol:          Protocol(d.Protocol),
		},
		Info: d.TransactionInfo,
	}, nil
}

func parseOrder(index int, d *OrderDescriptor) (*Operation, error) {
	fail := func(field, detail string) error {
		return &types.MalformedDescriptorError{Kind: string(KindOrder), Index: index, Field: field, Detail: detail}
	}

	salt, err := parseAmount(d.Salt)
	if err != nil {
		return nil, fail("salt", err.Error())
	}

	maker, err := parseAddress(d.Maker)
	if err != nil {
		return nil, fail("maker", err.Error())
	}

	receiver, err := parseOptionalAddress(d.Receiver)
	if err != nil {
		return nil, fail("receiver", err.Error())
	}

	allowedSender, err := parseOptionalAddress(d.AllowedSender)
	if err != nil {
		return nil, fail("allowed_sender", err.Error())
	}

	makerAsset, err := parseAddress(d.MakerAsset)
	if err != nil {
		return nil, fail("maker_asset", err.Error())
	}

	takerAsset, err := parseAddress(d.TakerAsset)
	if err != nil {
		return nil, fail("taker_asset", err.Error())
	}

	makingAmount, err := parseAmount(d.MakingAmount)
	if err != nil {
		return nil, fail("making_amount", err.Error())
	}

	takingAmount, err := parseAmount(d.TakingAmount)
	if err != nil {
		return nil, fail("taking_amount", err.Error())
	}

	makerTraits, err := parseOptionalAmount(d.MakerTraits)
	if err != nil {
		return nil, fail("maker_traits", err.Error())
	}

	fillAmount, err := parseOptionalAmount(d.Amount)
	if err != nil {
		return nil, fail("amount", err.Error())
	}

	takerTraits, err := parseOptionalAmount(d.TakerTraits)
	if err != nil {
		return nil, fail("taker_traits", err.Error())
	}

	offsets, err := parseOptionalAmount(d.Offsets)
	if err != nil {
		return nil, fail("offsets", err.Error())
	}

	expectedOut, err := parseOptionalAmount(d.ExpectedAmountOut)
	if err != nil {
		return nil, fail("expected_amount_out", err.Error())
	}

	// Forwarded opaquely; an undecodable blob is a structural failure, an
	// invalid-but-well-formed signature is the chain's to reject.
	signature, err := parseBytes(d.Signature)
	if err != nil {
		return nil, fail("signature", err.Error())
	}

	interactions, err := parseBytes(d.Interactions)
	if err != nil {
		return nil, fail("interactions", err.Error())
	}

	return &Operation{
		ID:   uuid.NewString(),
		Kind: KindOrder,
		Order: &OrderOperation{
			Salt:              salt,
			Maker:             maker,
			Receiver:          receiver,
			AllowedSender:     allowedSender,
			MakerAsset:        makerAsset,
			TakerAsset:        takerAsset,
			MakingAmount:      makingAmount,
			TakingAmount:      takingAmount,
			MakerTraits:       makerTraits,
			Signature:         signature,
			FillAmount:        fillAmount,
			TakerTraits:       takerTraits,
			Offsets:           offsets,
			Interactions:      interactions,
			ExpectedAmountOut: expectedOut,
		},
		Info: d.TransactionInfo,
	}, nil
}

// parseAddress requires a 0x-prefixed, exactly 20-byte hex address.
func parseAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("missing address")
	}

	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Address{}, fmt.Errorf("address %q missing 0x prefix", s)
	}

	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return common.Address{}, fmt.Errorf("address %q is not valid hex", s)
	}

	if len(raw) != common.AddressLength {
		return common.Address{}, fmt.Errorf("address %q is %d bytes, want 20", s, len(raw))
	}

	return common.BytesToAddress(raw), nil
}

// parseOptionalAddress treats an absent field as the zero-address sentinel.
func parseOptionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}

	return parseAddress(s)
}

// parseAmount accepts a non-negative integer as decimal or 0x hex, bounded
// to 256 bits. Zero is structurally valid; rejecting zero-amount trades is
// the resolver's job.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing amount")
	}

	var (
		v  *big.Int
		ok bool
	)

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok = new(big.Int).SetString(s[2:], 16)
	} else {
		v, ok = new(big.Int).SetString(s, 10)
	}

	if !ok {
		return nil, fmt.Errorf("amount %q is not a valid integer", s)
	}

	if v.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", s)
	}

	if v.BitLen() > 256 {
		return nil, fmt.Errorf("amount %q exceeds 256 bits", s)
	}

	return v, nil
}

// parseOptionalAmount treats an absent field as zero.
func parseOptionalAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}

	return parseAmount(s)
}

// parseBytes decodes an optional 0x-prefixed hex blob. Empty is valid.
func parseBytes(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return nil, nil
	}

	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("bytes %q are not valid hex", s)
	}

	return raw, nil
}
