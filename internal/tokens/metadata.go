package tokens

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Metadata is the ERC-20 display metadata the report renderer needs.
type Metadata struct {
	Symbol   string
	Decimals uint8
}

// Reader is the slice of the chain gateway the metadata client uses.
type Reader interface {
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// MetadataClient reads token metadata from the chain.
type MetadataClient struct {
	reader Reader
}

// NewMetadataClient creates a metadata client over a gateway.
func NewMetadataClient(reader Reader) *MetadataClient {
	return &MetadataClient{reader: reader}
}

// Fetch reads symbol and decimals for a token. Metadata is reporting-only, so
// read failures degrade to display defaults instead of erroring out.
func (c *MetadataClient) Fetch(ctx context.Context, token common.Address) *Metadata {
	meta := &Metadata{
		Symbol:   shortAddress(token),
		Decimals: 18,
	}

	symbol, err := c.reader.TokenSymbol(ctx, token)
	if err == nil && symbol != "" {
		meta.Symbol = symbol
	}

	decimals, err := c.reader.TokenDecimals(ctx, token)
	if err == nil && decimals > 0 {
		meta.Decimals = decimals
	}

	return meta
}

func shortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + ".." + hex[len(hex)-4:]
}

// FormatAmount renders a raw token amount as a decimal string using the
// token's precision.
func FormatAmount(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	value := new(big.Float).Quo(new(big.Float).SetInt(amount), scale)

	return value.Text('f', 6)
}
