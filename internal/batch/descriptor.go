package batch

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Document is the raw batch input. Integer-typed fields arrive as strings
// (decimal or 0x hex) to avoid precision loss; addresses and byte blobs as
// 0x-prefixed hex.
type Document struct {
	Block  uint64            `json:"block"`
	Swaps  []SwapDescriptor  `json:"swaps"`
	Orders []OrderDescriptor `json:"orders"`
}

// TransactionInfo is an optional provenance note carried through to the
// report. It has zero effect on execution.
type TransactionInfo struct {
	Hash      string `json:"hash"`
	Note      string `json:"note"`
	Method    string `json:"method"`
	IsComplex bool   `json:"is_complex"`
}

// SwapDescriptor is one pool-based swap entry.
type SwapDescriptor struct {
	TokenIn           string           `json:"token1"`
	TokenOut          string           `json:"token2"`
	AmountIn          string           `json:"amount_in"`
	PoolAddress       string           `json:"pool_address"`
	ExpectedAmountOut string           `json:"expected_amount_out"`
	Fee               uint32           `json:"fee"`
	Protocol          string           `json:"type"`
	TransactionInfo   *TransactionInfo `json:"transaction_info,omitempty"`
}

// OrderDescriptor is one signed limit order entry.
type OrderDescriptor struct {
	Salt              string           `json:"salt"`
	Maker             string           `json:"maker"`
	Receiver          string           `json:"receiver"`
	AllowedSender     string           `json:"allowed_sender"`
	MakerAsset        string           `json:"maker_asset"`
	TakerAsset        string           `json:"taker_asset"`
	MakingAmount      string           `json:"making_amount"`
	TakingAmount      string           `json:"taking_amount"`
	MakerTraits       string           `json:"maker_traits"`
	Signature         string           `json:"signature"`
	Amount            string           `json:"amount"`
	TakerTraits       string           `json:"taker_traits"`
	Offsets           string           `json:"offsets"`
	Interactions      string           `json:"interactions"`
	ExpectedAmountOut string           `json:"expected_amount_out"`
	TransactionInfo   *TransactionInfo `json:"transaction_info,omitempty"`
}

// Load reads and decodes a batch document from disk. Only decoding happens
// here; structural validation of each entry is Parse's job.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}

	var doc Document
	err = json.Unmarshal(content, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode batch file: %w", err)
	}

	return &doc, nil
}
