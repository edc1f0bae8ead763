package batch

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the two operation variants.
type Kind string

const (
	KindSwap  Kind = "swap"
	KindOrder Kind = "order"
)

// Protocol identifies the DEX a swap routes through.
type Protocol string

const (
	ProtocolUniswapV2 Protocol = "Univ2"
	ProtocolUniswapV3 Protocol = "Univ3"
	ProtocolPancakeV2 Protocol = "PancakeV2"
	ProtocolPancakeV3 Protocol = "PancakeV3"
	ProtocolOneInch   Protocol = "OneInch"
)

// Router addresses on BSC mainnet, the chain the fork snapshots.
var protocolRouters = map[Protocol]common.Address{
	ProtocolUniswapV2: common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
	ProtocolPancakeV2: common.HexToAddress("0x10ED43C718714eb63d5aA57B78B54704E256024E"),
	ProtocolUniswapV3: common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14"),
	ProtocolPancakeV3: common.HexToAddress("0x1b81D678ffb9C0263b24A97847620C99d213eB14"),
	ProtocolOneInch:   common.HexToAddress("0x111111125421ca6dc452d289314280a0f8842a65"),
}

// ParseProtocol maps a document protocol tag to a known Protocol.
func ParseProtocol(s string) (Protocol, bool) {
	p := Protocol(s)
	_, ok := protocolRouters[p]
	return p, ok
}

// Router returns the router contract for the protocol.
func (p Protocol) Router() (common.Address, bool) {
	addr, ok := protocolRouters[p]
	return addr, ok
}

// ConstantProduct reports whether the protocol is a V2-style pool the swap
// pipeline can execute.
func (p Protocol) ConstantProduct() bool {
	return p == ProtocolUniswapV2 || p == ProtocolPancakeV2
}

// OneInchRouter is the limit order protocol router used for order fills.
func OneInchRouter() common.Address {
	return protocolRouters[ProtocolOneInch]
}

// Operation is a closed tagged union of the two operation kinds. Exactly one
// of Swap and Order is set, matching Kind. Operations are immutable value
// objects: constructed once by Parse, read-only afterwards.
type Operation struct {
	ID    string // fresh execution identity; retries are new Operations
	Kind  Kind
	Swap  *SwapOperation
	Order *OrderOperation
	Info  *TransactionInfo
}

// SwapOperation is a validated pool-based swap descriptor.
type SwapOperation struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Pool              common.Address
	AmountIn          *big.Int
	ExpectedAmountOut *big.Int
	Fee               uint32
	Protocol          Protocol
}

// OrderOperation is a validated signed limit order descriptor. The signature
// is opaque here: the chain, not this process, decides whether it verifies.
type OrderOperation struct {
	Salt              *big.Int
	Maker             common.Address
	Receiver          common.Address // zero address: pay the maker
	AllowedSender     common.Address // zero address: anyone may fill
	MakerAsset        common.Address
	TakerAsset        common.Address
	MakingAmount      *big.Int
	TakingAmount      *big.Int
	MakerTraits       *big.Int
	Signature         []byte
	FillAmount        *big.Int
	TakerTraits       *big.Int
	Offsets           *big.Int
	Interactions      []byte
	ExpectedAmountOut *big.Int
}

// Item is one batch entry: either a parsed Operation or the parse error that
// rejected it. Malformed entries stay in the batch so the report preserves
// insertion order and drops nothing.
type Item struct {
	Kind Kind
	Op   *Operation
	Err  error
	Info *TransactionInfo
}

// Batch is an ordered sequence of items. Insertion order (swaps in document
// order, then orders in document order) is execution and reporting order.
type Batch struct {
	Block     uint64 // block the source transactions landed in
	ForkBlock uint64 // snapshot point: Block-1, the pre-transaction state
	Items     []Item
}
