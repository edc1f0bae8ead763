package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LimitOrder mirrors the 1inch v6 OrderLib.Order struct. Address fields are
// packed into full uint256 words on the wire; a zero Receiver is the
// protocol's own sentinel for "pay the maker" and must never be treated as a
// transfer target.
type LimitOrder struct {
	Salt         *big.Int
	Maker        common.Address
	Receiver     common.Address
	MakerAsset   common.Address
	TakerAsset   common.Address
	MakingAmount *big.Int
	TakingAmount *big.Int
	MakerTraits  *big.Int
}

// orderWords is the all-uint256 tuple shape the router ABI expects. Field
// names line up with the ABI component names for go-ethereum's packer.
type orderWords struct {
	Salt         *big.Int
	Maker        *big.Int
	Receiver     *big.Int
	MakerAsset   *big.Int
	TakerAsset   *big.Int
	MakingAmount *big.Int
	TakingAmount *big.Int
	MakerTraits  *big.Int
}

func (o LimitOrder) words() orderWords {
	return orderWords{
		Salt:         o.Salt,
		Maker:        PackAddress(o.Maker),
		Receiver:     PackAddress(o.Receiver),
		MakerAsset:   PackAddress(o.MakerAsset),
		TakerAsset:   PackAddress(o.TakerAsset),
		MakingAmount: o.MakingAmount,
		TakingAmount: o.TakingAmount,
		MakerTraits:  o.MakerTraits,
	}
}

// PackAddress widens a 20-byte address into the uint256 word the limit order
// protocol uses for address-typed order fields.
func PackAddress(addr common.Address) *big.Int {
	return new(big.Int).SetBytes(addr.Bytes())
}

// UnpackAddress recovers an address from a packed uint256 word (low 20 bytes).
func UnpackAddress(word *big.Int) common.Address {
	return common.BytesToAddress(word.Bytes())
}

// Signature is the compact r/vs form consumed by the limit order router:
// vs = s | (v-27)<<255.
type Signature struct {
	R  [32]byte
	VS [32]byte
}

// SplitSignature converts a 65-byte r||s||v signature into compact r/vs form.
// Signatures of any other length are packed byte-for-byte into r then vs and
// forwarded as-is: signature validity is the chain's call, not ours, so a
// placeholder signature must still reach the router and fail there.
func SplitSignature(sig []byte) Signature {
	var out Signature

	if len(sig) == 65 {
		copy(out.R[:], sig[:32])
		copy(out.VS[:], sig[32:64])
		if sig[64] >= 28 || sig[64] == 1 {
			out.VS[0] |= 0x80
		}
		return out
	}

	n := copy(out.R[:], sig)
	if n < len(sig) {
		copy(out.VS[:], sig[n:])
	}

	return out
}

func (s Signature) String() string {
	return fmt.Sprintf("r=0x%x vs=0x%x", s.R, s.VS)
}
