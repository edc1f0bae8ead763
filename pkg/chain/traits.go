package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TakerTraits bit layout (1inch v6):
//
//	255      MAKER_AMOUNT_FLAG
//	254      UNWRAP_WETH_FLAG
//	253      USE_PERMIT2_FLAG
//	251      ARGS_HAS_TARGET
//	224-247  ARGS_EXTENSION_LENGTH (24 bits)
//	200-223  ARGS_INTERACTION_LENGTH (24 bits)
//	0-184    THRESHOLD
type TakerTraitsOptions struct {
	MakerAmount    bool
	UnwrapWeth     bool
	UsePermit2     bool
	ArgsHasTarget  bool
	ExtensionLen   uint32 // max 24 bits
	InteractionLen uint32 // max 24 bits
	Threshold      *big.Int
}

// BuildTakerTraits packs the options into the uint256 takerTraits word.
func BuildTakerTraits(opts TakerTraitsOptions) *big.Int {
	traits := new(big.Int)

	if opts.MakerAmount {
		traits.SetBit(traits, 255, 1)
	}
	if opts.UnwrapWeth {
		traits.SetBit(traits, 254, 1)
	}
	if opts.UsePermit2 {
		traits.SetBit(traits, 253, 1)
	}
	if opts.ArgsHasTarget {
		traits.SetBit(traits, 251, 1)
	}

	extLen := new(big.Int).SetUint64(uint64(opts.ExtensionLen) & 0xFFFFFF)
	traits.Or(traits, extLen.Lsh(extLen, 224))

	intLen := new(big.Int).SetUint64(uint64(opts.InteractionLen) & 0xFFFFFF)
	traits.Or(traits, intLen.Lsh(intLen, 200))

	if opts.Threshold != nil {
		mask := new(big.Int).Lsh(big.NewInt(1), 185)
		mask.Sub(mask, big.NewInt(1))
		traits.Or(traits, new(big.Int).And(opts.Threshold, mask))
	}

	return traits
}

// BuildFillOrderArgs assembles the args blob for fillOrderArgs:
// [target?][extension][interaction]. Lengths must match the corresponding
// fields in takerTraits for the router to slice it correctly.
func BuildFillOrderArgs(target *common.Address, extension, interaction []byte) []byte {
	args := make([]byte, 0, 20+len(extension)+len(interaction))

	if target != nil {
		args = append(args, target.Bytes()...)
	}

	args = append(args, extension...)
	args = append(args, interaction...)

	return args
}
