/*

Swap and bridge builders used by the router for cross-chain hops. Swaps on
the home chain route through the Cetus aggregator; bridging goes over the
Wormhole token bridge in both directions and always carries the settlement
asset.

*/

package venues

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/suivoice/atm/internal/types"
)

const wormholeSuiPackageID = "0x26efee2b51c911237888e5dc6702868abca3c7ac12c53f76ef8eba0697695e3d"

var wormholeBaseBridge = common.HexToAddress("0x8d2de8d2f7F6a6c4b7E7e9BfA8E0fA9a2aF0b9c1")

// BuildSwap builds a same-chain swap between two assets.
func (r *Registry) BuildSwap(chain types.Chain, fromAsset, toAsset string, amountUSD float64) (types.TxHandle, error) {
	if chain != types.ChainSui {
		return types.TxHandle{}, fmt.Errorf("swaps are only routed on the home chain, got %s", chain)
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("swap amount must be positive, got %.2f", amountUSD)
	}
	pair := strings.ToUpper(fromAsset) + "_" + strings.ToUpper(toAsset)
	ref := suiCallRef(cetusPackageID, "router", "swap", pair, suiBaseUnits(fromAsset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: chain, Simulated: r.Simulated()}, nil
}

// BuildBridge builds a bridge transfer of the settlement asset between
// chains. The handle belongs to the source chain, where the transfer is
// initiated.
func (r *Registry) BuildBridge(from, to types.Chain, asset string, amountUSD float64) (types.TxHandle, error) {
	if from == to {
		return types.TxHandle{}, fmt.Errorf("bridge source and destination are both %s", from)
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("bridge amount must be positive, got %.2f", amountUSD)
	}
	if !strings.EqualFold(asset, "USDC") {
		return types.TxHandle{}, fmt.Errorf("bridging settles through USDC only, got %s", asset)
	}

	switch from {
	case types.ChainSui:
		ref := suiCallRef(wormholeSuiPackageID, "token_bridge", "transfer", asset, suiBaseUnits(asset, amountUSD))
		return types.TxHandle{Ref: ref, Chain: from, Simulated: r.Simulated()}, nil
	case types.ChainBase:
		calldata := encodeCall("transferTokens(address,uint256,uint16,bytes32,uint256,uint32)",
			baseUSDC.Bytes(),
			usdcUnits(amountUSD).Bytes(),
		)
		return types.TxHandle{Ref: evmCallRef(wormholeBaseBridge, calldata), Chain: from, Simulated: r.Simulated()}, nil
	default:
		return types.TxHandle{}, fmt.Errorf("unsupported bridge source chain %s", from)
	}
}
