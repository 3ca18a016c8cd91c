/*

Base (EVM) venue adapters. Calldata is ABI-encoded by hand: 4-byte Keccak
selector followed by 32-byte left-padded arguments, which is all the supported
lending calls need. The handle reference is the Keccak digest of target plus
calldata, stable for a given (venue, asset, amount) tuple.

*/

package venues

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/suivoice/atm/internal/types"
)

// Base mainnet contract addresses.
var (
	baseUSDC         = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	aavePoolBase     = common.HexToAddress("0xA238Dd80C259a72e81d7e4664a9801593F98d1c5")
	moonwellUSDCBase = common.HexToAddress("0xEdc817A28E8B93B03976FBd4a3dDBc9f7D176c22")
	treasuryOnBase   = common.HexToAddress("0x6B1745fCC416cA7d2D2f9Fdd2f59d88b3893a78A")
)

const usdcDecimals = 6

// usdcUnits converts a USD amount to USDC base units. USDC is treated as
// exactly one dollar; bridging always settles through it.
func usdcUnits(amountUSD float64) *big.Int {
	scaled := amountUSD * math.Pow10(usdcDecimals)
	units, _ := big.NewFloat(scaled).Int(nil)
	return units
}

// selector returns the 4-byte function selector for a Solidity signature.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// encodeCall builds calldata from a selector and 32-byte-padded arguments.
func encodeCall(signature string, args ...[]byte) []byte {
	data := selector(signature)
	for _, arg := range args {
		data = append(data, common.LeftPadBytes(arg, 32)...)
	}
	return data
}

// evmCallRef derives the handle reference for a built call.
func evmCallRef(target common.Address, calldata []byte) string {
	return "base:" + hexutil.Encode(crypto.Keccak256(append(target.Bytes(), calldata...)))
}

func requireUSDC(venue types.Venue, asset string) error {
	if !strings.EqualFold(asset, "USDC") {
		return fmt.Errorf("%s on base only accepts USDC, got %s", venue, asset)
	}
	return nil
}

// aaveAdapter targets the Aave v3 Pool on Base.
type aaveAdapter struct {
	simulate bool
}

func newAaveAdapter(simulate bool) *aaveAdapter {
	return &aaveAdapter{simulate: simulate}
}

func (a *aaveAdapter) Venue() types.Venue { return types.VenueAave }
func (a *aaveAdapter) Chain() types.Chain { return types.ChainBase }

func (a *aaveAdapter) BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error) {
	if err := requireUSDC(types.VenueAave, asset); err != nil {
		return types.TxHandle{}, err
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("aave deposit amount must be positive, got %.2f", amountUSD)
	}
	calldata := encodeCall("supply(address,uint256,address,uint16)",
		baseUSDC.Bytes(),
		usdcUnits(amountUSD).Bytes(),
		treasuryOnBase.Bytes(),
		big.NewInt(0).Bytes(),
	)
	return types.TxHandle{Ref: evmCallRef(aavePoolBase, calldata), Chain: types.ChainBase, Simulated: a.simulate}, nil
}

func (a *aaveAdapter) BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error) {
	if err := requireUSDC(types.VenueAave, asset); err != nil {
		return types.TxHandle{}, err
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("aave withdrawal amount must be positive, got %.2f", amountUSD)
	}
	calldata := encodeCall("withdraw(address,uint256,address)",
		baseUSDC.Bytes(),
		usdcUnits(amountUSD).Bytes(),
		treasuryOnBase.Bytes(),
	)
	return types.TxHandle{Ref: evmCallRef(aavePoolBase, calldata), Chain: types.ChainBase, Simulated: a.simulate}, nil
}

// moonwellAdapter targets the Moonwell USDC market, a Compound-style mToken.
type moonwellAdapter struct {
	simulate bool
}

func newMoonwellAdapter(simulate bool) *moonwellAdapter {
	return &moonwellAdapter{simulate: simulate}
}

func (a *moonwellAdapter) Venue() types.Venue { return types.VenueMoonwell }
func (a *moonwellAdapter) Chain() types.Chain { return types.ChainBase }

func (a *moonwellAdapter) BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error) {
	if err := requireUSDC(types.VenueMoonwell, asset); err != nil {
		return types.TxHandle{}, err
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("moonwell deposit amount must be positive, got %.2f", amountUSD)
	}
	calldata := encodeCall("mint(uint256)", usdcUnits(amountUSD).Bytes())
	return types.TxHandle{Ref: evmCallRef(moonwellUSDCBase, calldata), Chain: types.ChainBase, Simulated: a.simulate}, nil
}

func (a *moonwellAdapter) BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error) {
	if err := requireUSDC(types.VenueMoonwell, asset); err != nil {
		return types.TxHandle{}, err
	}
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("moonwell withdrawal amount must be positive, got %.2f", amountUSD)
	}
	calldata := encodeCall("redeemUnderlying(uint256)", usdcUnits(amountUSD).Bytes())
	return types.TxHandle{Ref: evmCallRef(moonwellUSDCBase, calldata), Chain: types.ChainBase, Simulated: a.simulate}, nil
}
