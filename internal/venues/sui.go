/*

Sui venue adapters. A Sui transaction here is a programmable transaction block
targeting one Move entry function; the adapter serializes the target and its
arguments into a canonical payload and derives the handle reference from its
digest. Amounts are expressed in the asset's smallest unit (9 decimals for SUI,
6 for USDC) before serialization.

*/

package venues

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/suivoice/atm/internal/types"
)

// On-chain package IDs for the supported Sui venues.
const (
	safetyVaultPackageID = "0x8f2da3caf4f2b0d8c7e9b64d1a5f0c3e6b9d2a7f4e1c8b5a2d9f6c3e0b7a4d1f"
	naviPackageID        = "0xd899cf7d2b5db716bd2cf55599fb0d5ee38a3061e7b6bb6eebf73fa5bc4c81ca"
	scallopPackageID     = "0xefe8b36d5b2e43728cc268df3043ed679dcb2c4a44a3dc4adba2e0a7a6adb1e4"
	cetusPackageID       = "0x1eabed72c53feb3805120a081dc15963c204dc8d091542592abaf7a35689b2fb"
	bluefinPackageID     = "0x3492c874c1e3b3e2984e8c41b589e642d4d0a5d6459e5a9cfc2d52fd7c89c267"
)

func suiDecimals(asset string) int {
	if strings.EqualFold(asset, "USDC") {
		return 6
	}
	return 9
}

// suiBaseUnits converts a USD-denominated amount into smallest-unit notation.
// Treasury accounting is USD throughout; the 1:1 conversion here is resolved
// to a real oracle quote at submission time.
func suiBaseUnits(asset string, amountUSD float64) uint64 {
	scale := math.Pow10(suiDecimals(asset))
	return uint64(math.Round(amountUSD * scale))
}

// suiCallRef serializes one Move call and returns its digest-based reference.
func suiCallRef(packageID, module, function, asset string, amount uint64) string {
	var buf []byte
	buf = append(buf, []byte(packageID+"::"+module+"::"+function)...)
	buf = append(buf, []byte("|"+strings.ToUpper(asset)+"|")...)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	digest := sha256.Sum256(buf)
	return "sui:" + hex.EncodeToString(digest[:])
}

// safetyVaultAdapter manages the treasury's own safety vault object.
type safetyVaultAdapter struct {
	simulate bool
}

func newSafetyVaultAdapter(simulate bool) *safetyVaultAdapter {
	return &safetyVaultAdapter{simulate: simulate}
}

func (a *safetyVaultAdapter) Venue() types.Venue { return types.VenueVault }
func (a *safetyVaultAdapter) Chain() types.Chain { return types.ChainSui }

func (a *safetyVaultAdapter) BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("vault deposit amount must be positive, got %.2f", amountUSD)
	}
	ref := suiCallRef(safetyVaultPackageID, "vault", "deposit", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}

func (a *safetyVaultAdapter) BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("vault withdrawal amount must be positive, got %.2f", amountUSD)
	}
	ref := suiCallRef(safetyVaultPackageID, "vault", "withdraw", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}

// suiLendingAdapter covers the Sui lending and LP venues, which share the
// same deposit/withdraw entry-function shape.
type suiLendingAdapter struct {
	venue     types.Venue
	packageID string
	simulate  bool
}

func newSuiLendingAdapter(venue types.Venue, packageID string, simulate bool) *suiLendingAdapter {
	return &suiLendingAdapter{venue: venue, packageID: packageID, simulate: simulate}
}

func (a *suiLendingAdapter) Venue() types.Venue { return a.venue }
func (a *suiLendingAdapter) Chain() types.Chain { return types.ChainSui }

func (a *suiLendingAdapter) BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("%s deposit amount must be positive, got %.2f", a.venue, amountUSD)
	}
	ref := suiCallRef(a.packageID, "lending", "deposit", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}

func (a *suiLendingAdapter) BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("%s withdrawal amount must be positive, got %.2f", a.venue, amountUSD)
	}
	ref := suiCallRef(a.packageID, "lending", "withdraw", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}

// suiPerpAdapter covers funding-carry venues. Deposits post margin; the
// delta-neutral short leg is opened in the same transaction block.
type suiPerpAdapter struct {
	venue     types.Venue
	packageID string
	simulate  bool
}

func newSuiPerpAdapter(venue types.Venue, packageID string, simulate bool) *suiPerpAdapter {
	return &suiPerpAdapter{venue: venue, packageID: packageID, simulate: simulate}
}

func (a *suiPerpAdapter) Venue() types.Venue { return a.venue }
func (a *suiPerpAdapter) Chain() types.Chain { return types.ChainSui }

func (a *suiPerpAdapter) BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("%s margin deposit must be positive, got %.2f", a.venue, amountUSD)
	}
	ref := suiCallRef(a.packageID, "perp", "deposit_and_hedge", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}

func (a *suiPerpAdapter) BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error) {
	if amountUSD <= 0 {
		return types.TxHandle{}, fmt.Errorf("%s margin withdrawal must be positive, got %.2f", a.venue, amountUSD)
	}
	ref := suiCallRef(a.packageID, "perp", "unwind_and_withdraw", asset, suiBaseUnits(asset, amountUSD))
	return types.TxHandle{Ref: ref, Chain: types.ChainSui, Simulated: a.simulate}, nil
}
