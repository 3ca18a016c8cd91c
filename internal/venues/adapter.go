/*

This package holds the per-venue transaction builders. An Adapter turns an
abstract "deposit X USD of asset A" into a chain-specific payload and returns
an opaque handle for it. Adapters never decide anything; sizing and venue
selection happen upstream in the policy and the router.

On any network other than mainnet every handle is marked Simulated and nothing
is ever submitted.

*/

package venues

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/suivoice/atm/internal/types"
)

// Adapter builds deposit and withdrawal transactions for one venue.
type Adapter interface {
	Venue() types.Venue
	Chain() types.Chain
	BuildDeposit(asset string, amountUSD float64) (types.TxHandle, error)
	BuildWithdraw(asset string, amountUSD float64) (types.TxHandle, error)
}

// Registry resolves canonical venues to their adapters.
type Registry struct {
	network  string
	adapters map[types.Venue]Adapter
	logger   zerolog.Logger
}

// NewRegistry wires up every supported venue. Simulation is decided once,
// here, from the network name; individual adapters never re-check it.
func NewRegistry(network string, logger zerolog.Logger) *Registry {
	simulate := network != "mainnet"

	r := &Registry{
		network:  network,
		adapters: make(map[types.Venue]Adapter),
		logger:   logger.With().Str("component", "venues").Logger(),
	}

	for _, a := range []Adapter{
		newSafetyVaultAdapter(simulate),
		newSuiLendingAdapter(types.VenueNavi, naviPackageID, simulate),
		newSuiLendingAdapter(types.VenueScallop, scallopPackageID, simulate),
		newSuiLendingAdapter(types.VenueCetus, cetusPackageID, simulate),
		newSuiPerpAdapter(types.VenueBluefin, bluefinPackageID, simulate),
		newAaveAdapter(simulate),
		newMoonwellAdapter(simulate),
	} {
		r.adapters[a.Venue()] = a
	}

	if simulate {
		r.logger.Info().Str("network", network).Msg("Venue registry in simulation mode, no transactions will be submitted")
	}
	return r
}

// Get returns the adapter for a canonical venue.
func (r *Registry) Get(venue types.Venue) (Adapter, error) {
	a, ok := r.adapters[venue]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for venue %s", venue)
	}
	return a, nil
}

// Simulated reports whether the registry was built for a non-mainnet network.
func (r *Registry) Simulated() bool {
	return r.network != "mainnet"
}
