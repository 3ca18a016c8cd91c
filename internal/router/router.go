/*

ProtocolRouter: turns a venue named in free text plus an amount into a fully
resolved execution plan. Resolution is table driven off the synonym registry;
the router never guesses, an unrecognized name is an error surfaced verbatim
to the caller. Cross-chain deposits decompose into swap, bridge and deposit
steps; every step carries its own built transaction handle.

*/

package router

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suivoice/atm/internal/config"
	"github.com/suivoice/atm/internal/types"
	"github.com/suivoice/atm/internal/venues"
)

// ErrUnknownVenue is returned when a free-text name resolves to nothing.
// Callers surface it to the user instead of falling back to a default venue.
var ErrUnknownVenue = errors.New("unknown venue")

// Router resolves venue names and builds execution plans.
type Router struct {
	registry *venues.Registry
	logger   zerolog.Logger
}

func New(registry *venues.Registry, logger zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		logger:   logger.With().Str("component", "router").Logger(),
	}
}

// Resolve maps a free-text venue name to its canonical identifier.
// Matching is case-insensitive over the synonym table.
func (r *Router) Resolve(name string) (types.Venue, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", fmt.Errorf("%w: empty venue name", ErrUnknownVenue)
	}
	venue, ok := config.VenueSynonyms[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownVenue, name)
	}
	return venue, nil
}

// BuildDeposit plans a deposit of amountUSD into the named venue. For venues
// off the home chain the plan swaps into the settlement asset, bridges, and
// deposits on the far side.
func (r *Router) BuildDeposit(venue types.Venue, asset string, amountUSD float64) (types.ActionDescriptor, error) {
	if amountUSD <= 0 {
		return types.ActionDescriptor{}, fmt.Errorf("deposit amount must be positive, got %.2f", amountUSD)
	}
	adapter, err := r.registry.Get(venue)
	if err != nil {
		return types.ActionDescriptor{}, err
	}

	targetChain := adapter.Chain()
	desc := types.ActionDescriptor{
		Venue:       venue,
		Chain:       targetChain,
		IsSimulated: r.registry.Simulated(),
		BuiltAt:     time.Now().UTC(),
	}

	if targetChain != types.ChainSui {
		// Settle through USDC before leaving the home chain.
		if !strings.EqualFold(asset, config.SettlementAsset) {
			swapTx, err := r.registry.BuildSwap(types.ChainSui, asset, config.SettlementAsset, amountUSD)
			if err != nil {
				return types.ActionDescriptor{}, fmt.Errorf("building swap leg: %w", err)
			}
			desc.Steps = append(desc.Steps, types.ActionStep{
				Type:        types.StepSwap,
				Chain:       types.ChainSui,
				Asset:       asset,
				AmountUSD:   amountUSD,
				Description: fmt.Sprintf("swap $%.2f of %s to %s on sui", amountUSD, asset, config.SettlementAsset),
				Tx:          swapTx,
			})
			asset = config.SettlementAsset
		}

		bridgeTx, err := r.registry.BuildBridge(types.ChainSui, targetChain, asset, amountUSD)
		if err != nil {
			return types.ActionDescriptor{}, fmt.Errorf("building bridge leg: %w", err)
		}
		desc.Steps = append(desc.Steps, types.ActionStep{
			Type:        types.StepBridge,
			Chain:       types.ChainSui,
			Asset:       asset,
			AmountUSD:   amountUSD,
			Description: fmt.Sprintf("bridge $%.2f %s from sui to %s", amountUSD, asset, targetChain),
			Tx:          bridgeTx,
		})
	}

	depositTx, err := adapter.BuildDeposit(asset, amountUSD)
	if err != nil {
		return types.ActionDescriptor{}, fmt.Errorf("building deposit into %s: %w", venue, err)
	}
	desc.Steps = append(desc.Steps, types.ActionStep{
		Type:        types.StepDeposit,
		Chain:       targetChain,
		Venue:       venue,
		Asset:       asset,
		AmountUSD:   amountUSD,
		Description: fmt.Sprintf("deposit $%.2f %s into %s on %s", amountUSD, asset, venue, targetChain),
		Tx:          depositTx,
	})

	desc.Description = fmt.Sprintf("deposit $%.2f into %s (%d step plan)", amountUSD, venue, len(desc.Steps))
	r.logger.Debug().Str("venue", string(venue)).Float64("amount_usd", amountUSD).
		Int("steps", len(desc.Steps)).Bool("simulated", desc.IsSimulated).Msg("Built deposit plan")
	return desc, nil
}

// BuildWithdraw plans a withdrawal of amountUSD from the named venue back to
// the home chain. Cross-chain withdrawals bridge home after exiting the venue.
func (r *Router) BuildWithdraw(venue types.Venue, asset string, amountUSD float64) (types.ActionDescriptor, error) {
	if amountUSD <= 0 {
		return types.ActionDescriptor{}, fmt.Errorf("withdrawal amount must be positive, got %.2f", amountUSD)
	}
	adapter, err := r.registry.Get(venue)
	if err != nil {
		return types.ActionDescriptor{}, err
	}

	sourceChain := adapter.Chain()
	desc := types.ActionDescriptor{
		Venue:       venue,
		Chain:       sourceChain,
		IsSimulated: r.registry.Simulated(),
		BuiltAt:     time.Now().UTC(),
	}

	withdrawTx, err := adapter.BuildWithdraw(asset, amountUSD)
	if err != nil {
		return types.ActionDescriptor{}, fmt.Errorf("building withdrawal from %s: %w", venue, err)
	}
	desc.Steps = append(desc.Steps, types.ActionStep{
		Type:        types.StepWithdraw,
		Chain:       sourceChain,
		Venue:       venue,
		Asset:       asset,
		AmountUSD:   amountUSD,
		Description: fmt.Sprintf("withdraw $%.2f %s from %s on %s", amountUSD, asset, venue, sourceChain),
		Tx:          withdrawTx,
	})

	if sourceChain != types.ChainSui {
		bridgeTx, err := r.registry.BuildBridge(sourceChain, types.ChainSui, config.SettlementAsset, amountUSD)
		if err != nil {
			return types.ActionDescriptor{}, fmt.Errorf("building return bridge leg: %w", err)
		}
		desc.Steps = append(desc.Steps, types.ActionStep{
			Type:        types.StepBridge,
			Chain:       sourceChain,
			Asset:       config.SettlementAsset,
			AmountUSD:   amountUSD,
			Description: fmt.Sprintf("bridge $%.2f %s from %s back to sui", amountUSD, config.SettlementAsset, sourceChain),
			Tx:          bridgeTx,
		})
	}

	desc.Description = fmt.Sprintf("withdraw $%.2f from %s (%d step plan)", amountUSD, venue, len(desc.Steps))
	r.logger.Debug().Str("venue", string(venue)).Float64("amount_usd", amountUSD).
		Int("steps", len(desc.Steps)).Bool("simulated", desc.IsSimulated).Msg("Built withdrawal plan")
	return desc, nil
}
