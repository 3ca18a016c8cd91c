/*

This file contains the types describing executable actions produced by the
protocol router, and the transaction handles returned by chain adapters.

*/

package types

import "time"

// StepType defines the low-level operations a routed action decomposes into.
type StepType string

const (
	StepDeposit  StepType = "DEPOSIT"
	StepWithdraw StepType = "WITHDRAW"
	StepSwap     StepType = "SWAP"
	StepBridge   StepType = "BRIDGE"
)

// TxHandle is the opaque handle a chain adapter returns for a built
// transaction. Simulated handles describe a dry run that was never submitted.
type TxHandle struct {
	Ref       string `json:"ref"`
	Chain     Chain  `json:"chain"`
	Simulated bool   `json:"simulated"`
}

// ActionStep is a single executable hop of a routed action.
type ActionStep struct {
	Type        StepType `json:"type"`
	Chain       Chain    `json:"chain"`
	Venue       Venue    `json:"venue,omitempty"`
	Asset       string   `json:"asset"`
	AmountUSD   float64  `json:"amount_usd"`
	Description string   `json:"description"`
	Tx          TxHandle `json:"tx"`
}

// ActionDescriptor is the router's fully resolved execution plan for one
// deposit or withdrawal, possibly spanning a cross-chain hop.
type ActionDescriptor struct {
	Venue       Venue        `json:"venue"`
	Chain       Chain        `json:"chain"`
	Steps       []ActionStep `json:"steps"`
	Description string       `json:"description"`
	IsSimulated bool         `json:"is_simulated"`
	BuiltAt     time.Time    `json:"built_at"`
}

// TxRef returns the handle of the final step, which is the one that touches
// the target venue.
func (d ActionDescriptor) TxRef() string {
	if len(d.Steps) == 0 {
		return ""
	}
	return d.Steps[len(d.Steps)-1].Tx.Ref
}
