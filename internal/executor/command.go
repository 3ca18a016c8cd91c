/*

Typed command surface. Voice transcripts, API calls and replayed offline
intents all arrive as (function name, JSON args) pairs; ParseCommand turns
them into a closed Command value or rejects them outright. Validation lives
here so no side effect can start from malformed input.

*/

package executor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CommandKind enumerates every function the executor can dispatch. The set
// is closed; Execute switches exhaustively over it.
type CommandKind string

const (
	CmdSafetyDeposit  CommandKind = "safety_deposit"
	CmdYieldWithdraw  CommandKind = "yield_withdraw"
	CmdRebalance      CommandKind = "rebalance"
	CmdRiskAssessment CommandKind = "risk_assessment"
	CmdTreasuryState  CommandKind = "treasury_state"
)

// Command is one validated, dispatchable user command.
type Command struct {
	Kind           CommandKind
	VenueName      string  // free text, resolved by the router at execution time
	AmountUSD      float64 // required for deposit and withdrawal kinds
	IdempotencyKey string  // set for replayed offline intents
}

type commandArgs struct {
	AmountUSD      float64 `json:"amount_usd"`
	Venue          string  `json:"venue"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// ParseCommand validates a raw (name, args) pair into a Command.
func ParseCommand(name string, rawArgs json.RawMessage) (Command, error) {
	kind := CommandKind(strings.ToLower(strings.TrimSpace(name)))

	var args commandArgs
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return Command{}, fmt.Errorf("invalid args for %s: %w", name, err)
		}
	}

	cmd := Command{
		Kind:           kind,
		VenueName:      strings.TrimSpace(args.Venue),
		AmountUSD:      args.AmountUSD,
		IdempotencyKey: strings.TrimSpace(args.IdempotencyKey),
	}

	switch kind {
	case CmdSafetyDeposit:
		if cmd.AmountUSD <= 0 {
			return Command{}, fmt.Errorf("%s requires a positive amount_usd, got %.2f", kind, cmd.AmountUSD)
		}
	case CmdYieldWithdraw:
		if cmd.VenueName == "" {
			return Command{}, fmt.Errorf("%s requires a venue", kind)
		}
		if cmd.AmountUSD <= 0 {
			return Command{}, fmt.Errorf("%s requires a positive amount_usd, got %.2f", kind, cmd.AmountUSD)
		}
	case CmdRebalance, CmdRiskAssessment, CmdTreasuryState:
		// No required arguments.
	default:
		return Command{}, fmt.Errorf("unknown command %q", name)
	}

	return cmd, nil
}
