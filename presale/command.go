package presale

import (
	"encoding/json"
	"fmt"
)

// Command type names. These are the wire contract between the host, the
// dispatcher, and the journal.
const (
	CmdInitialize        = "initialize"
	CmdBuy               = "buy"
	CmdClaim             = "claim"
	CmdRefund            = "refund"
	CmdSetWhitelist      = "set_whitelist"
	CmdSetKYC            = "set_kyc"
	CmdSetPrice          = "set_price"
	CmdSetRound          = "set_round"
	CmdFinalize          = "finalize"
	CmdEmergencyWithdraw = "emergency_withdraw"
)

// Command is one authenticated operation against the presale. Caller is
// the already-authenticated principal; Now is the host clock, required
// to be non-decreasing across commands touching the same buyer.
type Command struct {
	Type    string          `json:"type"`
	Caller  string          `json:"caller"`
	Now     int64           `json:"now"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitializePayload carries the constructor parameters.
type InitializePayload struct {
	ProjectTokenID string    `json:"projectTokenId"`
	SoftCapUSD     uint64    `json:"softCapUsd"`
	HardCapUSD     uint64    `json:"hardCapUsd"`
	MultisigOwners [3]string `json:"multisigOwners"`
}

// BuyPayload carries a purchase.
type BuyPayload struct {
	Method PaymentMethod `json:"method"`
	Amount uint64        `json:"amount"` // asset smallest units
}

// FlagPayload carries a whitelist or KYC update.
type FlagPayload struct {
	Buyer  string `json:"buyer"`
	Status bool   `json:"status"`
}

// PricePayload carries a price-feed update.
type PricePayload struct {
	Method PaymentMethod `json:"method"`
	Price  uint64        `json:"price"`
}

// RoundPayload carries a round selection.
type RoundPayload struct {
	Round Round `json:"round"`
}

// WithdrawPayload carries an emergency withdrawal.
type WithdrawPayload struct {
	Amount uint64 `json:"amount"` // native smallest units
}

// NewCommand builds a Command with a JSON-encoded payload.
func NewCommand(cmdType, caller string, now int64, payload any) (Command, error) {
	cmd := Command{Type: cmdType, Caller: caller, Now: now}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Command{}, fmt.Errorf("encode %s payload: %w", cmdType, err)
		}
		cmd.Payload = raw
	}
	return cmd, nil
}

// Dispatcher authenticates and routes commands to the engine. Admin
// commands require the caller to be the recorded authority; buyer
// commands act on the caller's own ledger entry.
type Dispatcher struct {
	engine *Engine
}

// NewDispatcher wraps an engine.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Engine exposes the wrapped engine for state reads.
func (d *Dispatcher) Engine() *Engine {
	return d.engine
}

func (d *Dispatcher) requireAuthority(caller string) error {
	if !d.engine.Initialized() {
		return ErrNotInitialized
	}
	st := d.engine.State()
	if caller != st.Authority {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

func decode[P any](cmd Command) (P, error) {
	var p P
	if len(cmd.Payload) == 0 {
		return p, fmt.Errorf("%s: missing payload", cmd.Type)
	}
	if err := json.Unmarshal(cmd.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", cmd.Type, err)
	}
	return p, nil
}

// Dispatch executes one command to completion. A returned error implies
// zero state mutation and zero events.
func (d *Dispatcher) Dispatch(cmd Command) error {
	switch cmd.Type {
	case CmdInitialize:
		p, err := decode[InitializePayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.Initialize(cmd.Caller, p.ProjectTokenID, p.SoftCapUSD, p.HardCapUSD, p.MultisigOwners, cmd.Now)

	case CmdBuy:
		p, err := decode[BuyPayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.Buy(cmd.Caller, p.Method, p.Amount, cmd.Now)

	case CmdClaim:
		_, err := d.engine.Claim(cmd.Caller, cmd.Now)
		return err

	case CmdRefund:
		_, err := d.engine.Refund(cmd.Caller, cmd.Now)
		return err

	case CmdSetWhitelist:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		p, err := decode[FlagPayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.SetWhitelist(p.Buyer, p.Status)

	case CmdSetKYC:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		p, err := decode[FlagPayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.SetKYC(p.Buyer, p.Status)

	case CmdSetPrice:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		p, err := decode[PricePayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.SetPrice(p.Method, p.Price)

	case CmdSetRound:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		p, err := decode[RoundPayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.SetRound(p.Round, cmd.Now)

	case CmdFinalize:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		return d.engine.Finalize(cmd.Now)

	case CmdEmergencyWithdraw:
		if err := d.requireAuthority(cmd.Caller); err != nil {
			return err
		}
		p, err := decode[WithdrawPayload](cmd)
		if err != nil {
			return err
		}
		return d.engine.EmergencyWithdraw(p.Amount, cmd.Now)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
}
