package main

import (
	"context"
	"fmt"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/pflow-xyz/go-presale/journal"
	"github.com/pflow-xyz/go-presale/presale"
)

// withProcessor replays the journal and hands the caller a processor at
// its tail, with live events logged as they fire.
func withProcessor(c *cli.Context, fn func(*journal.Processor) error) error {
	store, err := journal.NewSQLiteStore(c.GlobalString("journal"))
	if err != nil {
		return err
	}
	defer store.Close()

	proc, err := journal.Replay(context.Background(), store)
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	proc.Dispatcher().Engine().SetSink(presale.SinkFunc(func(evt presale.Event) {
		log.WithField("type", evt.Type).Info("event")
	}))
	return fn(proc)
}

// issue builds one command from the CLI context and processes it.
func issue(c *cli.Context, cmdType string, payload any) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	cmd, err := presale.NewCommand(cmdType, who, clock(c), payload)
	if err != nil {
		return err
	}
	return withProcessor(c, func(proc *journal.Processor) error {
		if err := proc.Process(context.Background(), cmd); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "ok: %s (seq %d)\n", cmdType, proc.Seq())
		return nil
	})
}

var initCommand = cli.Command{
	Name:  "init",
	Usage: "initialize the presale with caps and the round table",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "token", Usage: "project token identifier"},
		cli.Uint64Flag{Name: "soft-cap", Usage: "soft cap, USD 6-decimal units"},
		cli.Uint64Flag{Name: "hard-cap", Usage: "hard cap, USD 6-decimal units"},
		cli.StringSliceFlag{Name: "owner", Usage: "multisig owner (repeat up to 3 times)"},
	},
	Action: func(c *cli.Context) error {
		var owners [3]string
		for i, owner := range c.StringSlice("owner") {
			if i >= len(owners) {
				return fmt.Errorf("at most 3 multisig owners")
			}
			owners[i] = owner
		}
		return issue(c, presale.CmdInitialize, presale.InitializePayload{
			ProjectTokenID: c.String("token"),
			SoftCapUSD:     c.Uint64("soft-cap"),
			HardCapUSD:     c.Uint64("hard-cap"),
			MultisigOwners: owners,
		})
	},
}

var buyCommand = cli.Command{
	Name:  "buy",
	Usage: "purchase tokens in the current round",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "method", Usage: "payment method: eth, usdt, usdc, native"},
		cli.Uint64Flag{Name: "amount", Usage: "payment amount, asset smallest units"},
	},
	Action: func(c *cli.Context) error {
		method, err := presale.ParsePaymentMethod(c.String("method"))
		if err != nil {
			return err
		}
		return issue(c, presale.CmdBuy, presale.BuyPayload{
			Method: method,
			Amount: c.Uint64("amount"),
		})
	},
}

var claimCommand = cli.Command{
	Name:  "claim",
	Usage: "claim vested tokens after a successful sale",
	Action: func(c *cli.Context) error {
		return issue(c, presale.CmdClaim, nil)
	},
}

var refundCommand = cli.Command{
	Name:  "refund",
	Usage: "reclaim the recorded contribution after a failed sale",
	Action: func(c *cli.Context) error {
		return issue(c, presale.CmdRefund, nil)
	},
}

func flagAction(cmdType string) func(*cli.Context) error {
	return func(c *cli.Context) error {
		return issue(c, cmdType, presale.FlagPayload{
			Buyer:  c.String("buyer"),
			Status: !c.Bool("revoke"),
		})
	}
}

var flagFlags = []cli.Flag{
	cli.StringFlag{Name: "buyer", Usage: "buyer principal"},
	cli.BoolFlag{Name: "revoke", Usage: "clear the flag instead of setting it"},
}

var whitelistCommand = cli.Command{
	Name:   "whitelist",
	Usage:  "set or revoke a buyer's whitelist flag (authority only)",
	Flags:  flagFlags,
	Action: flagAction(presale.CmdSetWhitelist),
}

var kycCommand = cli.Command{
	Name:   "kyc",
	Usage:  "set or revoke a buyer's KYC flag (authority only)",
	Flags:  flagFlags,
	Action: flagAction(presale.CmdSetKYC),
}

var priceCommand = cli.Command{
	Name:  "price",
	Usage: "update a payment asset's USD price (authority only)",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "method", Usage: "payment method: eth, usdt, usdc, native"},
		cli.Uint64Flag{Name: "usd", Usage: "price per whole asset, USD 6-decimal units"},
	},
	Action: func(c *cli.Context) error {
		method, err := presale.ParsePaymentMethod(c.String("method"))
		if err != nil {
			return err
		}
		return issue(c, presale.CmdSetPrice, presale.PricePayload{
			Method: method,
			Price:  c.Uint64("usd"),
		})
	},
}

var roundCommand = cli.Command{
	Name:  "round",
	Usage: "select the current round (authority only)",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "name", Usage: "round: private, presale1, presale2"},
	},
	Action: func(c *cli.Context) error {
		round, err := presale.ParseRound(c.String("name"))
		if err != nil {
			return err
		}
		return issue(c, presale.CmdSetRound, presale.RoundPayload{Round: round})
	},
}

var finalizeCommand = cli.Command{
	Name:  "finalize",
	Usage: "close the sale permanently (authority only)",
	Action: func(c *cli.Context) error {
		return issue(c, presale.CmdFinalize, nil)
	},
}

var withdrawCommand = cli.Command{
	Name:  "withdraw",
	Usage: "emergency-withdraw from the native reserve (authority only)",
	Flags: []cli.Flag{
		cli.Uint64Flag{Name: "amount", Usage: "native smallest units"},
	},
	Action: func(c *cli.Context) error {
		return issue(c, presale.CmdEmergencyWithdraw, presale.WithdrawPayload{
			Amount: c.Uint64("amount"),
		})
	},
}
