// Command presale administers a token presale backed by a command
// journal. Every state-changing subcommand replays the journal, applies
// one command, and appends it; query subcommands are read-only.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"
)

var log = logrus.New()

var (
	journalFlag = cli.StringFlag{
		Name:   "journal",
		Usage:  "path to the journal database",
		EnvVar: "PRESALE_JOURNAL",
		Value:  "presale.db",
	}
	callerFlag = cli.StringFlag{
		Name:   "caller",
		Usage:  "principal issuing the command",
		EnvVar: "PRESALE_CALLER",
	}
	nowFlag = cli.Int64Flag{
		Name:  "now",
		Usage: "override the command clock (unix seconds)",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "enable debug logging",
	}
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env")
	}

	app := cli.NewApp()
	app.Name = "presale"
	app.Usage = "multi-round token presale over a command journal"
	app.Version = "1.0.0"
	app.Writer = os.Stdout
	app.Flags = []cli.Flag{journalFlag, callerFlag, nowFlag, verboseFlag}
	app.Before = func(c *cli.Context) error {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if c.GlobalBool("verbose") {
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}

	app.Commands = []cli.Command{
		initCommand,
		buyCommand,
		claimCommand,
		refundCommand,
		whitelistCommand,
		kycCommand,
		priceCommand,
		roundCommand,
		finalizeCommand,
		withdrawCommand,
		statusCommand,
		buyersCommand,
		eventsCommand,
		summaryCommand,
		commitCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// clock returns the command clock: --now when set, wall clock otherwise.
func clock(c *cli.Context) int64 {
	if now := c.GlobalInt64("now"); now != 0 {
		return now
	}
	return time.Now().Unix()
}

// caller returns the issuing principal or fails the command.
func caller(c *cli.Context) (string, error) {
	id := c.GlobalString("caller")
	if id == "" {
		return "", fmt.Errorf("--caller (or PRESALE_CALLER) is required")
	}
	return id, nil
}
