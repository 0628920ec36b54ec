// Command zkvctl drives a zkvault server from the command line.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "zkvctl",
		Usage: "operate a zkvault confidential ledger and staking vault",
		Flags: []cli.Flag{
			apiFlag,
			timeoutFlag,
		},
		Commands: []*cli.Command{
			commandAddresses,
			commandLogin,
			commandMint,
			commandStake,
			commandPosition,
			commandWithdraw,
		},
	}
}

// Commonly used command line flags.
var (
	apiFlag = &cli.StringFlag{
		Name:    "api",
		Usage:   "base URL of the zkvault server",
		Value:   "http://localhost:8080",
		EnvVars: []string{"ZKV_API"},
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "HTTP request timeout",
		Value: 15 * time.Second,
	}
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "hex secp256k1 private key of the account",
		EnvVars:  []string{"ZKV_KEY"},
		Required: true,
	}
)

func clientFrom(ctx *cli.Context) *client {
	return newClient(ctx.String(apiFlag.Name), &http.Client{Timeout: ctx.Duration(timeoutFlag.Name)})
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
