package main

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"time"

	"zkvault/internal/adapter/http/dto"
	"zkvault/internal/core/domain"
	"zkvault/pkg/numfmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
)

var (
	optionalKeyFlag = &cli.StringFlag{
		Name:    "key",
		Usage:   "hex secp256k1 private key; also decrypts what the account may read",
		EnvVars: []string{"ZKV_KEY"},
	}
	accessKeyFlag = &cli.StringFlag{
		Name:     "access-key",
		Usage:    "issuer access key",
		EnvVars:  []string{"ZKV_ISSUER_ACCESS_KEY"},
		Required: true,
	}
	secretFlag = &cli.StringFlag{
		Name:     "secret",
		Usage:    "issuer HMAC secret",
		EnvVars:  []string{"ZKV_ISSUER_SECRET"},
		Required: true,
	}
	toFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "recipient account",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "plaintext amount in base units",
		Required: true,
	}
	lockFlag = &cli.StringFlag{
		Name:     "lock",
		Usage:    "lock duration in seconds",
		Required: true,
	}
)

var commandAddresses = &cli.Command{
	Name:  "addresses",
	Usage: "print the token and vault addresses",
	Flags: []cli.Flag{optionalKeyFlag},
	Action: func(ctx *cli.Context) error {
		token, err := clientFrom(ctx).tokenInfo(ctx.Context)
		if err != nil {
			return err
		}

		w := ctx.App.Writer
		fmt.Fprintf(w, "Token:        %s (%s, %d decimals)\n", token.Address, token.Symbol, token.Decimals)
		fmt.Fprintf(w, "Vault:        %s\n", token.VaultAddress)
		fmt.Fprintf(w, "Total supply: %s\n", token.TotalSupply)

		if raw := ctx.String(optionalKeyFlag.Name); raw != "" {
			key, err := parseKey(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Account:      %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
		}
		return nil
	},
}

var commandLogin = &cli.Command{
	Name:  "login",
	Usage: "obtain a bearer token for an account",
	Flags: []cli.Flag{keyFlag},
	Action: func(ctx *cli.Context) error {
		key, err := parseKey(ctx.String(keyFlag.Name))
		if err != nil {
			return err
		}
		out, err := clientFrom(ctx).login(ctx.Context, key)
		if err != nil {
			return err
		}

		w := ctx.App.Writer
		fmt.Fprintf(w, "Account: %s\n", out.Account)
		fmt.Fprintf(w, "Expires: %s\n", time.Unix(out.Expiry, 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "Token:   %s\n", out.Token)
		return nil
	},
}

var commandMint = &cli.Command{
	Name:  "mint",
	Usage: "mint tokens to an account as the issuer",
	Flags: []cli.Flag{accessKeyFlag, secretFlag, toFlag, amountFlag},
	Action: func(ctx *cli.Context) error {
		to, err := domain.ParseAccount(ctx.String(toFlag.Name))
		if err != nil {
			return err
		}
		amount, err := numfmt.ParseUint64(ctx.String(amountFlag.Name))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}

		receipt, err := clientFrom(ctx).mint(ctx.Context, ctx.String(accessKeyFlag.Name), ctx.String(secretFlag.Name), to, amount)
		if err != nil {
			return err
		}
		printReceipt(ctx, receipt)
		return nil
	},
}

var commandStake = &cli.Command{
	Name:  "stake",
	Usage: "lock tokens in the vault",
	Flags: []cli.Flag{keyFlag, amountFlag, lockFlag},
	Action: func(ctx *cli.Context) error {
		key, err := parseKey(ctx.String(keyFlag.Name))
		if err != nil {
			return err
		}
		amount, err := numfmt.ParseUint64(ctx.String(amountFlag.Name))
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		lock, err := numfmt.ParseUint64(ctx.String(lockFlag.Name))
		if err != nil {
			return fmt.Errorf("lock: %w", err)
		}

		c := clientFrom(ctx)
		if _, err := c.login(ctx.Context, key); err != nil {
			return err
		}
		receipt, err := c.stake(ctx.Context, amount, lock)
		if err != nil {
			return err
		}
		printReceipt(ctx, receipt)
		return printPosition(ctx, c, crypto.PubkeyToAddress(key.PublicKey), true)
	},
}

var commandPosition = &cli.Command{
	Name:      "position",
	Usage:     "show the stake of an account",
	ArgsUsage: "[ <address> ]",
	Flags:     []cli.Flag{optionalKeyFlag},
	Action: func(ctx *cli.Context) error {
		c := clientFrom(ctx)

		var (
			account common.Address
			reveal  bool
		)
		if raw := ctx.String(optionalKeyFlag.Name); raw != "" {
			key, err := parseKey(raw)
			if err != nil {
				return err
			}
			if _, err := c.login(ctx.Context, key); err != nil {
				return err
			}
			account, reveal = crypto.PubkeyToAddress(key.PublicKey), true
		}
		if arg := ctx.Args().First(); arg != "" {
			parsed, err := domain.ParseAccount(arg)
			if err != nil {
				return err
			}
			if reveal && parsed != account {
				reveal = false
			}
			account = parsed
		}
		if account == (common.Address{}) {
			return fmt.Errorf("an address argument or --key is required")
		}
		return printPosition(ctx, c, account, reveal)
	},
}

var commandWithdraw = &cli.Command{
	Name:  "withdraw",
	Usage: "withdraw an unlocked stake",
	Flags: []cli.Flag{keyFlag},
	Action: func(ctx *cli.Context) error {
		key, err := parseKey(ctx.String(keyFlag.Name))
		if err != nil {
			return err
		}

		c := clientFrom(ctx)
		if _, err := c.login(ctx.Context, key); err != nil {
			return err
		}
		receipt, err := c.withdraw(ctx.Context)
		if err != nil {
			return err
		}
		printReceipt(ctx, receipt)

		value, err := c.decrypt(ctx.Context, receipt.Amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Released: %s\n", value)
		return nil
	},
}

func parseKey(raw string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(raw), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func printReceipt(ctx *cli.Context, r *dto.ReceiptResponse) {
	w := ctx.App.Writer
	fmt.Fprintf(w, "Receipt: %s %s\n", r.Kind, r.ID)
	fmt.Fprintf(w, "  From:   %s\n", r.From)
	fmt.Fprintf(w, "  To:     %s\n", r.To)
	fmt.Fprintf(w, "  Amount: %s\n", r.Amount)
	if r.MintedValue != nil {
		fmt.Fprintf(w, "  Minted: %s\n", *r.MintedValue)
	}
}

func printPosition(ctx *cli.Context, c *client, account common.Address, reveal bool) error {
	pos, err := c.position(ctx.Context, account)
	if err != nil {
		return err
	}

	w := ctx.App.Writer
	fmt.Fprintf(w, "Position of %s\n", pos.Account)
	if !pos.Active {
		fmt.Fprintln(w, "  No active stake")
		return nil
	}
	fmt.Fprintf(w, "  Staked:  %s\n", pos.StakedAmount)
	if reveal {
		value, err := c.decrypt(ctx.Context, pos.StakedAmount)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Amount:  %s\n", value)
	}
	fmt.Fprintf(w, "  Unlocks: %s\n", time.Unix(int64(pos.UnlockTime), 0).UTC().Format(time.RFC3339))
	if pos.UnlocksIn != "" {
		fmt.Fprintf(w, "  In:      %s\n", pos.UnlocksIn)
	} else {
		fmt.Fprintln(w, "  Withdrawable now")
	}
	return nil
}
