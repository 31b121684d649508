// snapwallet is the interactive shell over the wallet engine. It owns the
// terminal: PIN prompts, the command loop and output formatting live here,
// everything else is the engine's job.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/snapcoin/snapwallet/internal/builder"
	"github.com/snapcoin/snapwallet/internal/config"
	"github.com/snapcoin/snapwallet/internal/engine"
	"github.com/snapcoin/snapwallet/internal/model"
	"github.com/snapcoin/snapwallet/internal/node"
	"github.com/snapcoin/snapwallet/internal/store"
)

const defaultNodeAddr = "127.0.0.1:3003"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	nodeAddr := defaultNodeAddr
	switch len(os.Args) {
	case 1:
	case 2:
		nodeAddr = os.Args[1]
	default:
		return &model.ConfigurationError{Reason: "usage: snapwallet [<host>:<port>]"}
	}

	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()

	logger := zap.NewNop()
	if cfg.Debug {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
	}
	defer logger.Sync()

	walletPath, err := config.GetWalletPath()
	if err != nil {
		return err
	}

	st, err := store.Load(walletPath, store.Options{
		KDF: model.KDFParams{
			N:      cfg.ScryptN,
			R:      cfg.ScryptR,
			P:      cfg.ScryptP,
			KeyLen: cfg.ScryptKeyLen,
		},
		UnlockBurst:  cfg.UnlockBurst,
		UnlockPerMin: cfg.UnlockPerMin,
	})
	if err != nil {
		return err
	}

	client, err := node.New(nodeAddr, config.GetNodeTimeout(), logger)
	if err != nil {
		return err
	}

	eng := engine.New(st, client, builder.FeePolicy{
		Base:      cfg.FeeBase,
		PerInput:  cfg.FeePerInput,
		PerOutput: cfg.FeePerOutput,
	}, cfg.DustThreshold, config.GetPendingTTL(), logger)

	sh := newShell(eng, nodeAddr)
	return sh.run()
}
