package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/snapcoin/snapwallet/internal/common"
	"github.com/snapcoin/snapwallet/internal/engine"
	"github.com/snapcoin/snapwallet/internal/model"
)

var (
	header  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

type shell struct {
	eng      *engine.Engine
	nodeAddr string
	session  *engine.Session
}

func newShell(eng *engine.Engine, nodeAddr string) *shell {
	return &shell{eng: eng, nodeAddr: nodeAddr}
}

func (sh *shell) run() error {
	header.Println("--- Snap Coin Wallet ---")

	if err := sh.openSession(); err != nil {
		return err
	}
	defer sh.session.Close()

	success.Printf("Wallet %q ready, address: %s\n", sh.session.Wallet, sh.session.Address())
	fmt.Printf("Node: %s\n", sh.nodeAddr)

	for {
		line, err := readLine("snap wallet > ")
		if errors.Is(err, io.EOF) {
			fmt.Println("Exiting.")
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "exit", "quit", "e", "q":
			fmt.Println("Bye.")
			return nil
		case "clear", "cls":
			fmt.Print("\033[2J\033[H")
		default:
			if err := sh.dispatch(cmd, args); err != nil {
				failure.Printf("%s failed: %v\n", cmd, err)
			}
		}
	}
}

// openSession runs the startup flow: pick or create a wallet, unlock it.
func (sh *shell) openSession() error {
	wallets := sh.eng.Wallets()
	if len(wallets) == 0 {
		fmt.Println("No wallets found. Creating a new wallet.")
		return sh.createAndUnlock()
	}

	fmt.Println("Available wallets:")
	for _, w := range wallets {
		marker := ""
		if w.Current {
			marker = " [default]"
		}
		fmt.Printf("  - %s%s\n", w.Name, marker)
	}

	name, err := readLine("Wallet name (empty for default, 'new' to create): ")
	if err != nil {
		return err
	}
	if name == "new" {
		return sh.createAndUnlock()
	}
	if name == "" {
		name = sh.eng.CurrentWallet()
		if name == "" {
			return errors.New("no default wallet; name one explicitly")
		}
	}
	return sh.unlock(name)
}

func (sh *shell) createAndUnlock() error {
	name, err := readLine("Name for the new wallet: ")
	if err != nil {
		return err
	}

	pin, err := readPIN("Create a 6-digit wallet PIN: ")
	if err != nil {
		return err
	}
	confirm, err := readPIN("Confirm the PIN: ")
	if err != nil {
		return err
	}
	if pin != confirm {
		return errors.New("PINs don't match")
	}

	keyInput, err := readLine("Hex private key to import (empty for a new key): ")
	if err != nil {
		return err
	}
	var importKey []byte
	if keyInput != "" {
		importKey, err = hex.DecodeString(keyInput)
		if err != nil {
			return fmt.Errorf("invalid hex private key: %w", err)
		}
	}

	summary, err := sh.eng.CreateWallet(name, pin, importKey)
	if err != nil {
		return err
	}
	success.Printf("Wallet %q created, address: %s\n", name, summary.Address)
	if importKey == nil {
		warning.Println("Back up the private key (wallet private) in a safe, offline location.")
		warning.Println("Losing it means losing the coins; anyone who sees it can spend them.")
	}

	if sh.eng.CurrentWallet() != name {
		if err := sh.eng.SwitchWallet(name); err != nil {
			return err
		}
	}
	return sh.startSession(name, pin)
}

func (sh *shell) unlock(name string) error {
	pin, err := readPIN(fmt.Sprintf("PIN for %q: ", name))
	if err != nil {
		return err
	}
	return sh.startSession(name, pin)
}

func (sh *shell) startSession(name, pin string) error {
	session, err := sh.eng.Unlock(name, pin)
	if err != nil {
		return err
	}
	if sh.session != nil {
		sh.session.Close()
	}
	sh.session = session
	return nil
}

func (sh *shell) dispatch(cmd string, args []string) error {
	ctx := context.Background()

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "balance":
		view, err := sh.session.Balance(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Balance (node-reported): %s SNAP\n", common.NanoToSnap(view.NodeReported))
		return nil
	case "available":
		return sh.cmdAvailable(ctx)
	case "history":
		return sh.cmdHistory(ctx)
	case "tx-info":
		if len(args) != 1 {
			return errors.New("usage: tx-info <txid>")
		}
		return sh.cmdTxInfo(ctx, args[0])
	case "send":
		return sh.cmdSend(ctx, args)
	case "wallet":
		return sh.cmdWallet(args)
	case "change-pin":
		return sh.cmdChangePIN()
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (sh *shell) cmdAvailable(ctx context.Context) error {
	utxos, err := sh.session.Available(ctx)
	if err != nil {
		return err
	}
	header.Printf("Available UTXOs (%d):\n", len(utxos))
	for _, u := range utxos {
		fmt.Printf("  %s  %s SNAP  (%d confirmations, node-reported)\n",
			u.Outpoint(), common.NanoToSnap(u.Amount), u.Confirmations)
	}
	return nil
}

func (sh *shell) cmdHistory(ctx context.Context) error {
	records, err := sh.session.History(ctx)
	if err != nil {
		return err
	}
	header.Printf("Transaction history (%d items):\n", len(records))
	for _, r := range records {
		fmt.Printf("  %-8s %s SNAP  %s  (%d confirmations, node-reported)\n",
			r.Direction, common.NanoToSnap(r.Amount), r.TxID.String(), r.Confirmations)
	}
	return nil
}

func (sh *shell) cmdTxInfo(ctx context.Context, id string) error {
	detail, err := sh.session.TxInfo(ctx, id)
	if err != nil {
		return err
	}
	header.Printf("Transaction %s\n", detail.TxID.String())
	fmt.Printf("  Confirmations (node-reported): %d\n", detail.Confirmations)
	fmt.Printf("  Fee: %s SNAP\n", common.NanoToSnap(detail.Fee))
	fmt.Println("  Inputs:")
	for _, in := range detail.Inputs {
		fmt.Printf("    %s  %s SNAP  %s\n", in.Outpoint(), common.NanoToSnap(in.Amount), in.Address)
	}
	fmt.Println("  Outputs:")
	for _, out := range detail.Outputs {
		fmt.Printf("    %s  %s SNAP\n", out.Address, common.NanoToSnap(out.Amount))
	}
	return nil
}

func (sh *shell) cmdSend(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args)%2 != 0 {
		return errors.New("usage: send <address> <amount> [...more pairs]")
	}

	var recipients []model.TxOutput
	for i := 0; i < len(args); i += 2 {
		nano, err := common.SnapToNano(args[i+1])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[i+1], err)
		}
		recipients = append(recipients, model.TxOutput{Address: args[i], Amount: nano})
	}

	pin, err := readPIN("Enter PIN to confirm the send: ")
	if err != nil {
		return err
	}
	if err := sh.eng.VerifyPIN(sh.session.Wallet, pin); err != nil {
		return err
	}

	txid, err := sh.session.Send(ctx, recipients)
	if err != nil {
		return err
	}
	success.Printf("Transaction submitted: %s\n", txid.String())
	return nil
}

func (sh *shell) cmdWallet(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: wallet <list|create|delete|private|public|switch> [<wallet>]")
	}
	subcmd := args[0]
	name := sh.session.Wallet
	if len(args) > 1 {
		name = args[1]
	}

	switch subcmd {
	case "list":
		for _, w := range sh.eng.Wallets() {
			marker := ""
			if w.Current {
				marker = " [current]"
			}
			fmt.Printf("  - %s  %s%s\n", w.Name, w.Address, marker)
		}
		return nil

	case "create":
		return sh.createAndUnlock()

	case "delete":
		pin, err := readPIN(fmt.Sprintf("Enter PIN to confirm deletion of %q: ", name))
		if err != nil {
			return err
		}
		if err := sh.eng.VerifyPIN(name, pin); err != nil {
			return err
		}
		if err := sh.eng.DeleteWallet(name); err != nil {
			return err
		}
		success.Printf("Wallet %q deleted.\n", name)
		if name == sh.session.Wallet {
			warning.Println("The active wallet was deleted; switch to another wallet (wallet switch <name>) or create one.")
		}
		return nil

	case "private":
		pin, err := readPIN(fmt.Sprintf("Enter PIN to view private key of %q: ", name))
		if err != nil {
			return err
		}
		key, err := sh.eng.RevealPrivate(name, pin)
		if err != nil {
			return err
		}
		warning.Printf("Private key of %q: %s\n", name, key)
		return nil

	case "public":
		summary, _, err := sh.eng.RevealPublic(name)
		if err != nil {
			return err
		}
		fmt.Printf("Address of %q: %s\n", name, summary.Address)
		fmt.Printf("Public key: %s\n", summary.PublicKey)
		return nil

	case "switch":
		if err := sh.eng.SwitchWallet(name); err != nil {
			return err
		}
		if err := sh.unlock(name); err != nil {
			return err
		}
		success.Printf("Switched to wallet %q.\n", name)
		return nil

	default:
		return fmt.Errorf("unknown wallet subcommand %q", subcmd)
	}
}

func (sh *shell) cmdChangePIN() error {
	current, err := readPIN("Enter current PIN: ")
	if err != nil {
		return err
	}
	newPIN, err := readPIN("Create a new 6-digit PIN: ")
	if err != nil {
		return err
	}
	confirm, err := readPIN("Confirm the new PIN: ")
	if err != nil {
		return err
	}
	if newPIN != confirm {
		return errors.New("PINs don't match")
	}
	if err := sh.eng.ChangePIN(sh.session.Wallet, current, newPIN); err != nil {
		return err
	}
	success.Println("PIN changed.")
	return nil
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  balance                    - Show wallet balance (node-reported)")
	fmt.Println("  available                  - List spendable UTXOs")
	fmt.Println("  history                    - Show transaction history")
	fmt.Println("  tx-info <txid>             - Show transaction details")
	fmt.Println("  send <addr> <amt>...       - Send SNAP to one or more addresses")
	fmt.Println("  wallet <subcmd> [<wallet>] - Wallet management")
	fmt.Println("    list                     - List wallets")
	fmt.Println("    create                   - Create or import a wallet")
	fmt.Println("    delete [<wallet>]        - Delete a wallet (default: current)")
	fmt.Println("    private [<wallet>]       - Show private key (default: current)")
	fmt.Println("    public [<wallet>]        - Show address and public key")
	fmt.Println("    switch <wallet>          - Switch the active wallet")
	fmt.Println("  change-pin                 - Change the wallet PIN")
	fmt.Println("  clear                      - Clear the screen")
	fmt.Println("  help                       - Show this help")
	fmt.Println("  exit, quit                 - Exit the wallet")
}
