package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/snapcoin/snapwallet/internal/vault"
)

var stdin = bufio.NewReader(os.Stdin)

// readLine prompts and reads one trimmed line.
func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPIN prompts for a 6-digit PIN without echoing it.
func readPIN(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("stdin is not a terminal: run snapwallet interactively")
	}
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read PIN: %w", err)
	}
	pin := string(raw)
	clear(raw)
	if err := vault.ValidatePIN(pin); err != nil {
		return "", err
	}
	return pin, nil
}
