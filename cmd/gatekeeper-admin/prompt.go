package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the x/term calls.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var (
	errPasswordMismatch = errors.New("passwords do not match")
	errAborted          = errors.New("aborted by user")
)

func stdinFD() int { return int(os.Stdin.Fd()) }

// promptPassword reads a password without echo when stdin is a terminal.
// Otherwise the next line of in is used.
func promptPassword(in *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if !isTerminal(stdinFD()) {
		return readLine(in)
	}
	if err := writef(w, "%s", prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(stdinFD())
	_ = writeln(w, "")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// readNewPassword asks twice on a terminal so a typo cannot lock the account out.
func readNewPassword(in *bufio.Reader, w io.Writer, fromStdin bool) (string, error) {
	if fromStdin {
		return readLine(in)
	}
	first, err := promptPassword(in, w, "Password: ")
	if err != nil {
		return "", err
	}
	if !isTerminal(stdinFD()) {
		return first, nil
	}
	second, err := promptPassword(in, w, "Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if line == "" {
			return "", errors.New("no password provided on stdin")
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func requireRemoteHostConfirmation(in *bufio.Reader, w io.Writer, action, host string) error {
	if err := writef(w,
		"\nWARNING: database host %q does not look like a local address.\n"+
			"This operation will %s.\n",
		host,
		action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(w, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return errAborted
	}
	if strings.TrimSpace(resp) != host {
		if writeErr := writeln(w, "\nRemote safeguard check failed; aborting."); writeErr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", writeErr)
		}
		return errAborted
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
