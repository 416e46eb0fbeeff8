package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Check(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Protect(ctx context.Context, redirectPath string) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Location(ctx context.Context) error
}

const helpText = "Available commands: check, whoami, protect [redirect], login, logout, location, help, exit"

var errUnknownCommand = errors.New("unknown command")

// runREPL reads commands from scanner until EOF or "exit"/"quit".
//
//	check                verify the stored session and print the user
//	whoami               print the current user
//	protect [redirect]   enter a protected view, redirecting when signed out
//	login                sign in with email and password
//	logout               sign out
//	location             print the current view
//	help                 show available commands
//	exit | quit          leave the program
//
// Errors returned by command handlers are reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("guard> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		quit, err := dispatch(ctx, a, parts)
		if quit {
			return
		}
		if err != nil && !errors.Is(err, ErrNotAuthenticated) {
			printlnFn("error:", err)
		}
	}
}

// dispatch runs one command. It reports quit=true for exit/quit.
func dispatch(ctx context.Context, a execIface, parts []string) (quit bool, err error) {
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		printlnFn(helpText)
	case "check":
		return false, a.Check(ctx)
	case "whoami":
		return false, a.WhoAmI(ctx)
	case "protect":
		redirect := ""
		if len(args) > 0 {
			redirect = args[0]
		}
		return false, a.Protect(ctx, redirect)
	case "login":
		return false, a.Login(ctx)
	case "logout":
		return false, a.Logout(ctx)
	case "location":
		return false, a.Location(ctx)
	case "exit", "quit":
		printlnFn("Bye!")
		return true, nil
	default:
		printlnFn("Unknown command:", cmd)
		return false, fmt.Errorf("%w: %s", errUnknownCommand, cmd)
	}
	return false, nil
}
