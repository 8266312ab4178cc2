package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	isLoggedIn() bool
	isTreasury() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	NewTransfer(ctx context.Context) error
	Toggle(ctx context.Context, id string) error
	List(ctx context.Context, status string) error
	Report(ctx context.Context) error
	Users(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit" or "quit". Handlers report their own errors.
//
//	Not logged in: register, login, help, exit
//	Submitter:     new, list [pending|reached], whoami, logout, help, exit
//	Treasury:      toggle <id>, list [pending|reached], report, users,
//	               whoami, logout, help, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("mtms %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			switch {
			case !a.isLoggedIn():
				printlnFn("Available commands: register, login, exit")
			case a.isTreasury():
				printlnFn("Available commands: (l)ist [pending|reached], toggle <id>, report, users, whoami, logout, exit")
			default:
				printlnFn("Available commands: new, (l)ist [pending|reached], whoami, logout, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "new":
			_ = a.NewTransfer(ctx)

		case "toggle":
			if len(args) == 0 {
				printlnFn("Usage: toggle <id>")
				continue
			}
			_ = a.Toggle(ctx, args[0])

		case "l", "list":
			status := ""
			if len(args) > 0 {
				status = args[0]
			}
			_ = a.List(ctx, status)

		case "report":
			_ = a.Report(ctx)

		case "users":
			_ = a.Users(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
