package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for user-facing output. printFn is
// used for prompts, which stay on the input line. In tests, replace them
// with stubs.
var printlnFn = fmt.Println
var printFn = fmt.Print

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Dashboard(ctx context.Context) error
	Search(ctx context.Context, initial string) error
	Upload(ctx context.Context, path string) error
	Files(ctx context.Context) error
	Export(ctx context.Context, id string) error
	Catalog(ctx context.Context, kind string, args []string) error
	Routing(ctx context.Context, date string) error
}

// runREPL reads commands from scanner and dispatches them to a until input
// ends or the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current page and user (from statusFn):
//
//	Not logged in:
//	  - help                 show available commands
//	  - register             create an account
//	  - login                authenticate
//	  - exit | quit          leave the program
//
//	Logged in:
//	  - dashboard            account and current database
//	  - search [code]        search page; with code, look it up right away
//	  - scan <code>          same as search <code>
//	  - upload [path]        upload a spreadsheet
//	  - files                list uploaded databases
//	  - export [id]          export a database
//	  - conditions [...]     list, add <name>, rm <id>
//	  - warehouses [...]     list, add <name>, rm <id>
//	  - routes [YYYY-MM-DD]  delivery routes for a day (default today)
//	  - logout               log out
//
// Protected commands typed while logged out are still dispatched; the route
// check sends the user to the login page. Handler errors are reported by the
// services as notifications, so they are ignored here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printFn(fmt.Sprintf("at %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]
		arg := strings.Join(args, " ")

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: dashboard, search [code], scan <code>, upload [path], files, export [id], conditions, warehouses, routes [date], logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "dashboard":
			_ = a.Dashboard(ctx)

		case "search":
			_ = a.Search(ctx, arg)

		case "scan":
			if arg == "" {
				printlnFn("Usage: scan <code>")
				continue
			}
			_ = a.Search(ctx, arg)

		case "upload":
			_ = a.Upload(ctx, arg)

		case "files":
			_ = a.Files(ctx)

		case "export":
			_ = a.Export(ctx, arg)

		case "conditions", "warehouses":
			_ = a.Catalog(ctx, cmd, args)

		case "routes":
			_ = a.Routing(ctx, arg)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
