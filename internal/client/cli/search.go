package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/assettrack/internal/client/search"
)

const searchHelp = `Type a serial number to search. Commands:
  :scan <code>   look a scanned code up immediately
  :up :down      move through matches, :enter picks, :pick <n> picks the n-th
  :esc           close the match list
  :cond <name>   toggle a technical condition
  :whs <name>    set the scanned warehouse
  :save          save the result
  :show          print the screen again
  :back          leave the search page`

// Search opens the search page and runs its input loop until the user
// leaves, input ends, or the page is torn down by a logout. initial, when
// set, is looked up right away as a scanned code.
func (a *App) Search(ctx context.Context, initial string) error {
	return a.open(ctx, PathSearch, func() error {
		if _, err := a.datasets.Latest(ctx); err != nil {
			a.log.Debug(ctx, "no dataset for search", "error", err)
		}
		if err := a.catalog.Load(ctx); err != nil {
			a.log.Debug(ctx, "catalog unavailable", "error", err)
		}

		ctrl := search.NewController(search.Options{
			Config: search.Config{
				Debounce:  a.config.SearchDebounce,
				MinLength: a.config.SearchMinLength,
			},
			Backend:  a.backend,
			Datasets: a.pointer,
			Auth:     search.AuthFunc(a.isLoggedIn),
			Notifier: a.notifier,
			Logger:   a.log.With("component", "search"),
			Metrics:  a.metrics,
			OnChange: renderSearch,
		})
		unregister := a.pages.onReset(ctrl.Close)
		defer unregister()
		defer ctrl.Close()

		printlnFn(searchHelp)
		if initial != "" {
			ctrl.SearchNow(initial)
		}
		return a.searchLoop(ctx, ctrl)
	})
}

func (a *App) searchLoop(ctx context.Context, ctrl *search.Controller) error {
	for {
		if a.pages.Current() != PathSearch {
			return nil
		}
		printFn("search> ")
		if !a.in.Scan() {
			return a.in.Err()
		}
		if a.pages.Current() != PathSearch {
			return nil
		}

		line := a.in.Text()
		if !strings.HasPrefix(line, ":") {
			ctrl.Input(strings.TrimSpace(line))
			continue
		}

		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case ":back":
			return nil
		case ":scan":
			ctrl.SearchNow(arg)
		case ":up":
			ctrl.Up()
		case ":down":
			ctrl.Down()
		case ":enter":
			ctrl.Enter()
		case ":esc":
			ctrl.Escape()
		case ":pick":
			n, err := strconv.Atoi(arg)
			if err != nil || !ctrl.Select(n-1) {
				printlnFn("No such match: " + arg)
			}
		case ":cond":
			if a.known(arg, a.catalog.ConditionNames()) {
				ctrl.ToggleCondition(arg)
			}
		case ":whs":
			if a.known(arg, a.catalog.WarehouseNames()) {
				ctrl.SetWarehouse(arg)
			}
		case ":save":
			_ = ctrl.Save(ctx)
		case ":show":
			renderSearch(ctrl.View())
		case ":help":
			printlnFn(searchHelp)
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// known reports whether name is one of choices. An empty catalog accepts
// anything so the screen stays usable when it failed to load.
func (a *App) known(name string, choices []string) bool {
	if name == "" {
		printlnFn("A name is required.")
		return false
	}
	if len(choices) == 0 || slices.Contains(choices, name) {
		return true
	}
	printlnFn(fmt.Sprintf("Unknown choice %q. Available: %s", name, strings.Join(choices, ", ")))
	return false
}

// renderSearch prints the dropdown and the editable result.
func renderSearch(v search.View) {
	if v.Pending {
		printlnFn("Searching...")
		return
	}
	if v.DropdownOpen {
		for i, m := range v.Matches {
			marker := " "
			if i == v.Focused {
				marker = ">"
			}
			printlnFn(fmt.Sprintf("%s %2d. %s  %s  %s", marker, i+1, m.SerialNumber, m.Type, m.Warehouse))
		}
	}
	if r := v.Result; r != nil {
		m := r.Match
		if r.Placeholder {
			printlnFn("New record: " + m.SerialNumber)
		} else {
			printlnFn(fmt.Sprintf("Serial: %s  Type: %s  Warehouse: %s", m.SerialNumber, m.Type, m.Warehouse))
			if m.AccountName != "" {
				printlnFn(fmt.Sprintf("Account: %s, %s", m.AccountName, m.AccountAddress))
			}
		}
		printlnFn(fmt.Sprintf("  conditions: [%s]  scanned warehouse: %s", strings.Join(r.Conditions, ", "), r.Warehouse))
	}
}
