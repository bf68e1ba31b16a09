package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/routing"
)

const routingHelp = `Routes page commands:
  :date <YYYY-MM-DD>   load another day
  :open <company>      expand or collapse a company
  :serial <id> [sn]    type the terminal serial of an outlet (empty clears)
  :scan <id> <code>    fill an install outlet with a scanned code
  :save                save every outlet's serial
  :show                print the routes again
  :back                leave the routes page`

// today is the default routes date; swapped in tests.
var today = func() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func parseRouteDate(s string) (time.Time, error) {
	if s == "" {
		return today(), nil
	}
	t, err := time.Parse(api.RouteDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// Routing opens the routes page for date (today when empty) and runs its
// input loop. The loaded plan and unsaved edits live only while the page
// is shown.
func (a *App) Routing(ctx context.Context, date string) error {
	day, err := parseRouteDate(strings.TrimSpace(date))
	if err != nil {
		printlnFn(err.Error())
		return err
	}
	return a.open(ctx, PathRouting, func() error {
		defer a.routes.Reset()

		if err := a.routes.Load(ctx, day, a.session.State().User); err == nil {
			a.renderRoutes()
		}
		printlnFn(routingHelp)
		return a.routingLoop(ctx)
	})
}

func (a *App) routingLoop(ctx context.Context) error {
	for {
		if a.pages.Current() != PathRouting {
			return nil
		}
		printFn("routes> ")
		if !a.in.Scan() {
			return a.in.Err()
		}
		if a.pages.Current() != PathRouting {
			return nil
		}

		fields := strings.Fields(a.in.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		switch cmd {
		case ":back":
			return nil
		case ":date":
			day, err := parseRouteDate(strings.Join(args, ""))
			if err != nil || len(args) == 0 {
				printlnFn("Usage: :date <YYYY-MM-DD>")
				continue
			}
			if err := a.routes.Load(ctx, day, a.session.State().User); err == nil {
				a.renderRoutes()
			}
		case ":open":
			if len(args) == 0 {
				printlnFn("Usage: :open <company>")
				continue
			}
			a.routes.Toggle(strings.Join(args, " "))
			a.renderRoutes()
		case ":serial", ":scan":
			if len(args) == 0 || (cmd == ":scan" && len(args) < 2) {
				printlnFn(fmt.Sprintf("Usage: %s <id> <value>", cmd))
				continue
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				printlnFn("Invalid id: " + args[0])
				continue
			}
			value := strings.Join(args[1:], " ")
			if cmd == ":scan" {
				err = a.routes.Scan(id, value)
			} else {
				err = a.routes.SetSerial(id, value)
			}
			if err == nil {
				a.renderRoutes()
			}
		case ":save":
			if msg, err := a.routes.Save(ctx); err == nil && msg != "" {
				printlnFn(msg)
			}
		case ":show":
			a.renderRoutes()
		case ":help":
			printlnFn(routingHelp)
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// renderRoutes prints one line per company and, for expanded companies,
// one line per outlet.
func (a *App) renderRoutes() {
	printlnFn("Routes for " + a.routes.Date().Format(api.RouteDateLayout))
	for _, c := range a.routes.Companies() {
		mark := "+"
		if c.Expanded {
			mark = "-"
		}
		printlnFn(fmt.Sprintf("%s %s => %d", mark, c.Name, len(c.Routes)))
		if !c.Expanded {
			continue
		}
		for _, r := range c.Routes {
			printlnFn(fmt.Sprintf("  [%d] %s (%s) %s, serial: %s", r.ID, r.OutletName, r.TypeOfRoute, r.DeliveryAddress, r.SerialNumber))
			if r.Comment != "" {
				printlnFn("      comment: " + r.Comment)
			}
		}
	}
}

var _ routingService = (*routing.Service)(nil)
