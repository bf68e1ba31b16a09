package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/auth"
)

// errNotShown means the page was refused, either by the route check or
// because auth state is still settling.
var errNotShown = errors.New("page not shown")

// open navigates to path and renders it through the auth guard.
func (a *App) open(ctx context.Context, path string, render func() error) error {
	if !a.session.Navigate(ctx, path) {
		return errNotShown
	}
	var err error
	if !auth.NewGuard(a.session).Render(func() { err = render() }) {
		return errNotShown
	}
	return err
}

func (a *App) Dashboard(ctx context.Context) error {
	return a.open(ctx, PathDashboard, func() error {
		if u := a.session.State().User; u != nil {
			role := "user"
			if u.IsStaff {
				role = "staff"
			}
			printlnFn(fmt.Sprintf("Logged in as %s (%s)", u.Username, role))
		}

		ds, err := a.pointer.Dataset(ctx)
		switch {
		case err != nil || ds == nil:
			printlnFn("No database loaded. Use 'search' to load the latest one.")
		default:
			printlnFn(fmt.Sprintf("Current database: %s (#%d)", ds.Name, ds.ID))
		}
		return nil
	})
}

// Upload sends a spreadsheet. Without a path argument the user is asked for
// one. A successful upload returns to the dashboard.
func (a *App) Upload(ctx context.Context, path string) error {
	return a.open(ctx, PathUpload, func() error {
		if path == "" {
			p, err := getSimpleText(a.in, "Enter path to an .xlsx or .xls file", a.out)
			if err != nil {
				return err
			}
			path = p
		}
		info, err := a.datasets.Upload(ctx, path)
		if err != nil {
			return err
		}
		a.log.Debug(ctx, "upload done", "id", info.ID)
		a.session.Navigate(ctx, PathDashboard)
		return nil
	})
}

func (a *App) printFiles(files []api.FileInfo) {
	for _, f := range files {
		line := fmt.Sprintf("%6d  %s", f.ID, f.Name)
		if f.UploadDate != "" {
			line += "  " + f.UploadDate
		}
		printlnFn(line)
	}
}

// Files lists the uploaded datasets.
func (a *App) Files(ctx context.Context) error {
	return a.open(ctx, PathExport, func() error {
		files, err := a.datasets.List(ctx)
		if err != nil {
			return err
		}
		a.printFiles(files)
		return nil
	})
}

// Export downloads a dataset. Without an id argument the uploads are listed
// and the user picks one.
func (a *App) Export(ctx context.Context, arg string) error {
	return a.open(ctx, PathExport, func() error {
		if arg == "" {
			files, err := a.datasets.List(ctx)
			if err != nil {
				return err
			}
			a.printFiles(files)
			if arg, err = getSimpleText(a.in, "Enter database ID to export", a.out); err != nil {
				return err
			}
		}
		id, _ := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		loc, err := a.datasets.Export(ctx, id)
		if err != nil {
			return err
		}
		printlnFn("Saved to " + loc)
		return nil
	})
}

// Catalog manages conditions or warehouses: with no arguments the list is
// shown, "add <name>" and "rm <id>" change it.
func (a *App) Catalog(ctx context.Context, kind string, args []string) error {
	return a.open(ctx, PathCatalog, func() error {
		if len(args) == 0 {
			if err := a.catalog.Load(ctx); err != nil {
				return err
			}
			a.printCatalog(kind)
			return nil
		}

		switch args[0] {
		case "add":
			name := strings.TrimSpace(strings.Join(args[1:], " "))
			var err error
			if kind == "conditions" {
				_, err = a.catalog.AddCondition(ctx, name)
			} else {
				_, err = a.catalog.AddWarehouse(ctx, name)
			}
			return err
		case "rm", "delete":
			if len(args) < 2 {
				printlnFn(fmt.Sprintf("Usage: %s rm <id>", kind))
				return nil
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				printlnFn("Invalid id: " + args[1])
				return nil
			}
			if kind == "conditions" {
				return a.catalog.DeleteCondition(ctx, id)
			}
			return a.catalog.DeleteWarehouse(ctx, id)
		default:
			printlnFn(fmt.Sprintf("Usage: %s [add <name> | rm <id>]", kind))
			return nil
		}
	})
}

func (a *App) printCatalog(kind string) {
	if kind == "conditions" {
		for _, c := range a.catalog.Conditions() {
			printlnFn(fmt.Sprintf("%6d  %s", c.ID, c.Name))
		}
		return
	}
	for _, w := range a.catalog.Warehouses() {
		printlnFn(fmt.Sprintf("%6d  %s", w.ID, w.Name))
	}
}
