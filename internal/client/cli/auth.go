package cli

import (
	"context"

	"github.com/dmitrijs2005/assettrack/internal/client/auth"
	"github.com/dmitrijs2005/assettrack/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Login shows the login page, prompts for credentials and, on success,
// moves on to the dashboard. Failures are reported by the account service.
func (a *App) Login(ctx context.Context) error {
	a.session.Navigate(ctx, auth.PathLogin)

	userName, err := getSimpleText(a.in, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.accounts.Login(ctx, userName, password); err != nil {
		return err
	}
	return a.Dashboard(ctx)
}

// Register prompts for a username and a confirmed password and creates the
// account. On success the login page is shown.
func (a *App) Register(ctx context.Context) error {
	a.session.Navigate(ctx, auth.PathRegister)

	userName, err := getSimpleText(a.in, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	confirm, err := getPassword(a.out, "Confirm password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)

	if err := a.accounts.Register(ctx, userName, password, confirm); err != nil {
		return err
	}
	a.session.Navigate(ctx, auth.PathLogin)
	return nil
}

// Logout ends the session in every context sharing the store.
func (a *App) Logout(ctx context.Context) error {
	a.session.Logout(ctx)
	printlnFn("Logged out.")
	return nil
}
