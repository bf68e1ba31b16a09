package cli

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/auth"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRoutes(ta *testApp) {
	ta.routing.routes = []api.Route{
		{ID: 1, TypeOfRoute: "install", CompanyName: "Acme", OutletName: "Shop 1", DeliveryAddress: "Main St 1"},
		{ID: 2, TypeOfRoute: "uninstall", CompanyName: "Acme", OutletName: "Shop 2", DeliveryAddress: "Main St 2", SerialNumber: "OLD"},
	}
}

func TestRouting_ScanEditSave(t *testing.T) {
	out := captureOutput(t)
	ta := newTestApp(t, ":open Acme\n:scan 1 QR-1\n:scan 2 QR-2\n:serial 2\n:serial x 1\n:save\n:back\n", alice())
	withRoutes(ta)

	require.NoError(t, ta.Routing(context.Background(), "2024-05-03"))

	assert.Equal(t, []string{"2024-05-03/alice"}, ta.routing.dates)
	assert.Equal(t, []map[int64]api.RouteUpdate{{1: {SerialNumber: "QR-1"}, 2: {}}}, ta.routing.updates)
	assert.Contains(t, *out, "Routes for 2024-05-03")
	assert.Contains(t, *out, "+ Acme => 2")
	assert.Contains(t, *out, "  [1] Shop 1 (install) Main St 1, serial: QR-1")
	assert.Contains(t, *out, "Invalid id: x")
	assert.Contains(t, *out, "Updated 2 records successfully.")
	assert.Contains(t, *out, "routes> ")
	assert.Equal(t, 1, ta.notes.Count(notify.Warning, routing.MsgScanNotAllowed))
	assert.Empty(t, ta.App.routes.Companies(), "plan is dropped when the page is left")
}

func TestRouting_DefaultDateAndReload(t *testing.T) {
	captureOutput(t)
	orig := today
	t.Cleanup(func() { today = orig })
	today = func() time.Time { return time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC) }

	ta := newTestApp(t, ":date 2025-01-03\n:date nope\n", alice())
	require.NoError(t, ta.Routing(context.Background(), ""))
	assert.Equal(t, []string{"2025-01-02/alice", "2025-01-03/alice"}, ta.routing.dates)
}

func TestRouting_InvalidDateOrLoggedOut(t *testing.T) {
	out := captureOutput(t)
	ta := newTestApp(t, "", alice())
	require.Error(t, ta.Routing(context.Background(), "03/05/2024"))
	assert.Contains(t, *out, `invalid date "03/05/2024", want YYYY-MM-DD`)
	assert.Empty(t, ta.routing.dates)

	ta = newTestApp(t, "", nil)
	require.ErrorIs(t, ta.Routing(context.Background(), ""), errNotShown)
	assert.Equal(t, auth.PathLogin, ta.pages.Current())
	assert.Empty(t, ta.routing.dates)
}
