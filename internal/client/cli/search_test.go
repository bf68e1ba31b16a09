package cli

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/auth"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchApp(t *testing.T, input string) *testApp {
	t.Helper()
	ta := newTestApp(t, input, alice())
	ta.config.SearchDebounce = time.Hour
	ta.catalog.conditions = []api.Condition{{ID: 1, Name: "Good"}, {ID: 2, Name: "Broken"}}
	ta.catalog.warehouses = []api.Warehouse{{ID: 3, Name: "Sofia"}}
	require.NoError(t, ta.store.SetDataset(context.Background(), session.Dataset{ID: 7, Name: "stock.xlsx"}))
	return ta
}

func TestSearch_ScanAnnotateSave(t *testing.T) {
	out := captureOutput(t)
	var inline []string
	recordInline := printFn
	printFn = func(a ...any) (int, error) {
		inline = append(inline, fmt.Sprint(a...))
		return recordInline(a...)
	}
	ta := newSearchApp(t, ":scan 12345\n:cond Good\n:cond Bogus\n:whs Sofia\n:save\n:back\n")
	ta.backend.matches["12345"] = []api.Match{{SerialNumber: "12345", Type: "POS", Warehouse: "Varna"}}

	require.NoError(t, ta.Search(context.Background(), ""))

	assert.Equal(t, []api.UpdateRequest{{
		FileID: 7, SerialNumber: "12345", Condition: "Good", ScannedWarehouse: "Sofia",
	}}, ta.backend.updates)
	assert.Contains(t, *out, "Serial: 12345  Type: POS  Warehouse: Varna")
	assert.Contains(t, *out, `Unknown choice "Bogus". Available: Good, Broken`)
	assert.Equal(t, PathSearch, ta.pages.Current())
	assert.Contains(t, inline, "search> ", "the prompt stays on the input line")
	assert.Zero(t, ta.pages.pending(), "leaving the page drops its teardown")
}

func TestSearch_InitialCodeAndPick(t *testing.T) {
	out := captureOutput(t)
	ta := newSearchApp(t, ":pick 2\n:pick 9\n:show\n")
	ta.backend.matches["1234"] = []api.Match{{SerialNumber: "12340"}, {SerialNumber: "12341"}}

	require.NoError(t, ta.Search(context.Background(), "1234"))

	assert.Contains(t, *out, "   1. 12340    ")
	assert.Contains(t, *out, "No such match: 9")
	assert.Contains(t, *out, "  conditions: []  scanned warehouse: ")
	assert.Contains(t, *out, "Serial: 12341  Type:   Warehouse: ")
}

func TestSearch_NoMatchShowsPlaceholder(t *testing.T) {
	out := captureOutput(t)
	ta := newSearchApp(t, ":scan QR-1\n:nope\n")

	require.NoError(t, ta.Search(context.Background(), ""))
	assert.Contains(t, *out, "New record: QR-1")
	assert.Contains(t, *out, "Unknown command: :nope")
}

func TestSearch_RequiresLogin(t *testing.T) {
	captureOutput(t)
	ta := newTestApp(t, ":back\n", nil)

	require.ErrorIs(t, ta.Search(context.Background(), ""), errNotShown)
	assert.Equal(t, auth.PathLogin, ta.pages.Current())
	assert.Empty(t, ta.backend.updates)
}

// A logout in another context while a lookup is in flight sends this one to
// the login page; the loop stops before the queued save runs.
func TestSearch_LogoutElsewhereEndsPage(t *testing.T) {
	captureOutput(t)
	ta := newSearchApp(t, ":scan 12345\n:cond Good\n:whs Sofia\n:save\n")
	ta.backend.matches["12345"] = []api.Match{{SerialNumber: "12345"}}

	other := session.NewStore(ta.db, ta.bus, session.NewContextID(), nil)
	ta.backend.onSearch = func() {
		require.NoError(t, other.Clear(context.Background()))
	}

	require.NoError(t, ta.Search(context.Background(), ""))
	assert.Equal(t, auth.PathLogin, ta.pages.Current())
	assert.False(t, ta.isLoggedIn())
	assert.Empty(t, ta.backend.updates)
}
