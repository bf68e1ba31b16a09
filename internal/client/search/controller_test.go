package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	live := !t.stopped && !t.fired
	t.stopped = true
	return live
}

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) after(d time.Duration, f func()) stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// elapse fires every live timer, as if the quiet interval passed.
func (c *fakeClock) elapse() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type searchCall struct {
	serial string
	fileID int64
}

type fakeBackend struct {
	mu      sync.Mutex
	calls   []searchCall
	updates []api.UpdateRequest
	results map[string][]api.Match
	err     error
	// block, when set for a serial, holds that lookup until closed.
	block     map[string]chan struct{}
	updateMsg string
	updateErr error
}

func (b *fakeBackend) Search(ctx context.Context, serial string, fileID int64) ([]api.Match, error) {
	b.mu.Lock()
	b.calls = append(b.calls, searchCall{serial, fileID})
	ch := b.block[serial]
	res, err := b.results[serial], b.err
	b.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return res, err
}

func (b *fakeBackend) Update(ctx context.Context, in api.UpdateRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, in)
	return b.updateMsg, b.updateErr
}

func (b *fakeBackend) Calls() []searchCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]searchCall(nil), b.calls...)
}

type fixedDataset struct{ ds *session.Dataset }

func (f fixedDataset) Dataset(context.Context) (*session.Dataset, error) { return f.ds, nil }

type harness struct {
	c       *Controller
	clock   *fakeClock
	backend *fakeBackend
	notes   *notify.Recorder
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:   &fakeClock{},
		backend: &fakeBackend{results: map[string][]api.Match{}},
		notes:   &notify.Recorder{},
	}
	opts := Options{
		Backend:  h.backend,
		Datasets: fixedDataset{&session.Dataset{ID: 7, Name: "stock.xlsx"}},
		Auth:     AuthFunc(func() bool { return true }),
		Notifier: h.notes,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h.c = NewController(opts)
	h.c.after = h.clock.after
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) typeText(s string) {
	for i := 1; i <= len(s); i++ {
		h.c.Input(s[:i])
	}
}

func TestShortQueriesNeverSearch(t *testing.T) {
	h := newHarness(t)

	h.typeText("123")
	assert.Zero(t, h.clock.live())
	h.clock.elapse()

	assert.Empty(t, h.backend.Calls())
	assert.Empty(t, h.notes.Notices())
}

func TestDebounce_OneCallForFinalValue(t *testing.T) {
	h := newHarness(t)

	h.typeText("123456")
	require.Equal(t, 1, h.clock.live())
	h.clock.elapse()

	assert.Equal(t, []searchCall{{"123456", 7}}, h.backend.Calls())
	assert.Equal(t, DefaultDebounce, h.clock.timers[len(h.clock.timers)-1].d)
}

func TestDebounce_ShorteningCancelsPendingSearch(t *testing.T) {
	h := newHarness(t)

	h.c.Input("12345")
	h.c.Input("123")
	h.clock.elapse()

	assert.Empty(t, h.backend.Calls())
}

func TestExactMatchAutoSelects(t *testing.T) {
	h := newHarness(t)
	h.backend.results["12345"] = []api.Match{{SerialNumber: "12345", ScannedWarehouse: "Sofia"}}

	h.c.Input("12345")
	h.clock.elapse()

	v := h.c.View()
	require.NotNil(t, v.Result)
	assert.False(t, v.Result.Placeholder)
	assert.Equal(t, "12345", v.Result.Match.SerialNumber)
	assert.Equal(t, "Sofia", v.Result.Warehouse)
	assert.Empty(t, v.Result.Conditions)
	assert.False(t, v.DropdownOpen)
	assert.Equal(t, 1, h.notes.Count(notify.Success, MsgMatchFound))
	assert.Zero(t, h.notes.Count(notify.Info, MsgNoMatch))
}

func TestExactMatchAmongSeveral(t *testing.T) {
	h := newHarness(t)
	h.backend.results["12345"] = []api.Match{{SerialNumber: "123450"}, {SerialNumber: "12345"}}

	h.c.Input("12345")
	h.clock.elapse()

	v := h.c.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, "12345", v.Result.Match.SerialNumber)
	assert.False(t, v.DropdownOpen)
}

func TestZeroMatchesGivesPlaceholder(t *testing.T) {
	h := newHarness(t)

	h.c.Input("99999")
	h.clock.elapse()

	v := h.c.View()
	require.NotNil(t, v.Result)
	assert.True(t, v.Result.Placeholder)
	assert.Equal(t, "99999", v.Result.Match.SerialNumber)
	assert.Empty(t, v.Matches)
	assert.Equal(t, 1, h.notes.Count(notify.Info, MsgNoMatch))
}

func TestSelectionDoesNotSearchAgain(t *testing.T) {
	h := newHarness(t)
	h.backend.results["1234"] = []api.Match{{SerialNumber: "123401"}, {SerialNumber: "123402"}}

	h.c.Input("1234")
	h.clock.elapse()
	require.True(t, h.c.View().DropdownOpen)

	require.True(t, h.c.Select(1))
	v := h.c.View()
	assert.Equal(t, "123402", v.Query)
	assert.False(t, v.DropdownOpen)

	// The UI echoes the selected serial back into the input.
	h.c.Input("123402")
	assert.Zero(t, h.clock.live())
	h.clock.elapse()
	assert.Len(t, h.backend.Calls(), 1)
	assert.NotNil(t, h.c.View().Result, "echo must not discard the selection")

	// Typing something new does search.
	h.c.Input("1234021")
	h.clock.elapse()
	assert.Len(t, h.backend.Calls(), 2)
}

func TestNewQueryDiscardsEditableResult(t *testing.T) {
	h := newHarness(t)

	h.c.Input("99999")
	h.clock.elapse()
	require.NotNil(t, h.c.View().Result)

	h.c.Input("9999")
	assert.Nil(t, h.c.View().Result)
}

func TestKeyboardNavigation(t *testing.T) {
	h := newHarness(t)
	h.backend.results["1234"] = []api.Match{{SerialNumber: "A1234"}, {SerialNumber: "B1234"}, {SerialNumber: "C1234"}}
	h.c.Input("1234")
	h.clock.elapse()

	assert.Equal(t, -1, h.c.View().Focused)
	h.c.Down()
	assert.Equal(t, 0, h.c.View().Focused)
	h.c.Down()
	h.c.Down()
	assert.Equal(t, 2, h.c.View().Focused)
	h.c.Down()
	assert.Equal(t, 0, h.c.View().Focused, "down wraps")
	h.c.Up()
	assert.Equal(t, 2, h.c.View().Focused, "up wraps")

	h.c.Escape()
	v := h.c.View()
	assert.False(t, v.DropdownOpen)
	assert.Equal(t, -1, v.Focused)
	assert.False(t, h.c.Enter(), "enter with closed dropdown")
	h.c.Down()
	assert.Equal(t, -1, h.c.View().Focused, "keys ignored while closed")
}

func TestEnterSelectsFocused(t *testing.T) {
	h := newHarness(t)
	h.backend.results["1234"] = []api.Match{{SerialNumber: "A1234"}, {SerialNumber: "B1234"}}
	h.c.Input("1234")
	h.clock.elapse()

	h.c.Up()
	require.True(t, h.c.Enter())
	assert.Equal(t, "B1234", h.c.View().Result.Match.SerialNumber)
}

func TestStaleResponseIsDropped(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.backend.block = map[string]chan struct{}{"1234": release}
	h.backend.results["1234"] = []api.Match{{SerialNumber: "1234"}}
	h.backend.results["12345"] = []api.Match{{SerialNumber: "12345"}}

	h.c.Input("1234")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.clock.elapse()
	}()
	require.Eventually(t, func() bool { return len(h.backend.Calls()) == 1 }, time.Second, time.Millisecond)

	h.c.Input("12345")
	h.clock.elapse()
	require.Equal(t, "12345", h.c.View().Result.Match.SerialNumber)

	close(release)
	<-done

	v := h.c.View()
	assert.Equal(t, "12345", v.Query)
	assert.Equal(t, "12345", v.Result.Match.SerialNumber)
	assert.Equal(t, 1, h.notes.Count(notify.Success, MsgMatchFound))
}

// A reply for an older query that lands while newer input is still in its
// quiet interval must not replace that input or stop it being looked up.
func TestStaleResponseDuringQuietInterval(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.backend.block = map[string]chan struct{}{"1234": release}
	h.backend.results["1234"] = []api.Match{{SerialNumber: "1234"}}
	h.backend.results["12346"] = []api.Match{{SerialNumber: "12346"}}

	h.c.Input("1234")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.clock.elapse()
	}()
	require.Eventually(t, func() bool { return len(h.backend.Calls()) == 1 }, time.Second, time.Millisecond)

	h.c.Input("12346")
	close(release)
	<-done

	v := h.c.View()
	require.Equal(t, "12346", v.Query)
	assert.Nil(t, v.Result)
	assert.Zero(t, h.notes.Count(notify.Success, MsgMatchFound))

	h.clock.elapse()
	assert.Equal(t, []searchCall{{"1234", 7}, {"12346", 7}}, h.backend.Calls())
	v = h.c.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, "12346", v.Result.Match.SerialNumber)
	assert.Equal(t, 1, h.notes.Count(notify.Success, MsgMatchFound))
}

func TestNoSearchWithoutAuthOrDataset(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Auth = AuthFunc(func() bool { return false }) })
	h.c.Input("12345")
	h.clock.elapse()
	assert.Empty(t, h.backend.Calls())

	h = newHarness(t, func(o *Options) { o.Datasets = fixedDataset{} })
	h.c.Input("12345")
	h.clock.elapse()
	assert.Empty(t, h.backend.Calls())
	assert.Equal(t, 1, h.notes.Count(notify.Info, MsgNoDataset))
}

func TestSearchFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.err = api.ErrUnavailable

	h.c.Input("12345")
	h.clock.elapse()

	assert.Equal(t, 1, h.notes.Count(notify.Error, MsgSearchFailed))
	assert.Nil(t, h.c.View().Result)
	assert.False(t, h.c.View().Pending)
}

func TestSearchUnauthorizedIsSilent(t *testing.T) {
	h := newHarness(t)
	h.backend.err = api.ErrUnauthorized

	h.c.Input("12345")
	h.clock.elapse()

	assert.Empty(t, h.notes.Notices())
}

func TestSearchNow(t *testing.T) {
	h := newHarness(t)
	h.backend.results["QR-1"] = []api.Match{{SerialNumber: "QR-1"}}

	h.c.SearchNow("QR-1")

	assert.Equal(t, []searchCall{{"QR-1", 7}}, h.backend.Calls())
	assert.Equal(t, "QR-1", h.c.View().Result.Match.SerialNumber)
}

func TestConditionsAndWarehouse(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.c.ToggleCondition("Good"), "no result yet")

	h.c.Input("99999")
	h.clock.elapse()

	assert.True(t, h.c.ToggleCondition("Good"))
	assert.True(t, h.c.ToggleCondition("Scratched"))
	assert.True(t, h.c.ToggleCondition("Dirty"))
	assert.True(t, h.c.ToggleCondition("Scratched"))
	assert.True(t, h.c.SetWarehouse("Varna"))

	v := h.c.View()
	assert.Equal(t, []string{"Good", "Dirty"}, v.Result.Conditions)
	assert.Equal(t, "Varna", v.Result.Warehouse)
}

func TestSave_ValidationMakesNoCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.c.Save(ctx)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, 1, h.notes.Count(notify.Warning, MsgEmptySerial))

	h.c.Input("12345")
	h.clock.elapse()
	h.c.SetWarehouse("Sofia")

	err = h.c.Save(ctx)
	require.ErrorIs(t, err, common.ErrValidation)
	var verrs common.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "conditions", verrs[0].Field)

	h.c.ToggleCondition("Good")
	h.c.SetWarehouse("")
	require.ErrorIs(t, h.c.Save(ctx), common.ErrValidation)

	assert.Empty(t, h.backend.updates)
	assert.Equal(t, 2, h.notes.Count(notify.Warning, MsgSaveIncomplete))
}

func TestSave_SuccessResetsEverything(t *testing.T) {
	h := newHarness(t)
	h.backend.updateMsg = "Row updated successfully!"
	h.backend.results["12345"] = []api.Match{{SerialNumber: "12345"}}
	ctx := context.Background()

	h.c.Input("12345")
	h.clock.elapse()
	h.c.ToggleCondition("Good")
	h.c.ToggleCondition("Scratched")
	h.c.SetWarehouse("Sofia")

	require.NoError(t, h.c.Save(ctx))

	assert.Equal(t, []api.UpdateRequest{{
		FileID: 7, SerialNumber: "12345", Condition: "Good, Scratched", ScannedWarehouse: "Sofia",
	}}, h.backend.updates)
	assert.Equal(t, View{Focused: -1, Matches: []api.Match{}}, normalize(h.c.View()))
	assert.Equal(t, 1, h.notes.Count(notify.Success, "Row updated successfully!"))

	// The serial is no longer "resolved": typing it again searches.
	h.c.Input("12345")
	h.clock.elapse()
	assert.Len(t, h.backend.Calls(), 2)
}

func normalize(v View) View {
	if v.Matches == nil {
		v.Matches = []api.Match{}
	}
	return v
}

func TestSave_PlaceholderUsesQuery(t *testing.T) {
	h := newHarness(t)
	h.c.Input("NEW-1")
	h.clock.elapse()
	h.c.ToggleCondition("Good")
	h.c.SetWarehouse("Sofia")

	require.NoError(t, h.c.Save(context.Background()))
	require.Len(t, h.backend.updates, 1)
	assert.Equal(t, "NEW-1", h.backend.updates[0].SerialNumber)
	assert.Equal(t, 1, h.notes.Count(notify.Success, MsgSaved))
}

func TestSave_FailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.backend.updateErr = &api.StatusError{Code: 500}
	h.c.Input("NEW-1")
	h.clock.elapse()
	h.c.ToggleCondition("Good")
	h.c.SetWarehouse("Sofia")
	before := h.c.View()

	require.Error(t, h.c.Save(context.Background()))

	assert.Equal(t, before, h.c.View())
	assert.Equal(t, 1, h.notes.Count(notify.Error, MsgSaveFailed))
}

func TestSave_NoDataset(t *testing.T) {
	ds := &fixedDatasetSwitch{ds: &session.Dataset{ID: 7}}
	h := newHarness(t, func(o *Options) { o.Datasets = ds })
	h.c.Input("NEW-1")
	h.clock.elapse()
	h.c.ToggleCondition("Good")
	h.c.SetWarehouse("Sofia")

	ds.set(nil)
	require.ErrorIs(t, h.c.Save(context.Background()), common.ErrValidation)
	assert.Empty(t, h.backend.updates)
	assert.Equal(t, 1, h.notes.Count(notify.Error, MsgNoDataset))
}

type fixedDatasetSwitch struct {
	mu sync.Mutex
	ds *session.Dataset
}

func (f *fixedDatasetSwitch) set(ds *session.Dataset) {
	f.mu.Lock()
	f.ds = ds
	f.mu.Unlock()
}

func (f *fixedDatasetSwitch) Dataset(context.Context) (*session.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ds, nil
}

func TestClose_NoUpdatesAfterTeardown(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.backend.block = map[string]chan struct{}{"12345": release}
	h.backend.results["12345"] = []api.Match{{SerialNumber: "12345"}}

	var changes int
	var mu sync.Mutex
	h.c.onChange = func(View) {
		mu.Lock()
		changes++
		mu.Unlock()
	}

	h.c.Input("12345")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.clock.elapse()
	}()
	require.Eventually(t, func() bool { return len(h.backend.Calls()) == 1 }, time.Second, time.Millisecond)

	h.c.Input("67890")
	h.c.Close()
	mu.Lock()
	before := changes
	mu.Unlock()

	close(release)
	<-done
	h.clock.elapse()
	h.c.Input("11111")

	mu.Lock()
	assert.Equal(t, before, changes)
	mu.Unlock()
	assert.Len(t, h.backend.Calls(), 1)
	assert.Empty(t, h.notes.Notices())
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.c.Input("12345")
	h.c.Reset()
	h.clock.elapse()

	assert.Empty(t, h.backend.Calls())
	assert.Equal(t, "", h.c.View().Query)
}
