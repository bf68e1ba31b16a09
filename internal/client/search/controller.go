// Package search drives the serial-number lookup screen: debounced incremental
// search, a navigable match list, and saving scan results back to the
// current dataset.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"github.com/dmitrijs2005/assettrack/internal/metrics"
)

const (
	DefaultDebounce  = 500 * time.Millisecond
	DefaultMinLength = 4
)

const (
	MsgMatchFound     = "Match found!"
	MsgNoMatch        = `No match found. Click "Save" to add in the database.`
	MsgSearchFailed   = "Failed to perform search. Please try again."
	MsgNoDataset      = "No database found. Please upload database first."
	MsgEmptySerial    = "Please enter a serial number or scan a QR Code."
	MsgSaveIncomplete = "Please fill both condition and scanned warehouse fields."
	MsgSaveFailed     = "Failed to save changes. Please try again."
	MsgSaved          = "Changes saved successfully."
)

// Backend is the slice of the REST client the controller uses.
type Backend interface {
	Search(ctx context.Context, serial string, fileID int64) ([]api.Match, error)
	Update(ctx context.Context, in api.UpdateRequest) (string, error)
}

// DatasetSource yields the dataset searches run against; nil means none.
type DatasetSource interface {
	Dataset(ctx context.Context) (*session.Dataset, error)
}

// AuthSource reports whether a user is logged in.
type AuthSource interface {
	IsAuthenticated() bool
}

// AuthFunc adapts a plain func to AuthSource.
type AuthFunc func() bool

func (f AuthFunc) IsAuthenticated() bool { return f() }

type stopper interface {
	Stop() bool
}

func afterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

type Config struct {
	Debounce  time.Duration
	MinLength int
}

// EditableResult is the record being annotated: a selected match, or a
// placeholder keyed by the typed query when nothing matched.
type EditableResult struct {
	Match       api.Match
	Placeholder bool
	Conditions  []string
	Warehouse   string
}

// View is a snapshot for rendering.
type View struct {
	Query        string
	Matches      []api.Match
	DropdownOpen bool
	// Focused indexes Matches; -1 means the text input has focus.
	Focused int
	Result  *EditableResult
	Pending bool
}

type Options struct {
	Config   Config
	Backend  Backend
	Datasets DatasetSource
	Auth     AuthSource
	Notifier notify.Notifier
	Logger   logging.Logger
	Metrics  *metrics.Metrics
	// OnChange receives a snapshot after every state change.
	OnChange func(View)
}

// Controller is one search screen. Input, key handling and Save may be
// called from the UI goroutine while a lookup is in flight; lookups run on
// the debounce timer's goroutine.
type Controller struct {
	cfg      Config
	backend  Backend
	datasets DatasetSource
	auth     AuthSource
	notifier notify.Notifier
	log      logging.Logger
	metrics  *metrics.Metrics
	onChange func(View)
	after    func(time.Duration, func()) stopper

	mu       sync.Mutex
	query    string
	resolved string
	matches  []api.Match
	open     bool
	focus    int
	result   *EditableResult
	timer    stopper
	seq      uint64
	cancel   context.CancelFunc
	pending  bool
	closed   bool
}

func NewController(opts Options) *Controller {
	c := &Controller{
		cfg:      opts.Config,
		backend:  opts.Backend,
		datasets: opts.Datasets,
		auth:     opts.Auth,
		notifier: opts.Notifier,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onChange: opts.OnChange,
		after:    afterFunc,
		focus:    -1,
	}
	if c.cfg.Debounce <= 0 {
		c.cfg.Debounce = DefaultDebounce
	}
	if c.cfg.MinLength <= 0 {
		c.cfg.MinLength = DefaultMinLength
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.log == nil {
		c.log = logging.Nop{}
	}
	return c
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Query:        c.query,
		Matches:      append([]api.Match(nil), c.matches...),
		DropdownOpen: c.open,
		Focused:      c.focus,
		Pending:      c.pending,
	}
	if c.result != nil {
		r := *c.result
		r.Conditions = append([]string(nil), c.result.Conditions...)
		v.Result = &r
	}
	return v
}

// unlockAndEmit releases the lock, then delivers notices and the change
// callback.
func (c *Controller) unlockAndEmit(notices ...notify.Notice) {
	v := c.viewLocked()
	onChange := c.onChange
	c.mu.Unlock()

	for _, n := range notices {
		c.notifier.Notify(n)
	}
	if onChange != nil {
		onChange(v)
	}
}

// invalidateLocked makes any in-flight lookup stale and cancels it.
func (c *Controller) invalidateLocked() {
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.pending = false
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Input is a change of the search box. A value equal to the last resolved
// serial is ignored so that filling the box after a selection does not
// search again.
func (c *Controller) Input(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.resolved != "" && value == c.resolved {
		c.query = value
		c.mu.Unlock()
		return
	}

	c.query = value
	c.resolved = ""
	c.result = nil
	c.stopTimerLocked()
	c.invalidateLocked()

	if utf8.RuneCountInString(value) < c.cfg.MinLength {
		c.matches = nil
		c.open = false
		c.focus = -1
		c.unlockAndEmit()
		return
	}

	c.timer = c.after(c.cfg.Debounce, func() { c.fire(value) })
	c.unlockAndEmit()
}

// SearchNow looks value up without waiting for the quiet interval; used
// for scanned codes.
func (c *Controller) SearchNow(value string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.query = value
	c.resolved = ""
	c.result = nil
	c.stopTimerLocked()
	c.mu.Unlock()

	c.fire(value)
}

// fire dispatches the lookup for query if it is still the current one.
func (c *Controller) fire(query string) {
	c.mu.Lock()
	if c.closed || c.query != query {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if query == "" {
		c.notifier.Notify(notify.Notice{Level: notify.Error, Message: MsgEmptySerial})
		return
	}
	if c.auth != nil && !c.auth.IsAuthenticated() {
		c.log.Debug(context.Background(), "search skipped, not authenticated")
		return
	}
	ds := c.dataset(context.Background())
	if ds == nil {
		c.notifier.Notify(notify.Notice{Level: notify.Info, Message: MsgNoDataset})
		return
	}

	c.mu.Lock()
	if c.closed || c.query != query {
		c.mu.Unlock()
		return
	}
	c.invalidateLocked()
	seq := c.seq
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.pending = true
	c.unlockAndEmit()

	c.metrics.SearchDispatched()
	c.log.Debug(ctx, "search dispatched", "query", query, "seq", seq, "dataset", ds.ID)
	matches, err := c.backend.Search(ctx, query, ds.ID)
	cancel()
	c.apply(seq, query, matches, err)
}

func (c *Controller) dataset(ctx context.Context) *session.Dataset {
	if c.datasets == nil {
		return nil
	}
	ds, err := c.datasets.Dataset(ctx)
	if err != nil {
		c.log.Warn(ctx, "read dataset pointer failed", "error", err)
		return nil
	}
	return ds
}

// apply installs a lookup result unless a newer lookup or newer input
// superseded it, or the controller was closed.
func (c *Controller) apply(seq uint64, query string, matches []api.Match, err error) {
	c.mu.Lock()
	if c.closed || seq != c.seq || c.query != query {
		c.mu.Unlock()
		c.metrics.StaleResponse()
		c.log.Debug(context.Background(), "stale search response dropped", "query", query, "seq", seq)
		return
	}
	c.pending = false
	c.cancel = nil

	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, api.ErrUnauthorized):
			c.unlockAndEmit()
		default:
			c.metrics.SearchFailed()
			c.log.Warn(context.Background(), "search failed", "query", query, "error", err)
			c.unlockAndEmit(notify.Notice{Level: notify.Error, Message: MsgSearchFailed})
		}
		return
	}

	if len(matches) == 0 {
		c.matches = nil
		c.open = false
		c.focus = -1
		c.result = &EditableResult{Match: api.Match{SerialNumber: query}, Placeholder: true}
		c.unlockAndEmit(notify.Notice{Level: notify.Info, Message: MsgNoMatch})
		return
	}

	c.matches = matches
	c.focus = -1
	for _, m := range matches {
		if m.SerialNumber == query {
			c.selectLocked(m)
			c.unlockAndEmit(notify.Notice{Level: notify.Success, Message: MsgMatchFound})
			return
		}
	}
	c.open = true
	c.unlockAndEmit()
}

func (c *Controller) selectLocked(m api.Match) {
	c.stopTimerLocked()
	c.result = &EditableResult{Match: m, Warehouse: m.ScannedWarehouse}
	c.open = false
	c.focus = -1
	c.query = m.SerialNumber
	c.resolved = m.SerialNumber
}

// Select picks matches[i] from the dropdown.
func (c *Controller) Select(i int) bool {
	c.mu.Lock()
	if c.closed || i < 0 || i >= len(c.matches) {
		c.mu.Unlock()
		return false
	}
	c.selectLocked(c.matches[i])
	c.unlockAndEmit()
	return true
}

// Down moves focus to the next match, wrapping around.
func (c *Controller) Down() {
	c.moveFocus(1)
}

// Up moves focus to the previous match, wrapping around.
func (c *Controller) Up() {
	c.moveFocus(-1)
}

func (c *Controller) moveFocus(delta int) {
	c.mu.Lock()
	n := len(c.matches)
	if c.closed || !c.open || n == 0 {
		c.mu.Unlock()
		return
	}
	switch {
	case c.focus < 0 && delta < 0:
		c.focus = n - 1
	case c.focus < 0:
		c.focus = 0
	default:
		c.focus = ((c.focus+delta)%n + n) % n
	}
	c.unlockAndEmit()
}

// Enter selects the focused match. It reports whether one was selected.
func (c *Controller) Enter() bool {
	c.mu.Lock()
	focus, open := c.focus, c.open
	c.mu.Unlock()
	if !open || focus < 0 {
		return false
	}
	return c.Select(focus)
}

// Escape closes the dropdown and returns focus to the input.
func (c *Controller) Escape() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.open = false
	c.focus = -1
	c.unlockAndEmit()
}

// ToggleCondition adds or removes a condition tag on the editable result.
func (c *Controller) ToggleCondition(name string) bool {
	c.mu.Lock()
	if c.closed || c.result == nil || name == "" {
		c.mu.Unlock()
		return false
	}
	conds := c.result.Conditions
	for i, x := range conds {
		if x == name {
			c.result.Conditions = append(conds[:i:i], conds[i+1:]...)
			c.unlockAndEmit()
			return true
		}
	}
	c.result.Conditions = append(conds, name)
	c.unlockAndEmit()
	return true
}

func (c *Controller) SetWarehouse(name string) bool {
	c.mu.Lock()
	if c.closed || c.result == nil {
		c.mu.Unlock()
		return false
	}
	c.result.Warehouse = name
	c.unlockAndEmit()
	return true
}

// Save writes the editable result back to the dataset. Incomplete input is
// rejected locally with ErrValidation and no request. On success the whole
// screen is reset.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	serial := c.query
	var conds []string
	var warehouse string
	if c.result != nil {
		if c.result.Match.SerialNumber != "" {
			serial = c.result.Match.SerialNumber
		}
		conds = append(conds, c.result.Conditions...)
		warehouse = c.result.Warehouse
	}
	c.mu.Unlock()

	if serial == "" {
		c.metrics.Save("invalid")
		c.notifier.Notify(notify.Notice{Level: notify.Warning, Message: MsgEmptySerial})
		return (&common.Validator{}).Required("serial", serial).Err()
	}
	v := &common.Validator{}
	if err := v.NotEmpty("conditions", len(conds)).Required("warehouse", warehouse).Err(); err != nil {
		c.metrics.Save("invalid")
		c.notifier.Notify(notify.Notice{Level: notify.Warning, Message: MsgSaveIncomplete})
		return err
	}
	ds := c.dataset(ctx)
	if ds == nil {
		c.metrics.Save("invalid")
		c.notifier.Notify(notify.Notice{Level: notify.Error, Message: MsgNoDataset})
		return v.Check(false, "dataset", "no dataset loaded").Err()
	}

	msg, err := c.backend.Update(ctx, api.UpdateRequest{
		FileID:           ds.ID,
		SerialNumber:     serial,
		Condition:        strings.Join(conds, ", "),
		ScannedWarehouse: warehouse,
	})
	if err != nil {
		c.metrics.Save("error")
		if errors.Is(err, api.ErrUnauthorized) {
			return err
		}
		c.log.Warn(ctx, "save failed", "serial", serial, "error", err)
		text := MsgSaveFailed
		var se *api.StatusError
		if errors.As(err, &se) && se.Message != "" {
			text = se.Message
		}
		c.notifier.Notify(notify.Notice{Level: notify.Error, Message: text})
		return err
	}

	c.metrics.Save("ok")
	if msg == "" {
		msg = MsgSaved
	}
	c.log.Info(ctx, "scan saved", "serial", serial, "dataset", ds.ID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.resetLocked()
	c.unlockAndEmit(notify.Notice{Level: notify.Success, Message: msg})
	return nil
}

func (c *Controller) resetLocked() {
	c.stopTimerLocked()
	c.invalidateLocked()
	c.query = ""
	c.resolved = ""
	c.matches = nil
	c.open = false
	c.focus = -1
	c.result = nil
}

// Reset clears the screen and abandons any pending lookup.
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.unlockAndEmit()
}

// Close tears the screen down. Pending and in-flight lookups are abandoned
// and no state changes afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.stopTimerLocked()
	c.invalidateLocked()
	c.closed = true
}
