// Package routing backs the daily delivery plan screen: routes for a date,
// grouped by company, with the terminal serial of each outlet editable by
// hand or by scan.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/client/session"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
)

const (
	MsgNoDate         = "Please select a date."
	MsgNoRoutes       = "No data found for the selected date."
	MsgLoaded         = "Routes loaded successfully."
	MsgLoadFailed     = "Failed to load data. Please try again."
	MsgSaved          = "Saved successfully."
	MsgSaveFailed     = "Failed to save data. Please try again."
	MsgNothingToSave  = "Load routes before saving."
	MsgUnknownOutlet  = "No such outlet in the loaded routes."
	MsgScanNotAllowed = "Only install routes take a scanned serial number."
)

type API interface {
	Routes(ctx context.Context, date time.Time, user string) ([]api.Route, error)
	UpdateRoutes(ctx context.Context, updates map[int64]api.RouteUpdate) (string, error)
}

// Company is one expandable group of the plan.
type Company struct {
	Name     string
	Expanded bool
	Routes   []api.Route
}

// Service holds the loaded plan and the pending serial edits.
type Service struct {
	api      API
	notifier notify.Notifier
	log      logging.Logger

	mu       sync.Mutex
	date     time.Time
	routes   []api.Route
	serials  map[int64]string
	expanded map[string]bool
}

func NewService(a API, n notify.Notifier, log logging.Logger) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{api: a, notifier: n, log: log, expanded: map[string]bool{}}
}

func (s *Service) notify(level notify.Level, msg string) {
	s.notifier.Notify(notify.Notice{Level: level, Message: msg})
}

// Load fetches the plan for date. Staff see every transport company;
// anyone else only the routes assigned to their username. Edits made to a
// previous plan are discarded.
func (s *Service) Load(ctx context.Context, date time.Time, user *session.UserProfile) error {
	if date.IsZero() {
		s.notify(notify.Warning, MsgNoDate)
		return (&common.Validator{}).Check(false, "date", "is required").Err()
	}
	var carrier string
	if user != nil && !user.IsStaff {
		carrier = user.Username
	}

	routes, err := s.api.Routes(ctx, date, carrier)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.log.Warn(ctx, "routes load failed", "date", date.Format(api.RouteDateLayout), "error", err)
			s.notify(notify.Error, MsgLoadFailed)
		}
		return fmt.Errorf("load routes: %w", err)
	}

	serials := make(map[int64]string, len(routes))
	for _, r := range routes {
		serials[r.ID] = r.SerialNumber
	}
	s.mu.Lock()
	s.date = date
	s.routes = routes
	s.serials = serials
	s.mu.Unlock()

	if len(routes) == 0 {
		s.notify(notify.Info, MsgNoRoutes)
	} else {
		s.notify(notify.Success, MsgLoaded)
	}
	return nil
}

func (s *Service) Date() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Companies groups the plan by company in the order companies first
// appear. Serials reflect pending edits.
func (s *Service) Companies() []Company {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Company
	idx := map[string]int{}
	for _, r := range s.routes {
		r.SerialNumber = s.serials[r.ID]
		i, ok := idx[r.CompanyName]
		if !ok {
			i = len(out)
			idx[r.CompanyName] = i
			out = append(out, Company{Name: r.CompanyName, Expanded: s.expanded[r.CompanyName]})
		}
		out[i].Routes = append(out[i].Routes, r)
	}
	return out
}

// Toggle expands or collapses a company and reports whether it is now
// expanded.
func (s *Service) Toggle(company string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expanded[company] {
		delete(s.expanded, company)
		return false
	}
	s.expanded[company] = true
	return true
}

func (s *Service) findLocked(id int64) (api.Route, bool) {
	for _, r := range s.routes {
		if r.ID == id {
			return r, true
		}
	}
	return api.Route{}, false
}

// SetSerial edits the serial typed for outlet id.
func (s *Service) SetSerial(id int64, serial string) error {
	s.mu.Lock()
	_, ok := s.findLocked(id)
	if ok {
		s.serials[id] = serial
	}
	s.mu.Unlock()

	if !ok {
		s.notify(notify.Warning, MsgUnknownOutlet)
		return (&common.Validator{}).Check(false, "id", "unknown outlet").Err()
	}
	return nil
}

// Scan fills outlet id with a scanned code and expands its company so the
// outlet stays in view. Only install routes can be scanned.
func (s *Service) Scan(id int64, code string) error {
	s.mu.Lock()
	r, ok := s.findLocked(id)
	install := ok && r.TypeOfRoute == api.RouteTypeInstall
	if install {
		s.serials[id] = code
		s.expanded[r.CompanyName] = true
	}
	s.mu.Unlock()

	v := &common.Validator{}
	switch {
	case !ok:
		s.notify(notify.Warning, MsgUnknownOutlet)
		return v.Check(false, "id", "unknown outlet").Err()
	case !install:
		s.notify(notify.Warning, MsgScanNotAllowed)
		return v.Check(false, "id", "not an install route").Err()
	}
	return nil
}

// Save sends the serial of every loaded outlet in one request.
func (s *Service) Save(ctx context.Context) (string, error) {
	s.mu.Lock()
	updates := make(map[int64]api.RouteUpdate, len(s.serials))
	for id, serial := range s.serials {
		updates[id] = api.RouteUpdate{SerialNumber: serial}
	}
	s.mu.Unlock()

	if len(updates) == 0 {
		s.notify(notify.Warning, MsgNothingToSave)
		return "", (&common.Validator{}).Check(false, "routes", "none loaded").Err()
	}

	msg, err := s.api.UpdateRoutes(ctx, updates)
	if err != nil {
		if !errors.Is(err, api.ErrUnauthorized) {
			s.log.Warn(ctx, "routes save failed", "count", len(updates), "error", err)
			s.notify(notify.Error, MsgSaveFailed)
		}
		return "", fmt.Errorf("save routes: %w", err)
	}
	s.log.Info(ctx, "routes saved", "count", len(updates))
	s.notify(notify.Success, MsgSaved)
	return msg, nil
}

// Reset forgets the loaded plan, edits and expanded companies.
func (s *Service) Reset() {
	s.mu.Lock()
	s.date = time.Time{}
	s.routes = nil
	s.serials = nil
	s.expanded = map[string]bool{}
	s.mu.Unlock()
}
