// Package catalog keeps the user's technical conditions and warehouse
// names, the choices offered when annotating a scanned asset.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/assettrack/internal/client/api"
	"github.com/dmitrijs2005/assettrack/internal/client/notify"
	"github.com/dmitrijs2005/assettrack/internal/common"
	"github.com/dmitrijs2005/assettrack/internal/logging"
	"golang.org/x/sync/errgroup"
)

const (
	MsgLoadFailed       = "Failed to fetch conditions or warehouses."
	MsgConditionAdded   = "Condition added successfully"
	MsgConditionFailed  = "Failed to add condition."
	MsgConditionDeleted = "Condition deleted successfully."
	MsgConditionDelFail = "Failed to delete condition."
	MsgWarehouseAdded   = "Warehouse added successfully!"
	MsgWarehouseFailed  = "Failed to add warehouse."
	MsgWarehouseDeleted = "Warehouse deleted successfully."
	MsgWarehouseDelFail = "Failed to delete warehouse."
	MsgNameRequired     = "Please enter a name."
)

type API interface {
	Conditions(ctx context.Context) ([]api.Condition, error)
	AddCondition(ctx context.Context, name string) (*api.Condition, error)
	DeleteCondition(ctx context.Context, id int64) error
	Warehouses(ctx context.Context) ([]api.Warehouse, error)
	AddWarehouse(ctx context.Context, name string) (*api.Warehouse, error)
	DeleteWarehouse(ctx context.Context, id int64) error
}

// Service caches both lists and keeps them in step with successful
// changes.
type Service struct {
	api      API
	notifier notify.Notifier
	log      logging.Logger

	mu         sync.RWMutex
	conditions []api.Condition
	warehouses []api.Warehouse
}

func NewService(a API, n notify.Notifier, log logging.Logger) *Service {
	if n == nil {
		n = notify.Discard{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Service{api: a, notifier: n, log: log}
}

func (s *Service) notify(level notify.Level, msg string) {
	s.notifier.Notify(notify.Notice{Level: level, Message: msg})
}

// Load fetches both lists at once. On failure both are emptied.
func (s *Service) Load(ctx context.Context) error {
	var conds []api.Condition
	var whs []api.Warehouse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		conds, err = s.api.Conditions(gctx)
		return err
	})
	g.Go(func() (err error) {
		whs, err = s.api.Warehouses(gctx)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	if err != nil {
		conds, whs = nil, nil
	}
	s.conditions, s.warehouses = conds, whs
	s.mu.Unlock()

	if err != nil {
		s.log.Warn(ctx, "catalog load failed", "error", err)
		s.notify(notify.Error, MsgLoadFailed)
		return fmt.Errorf("load catalog: %w", err)
	}
	return nil
}

func (s *Service) Conditions() []api.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.conditions)
}

func (s *Service) Warehouses() []api.Warehouse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warehouses)
}

// ConditionNames and WarehouseNames feed the search screen's pickers.
func (s *Service) ConditionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.conditions))
	for _, c := range s.conditions {
		out = append(out, c.Name)
	}
	return out
}

func (s *Service) WarehouseNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		out = append(out, w.Name)
	}
	return out
}

func (s *Service) required(name string) error {
	if err := (&common.Validator{}).Required("name", name).Err(); err != nil {
		s.notify(notify.Warning, MsgNameRequired)
		return err
	}
	return nil
}

func (s *Service) AddCondition(ctx context.Context, name string) (*api.Condition, error) {
	if err := s.required(name); err != nil {
		return nil, err
	}
	c, err := s.api.AddCondition(ctx, name)
	if err != nil {
		s.notify(notify.Error, MsgConditionFailed)
		return nil, fmt.Errorf("add condition: %w", err)
	}
	s.mu.Lock()
	s.conditions = append(s.conditions, *c)
	s.mu.Unlock()
	s.notify(notify.Success, MsgConditionAdded)
	return c, nil
}

func (s *Service) DeleteCondition(ctx context.Context, id int64) error {
	if err := s.api.DeleteCondition(ctx, id); err != nil {
		s.notify(notify.Error, MsgConditionDelFail)
		return fmt.Errorf("delete condition %d: %w", id, err)
	}
	s.mu.Lock()
	s.conditions = slices.DeleteFunc(s.conditions, func(c api.Condition) bool { return c.ID == id })
	s.mu.Unlock()
	s.notify(notify.Success, MsgConditionDeleted)
	return nil
}

func (s *Service) AddWarehouse(ctx context.Context, name string) (*api.Warehouse, error) {
	if err := s.required(name); err != nil {
		return nil, err
	}
	w, err := s.api.AddWarehouse(ctx, name)
	if err != nil {
		s.notify(notify.Error, MsgWarehouseFailed)
		return nil, fmt.Errorf("add warehouse: %w", err)
	}
	s.mu.Lock()
	s.warehouses = append(s.warehouses, *w)
	s.mu.Unlock()
	s.notify(notify.Success, MsgWarehouseAdded)
	return w, nil
}

func (s *Service) DeleteWarehouse(ctx context.Context, id int64) error {
	if err := s.api.DeleteWarehouse(ctx, id); err != nil {
		s.notify(notify.Error, MsgWarehouseDelFail)
		return fmt.Errorf("delete warehouse %d: %w", id, err)
	}
	s.mu.Lock()
	s.warehouses = slices.DeleteFunc(s.warehouses, func(w api.Warehouse) bool { return w.ID == id })
	s.mu.Unlock()
	s.notify(notify.Success, MsgWarehouseDeleted)
	return nil
}

