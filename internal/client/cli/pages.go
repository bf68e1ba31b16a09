package cli

import (
	"sync"

	"github.com/dmitrijs2005/assettrack/internal/client/auth"
)

const (
	PathDashboard = "/dashboard"
	PathSearch    = "/search"
	PathUpload    = "/upload"
	PathExport    = "/export"
	PathCatalog   = "/catalog"
	PathRouting   = "/routing"
)

// pages is the terminal's router: it only remembers which page is shown.
// Page-local state registers a teardown with onReset.
type pages struct {
	mu       sync.Mutex
	current  string
	teardown map[int]func()
	nextID   int
}

func newPages(start string) *pages {
	return &pages{current: start, teardown: map[int]func(){}}
}

func (p *pages) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *pages) Redirect(path string) {
	p.mu.Lock()
	p.current = path
	p.mu.Unlock()
}

// Reset switches to path and tears down every page's in-memory state.
func (p *pages) Reset(path string) {
	p.mu.Lock()
	p.current = path
	fns := p.teardown
	p.teardown = map[int]func(){}
	p.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// onReset registers fn to run on the next Reset. The returned func drops
// the registration; pages call it when they are left normally.
func (p *pages) onReset(fn func()) (unregister func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.teardown[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.teardown, id)
		p.mu.Unlock()
	}
}

func (p *pages) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.teardown)
}

var _ auth.Navigator = (*pages)(nil)
