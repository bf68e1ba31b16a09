package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPages_RedirectKeepsState(t *testing.T) {
	p := newPages("/")
	torn := 0
	p.onReset(func() { torn++ })

	p.Redirect(PathSearch)
	assert.Equal(t, PathSearch, p.Current())
	assert.Zero(t, torn)

	p.Reset("/")
	assert.Equal(t, "/", p.Current())
	assert.Equal(t, 1, torn)

	p.Reset("/")
	assert.Equal(t, 1, torn, "teardown runs once")
}

func TestPages_UnregisteredTeardownDoesNotRun(t *testing.T) {
	p := newPages("/")
	var torn []string
	for i := 0; i < 3; i++ {
		unregister := p.onReset(func() { torn = append(torn, "left") })
		unregister()
	}
	p.onReset(func() { torn = append(torn, "open") })
	assert.Equal(t, 1, p.pending())

	p.Reset("/")
	assert.Equal(t, []string{"open"}, torn)
	assert.Zero(t, p.pending())
}
