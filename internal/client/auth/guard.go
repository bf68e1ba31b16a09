package auth

// StateSource is what a Guard reads.
type StateSource interface {
	State() State
}

// Guard shows protected content only once loading is done and a user is
// logged in. It never redirects; that is the Manager's job.
type Guard struct {
	src StateSource
}

func NewGuard(src StateSource) Guard {
	return Guard{src: src}
}

// Allowed reports whether protected content may be shown right now.
func (g Guard) Allowed() bool {
	st := g.src.State()
	return !st.IsLoading && st.IsAuthenticated
}

// Render runs content when allowed and reports whether it did.
func (g Guard) Render(content func()) bool {
	if !g.Allowed() {
		return false
	}
	content()
	return true
}
