package auth

const (
	PathLanding  = "/"
	PathLogin    = "/login"
	PathRegister = "/register"
)

var publicPaths = map[string]struct{}{
	PathLanding:  {},
	PathLogin:    {},
	PathRegister: {},
}

// IsPublic reports whether path may be viewed without logging in.
func IsPublic(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// Navigator is the router the manager steers.
type Navigator interface {
	// Current returns the path being shown.
	Current() string
	// Redirect moves to path, keeping in-memory page state.
	Redirect(path string)
	// Reset moves to path and discards all in-memory page state.
	Reset(path string)
}
