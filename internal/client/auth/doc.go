// Package auth owns the client's authentication state.
//
// Manager is the per-browsing-context state machine
// (Initializing → Authenticated | Unauthenticated). It derives its state from
// the session store, follows credential changes made by other contexts
// through the store's event bus, and enforces the public-route allow-list by
// redirecting unauthenticated users to the login page.
//
// Guard gates protected content on the manager's state. Service performs the
// login and registration round trips against the REST API and hands the
// result to the Manager.
package auth
