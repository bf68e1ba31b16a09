// Package cli is the interactive terminal front end of the asset tracking
// client.
//
// Each App is one browsing context: it has its own page, its own auth state
// and its own current dataset, and shares the durable session with every
// other App using the same database (and, with Redis configured, with
// other machines). Logging out in one context logs out all of them.
//
// Pages are paths, as in a web router: "/", "/login" and "/register" are
// public; "/dashboard", "/search", "/upload", "/export", "/catalog" and
// "/routing" are rendered through auth.Guard and redirect to "/login" when
// nobody is logged in.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See runREPL for the command list and App.Search for the search page.
package cli
