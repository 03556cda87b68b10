// Package scrape finds watched titles and their performance dates on the
// ticketing site.
//
// All DOM heuristics live behind the Source interface. The selectors are
// best-effort: the site sits behind a WAF and its markup can shift, so
// implementations are expected to be replaced wholesale without touching
// the monitor.
package scrape

import "context"

// Observation is one title's scrape result for a single run.
// It is never persisted; the ledger keeps its own history.
type Observation struct {
	Title string
	Dates []string
	URL   string
}

// Source is the capability the monitor needs from the ticketing site.
type Source interface {
	// Authenticate establishes a logged-in session.
	Authenticate(ctx context.Context) error

	// FindTitle searches the offerings listing for name and returns the
	// detail URL of the matching entry. An absent title is ("", nil), not
	// an error. When filterDate is non-empty the listing is narrowed to
	// that date first, so presence means availability on that date.
	FindTitle(ctx context.Context, name, filterDate string) (string, error)

	// ListDates extracts the performance dates advertised at url.
	ListDates(ctx context.Context, url string) ([]string, error)
}
