// Package alert decides which scraped availability is worth telling the
// operator about, and renders the notification text.
//
// Two modes exist. Fixed-date runs confirm presence on one chosen date and
// always alert on every hit. Open discovery compares against the ledger
// and only discloses dates never seen before.
package alert

import (
	"github.com/Mantene/tdf-alerts/internal/ledger"
	"github.com/Mantene/tdf-alerts/internal/scrape"
)

// Item is one alert payload entry: a title plus the dates being disclosed.
type Item struct {
	Title string
	Dates []string
	URL   string
}

// Batch is everything one notification carries. A whole run produces at
// most one batch and therefore at most one delivery.
type Batch struct {
	Items []Item

	// FilterDate is set in fixed-date mode and selects the report layout.
	FilterDate string
}

func (b Batch) Empty() bool { return len(b.Items) == 0 }

// EvaluateFixed builds the batch for a fixed-date run. Every confirmed
// observation alerts; the ledger is intentionally not consulted, so a
// title stays loud for its filter date run after run. Suppression only
// exists in open discovery.
func EvaluateFixed(observations []scrape.Observation, filterDate string) Batch {
	items := make([]Item, 0, len(observations))
	for _, obs := range observations {
		items = append(items, Item{
			Title: obs.Title,
			Dates: []string{filterDate},
			URL:   obs.URL,
		})
	}
	return Batch{Items: items, FilterDate: filterDate}
}

// EvaluateOpen filters observations through the ledger: only titles with
// at least one never-seen date make the batch, and each item discloses
// just those new dates. Titles without dates never alert, known or not.
func EvaluateOpen(observations []scrape.Observation, led *ledger.Ledger) Batch {
	var items []Item
	for _, obs := range observations {
		if len(obs.Dates) == 0 {
			continue
		}
		if !led.HasNewDates(obs.Title, obs.Dates) {
			continue
		}
		items = append(items, Item{
			Title: obs.Title,
			Dates: led.NewDates(obs.Title, obs.Dates),
			URL:   obs.URL,
		})
	}
	return Batch{Items: items}
}
