package events

import (
	"sort"
	"time"

	"github.com/rocky-roll-call/rrc-backend/internal/models"
)

// DayLayout is the calendar key of an upcoming day.
const DayLayout = "2006-01-02"

// Day is one calendar day of the upcoming listing.
type Day struct {
	Date   string         `json:"date"`
	Events []models.Event `json:"events"`
}

// GroupByDay buckets events by the UTC date of their start. Days and the
// events within each day are ordered by start.
func GroupByDay(events []models.Event) []Day {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartsAt.Before(sorted[j].StartsAt) })

	days := []Day{}
	for _, e := range sorted {
		key := e.StartsAt.In(time.UTC).Format(DayLayout)
		if n := len(days); n > 0 && days[n-1].Date == key {
			days[n-1].Events = append(days[n-1].Events, e)
			continue
		}
		days = append(days, Day{Date: key, Events: []models.Event{e}})
	}
	return days
}
