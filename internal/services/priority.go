package services

import (
	"sort"
	"time"

	"pronto-backend/internal/models"
)

const (
	// DefaultMaxRadiusMiles is the normal delivery radius used to normalize
	// the distance factor when none is configured
	DefaultMaxRadiusMiles = 10.0

	// DriveMinutesPerMile is the straight-line fallback when no drive-time
	// estimate is available
	DriveMinutesPerMile = 2.5

	// scheduledPrepBufferMin is the fixed prep/load buffer on top of the
	// estimated drive time for scheduled orders
	scheduledPrepBufferMin = 10.0

	// scheduledUrgencyBoost weights promised orders above walk-in waits
	scheduledUrgencyBoost = 2.0
)

// PriorityScorer computes dispatch urgency scores for delivery orders.
// Higher means more urgent. Scores only order the queue, they never gate
// eligibility.
type PriorityScorer struct {
	MaxRadiusMiles float64
}

func NewPriorityScorer(maxRadiusMiles float64) *PriorityScorer {
	if maxRadiusMiles <= 0 {
		maxRadiusMiles = DefaultMaxRadiusMiles
	}
	return &PriorityScorer{MaxRadiusMiles: maxRadiusMiles}
}

// Score returns the urgency of an order at the given time.
//
// Regular orders grow with time since placement, scheduled orders grow as
// their promised time approaches. Both are weighted up by distance so far
// deliveries get on a route before their wait turns unreasonable.
func (s *PriorityScorer) Score(order *models.DeliveryOrder, now time.Time) float64 {
	if order.IsScheduled() {
		return s.scoreScheduled(order, now)
	}
	return s.scoreRegular(order, now)
}

func (s *PriorityScorer) scoreRegular(order *models.DeliveryOrder, now time.Time) float64 {
	if order.CreatedAt == 0 {
		return 0
	}
	waiting := order.WaitingMinutes(now)
	if waiting < 0 {
		waiting = 0
	}
	return waiting * s.distanceFactor(order.Distance())
}

func (s *PriorityScorer) scoreScheduled(order *models.DeliveryOrder, now time.Time) float64 {
	dist := order.Distance()
	leadTime := dist*DriveMinutesPerMile + scheduledPrepBufferMin
	effectiveWait := leadTime - order.MinutesUntilDue(now)
	if effectiveWait < 0 {
		// Plenty of time left. Keep a damped score so the order still
		// ranks above nothing at all once it is within ~10 min of its
		// dispatch window.
		effectiveWait = effectiveWait + scheduledPrepBufferMin
		if effectiveWait < 0 {
			effectiveWait = 0
		}
		effectiveWait *= 0.5
	}
	return effectiveWait * scheduledUrgencyBoost * s.distanceFactor(dist)
}

func (s *PriorityScorer) distanceFactor(distanceMiles float64) float64 {
	if distanceMiles < 0 {
		distanceMiles = 0
	}
	return 1 + distanceMiles/s.MaxRadiusMiles
}

// ScoreQueue annotates orders with their scores and returns them sorted
// most urgent first. Ties keep the older order ahead.
func (s *PriorityScorer) ScoreQueue(orders []models.DeliveryOrder, now time.Time) []models.QueueEntry {
	entries := make([]models.QueueEntry, 0, len(orders))
	for i := range orders {
		o := orders[i]
		entries = append(entries, models.QueueEntry{
			DeliveryOrder:  o,
			PriorityScore:  s.Score(&o, now),
			WaitingMinutes: o.WaitingMinutes(now),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PriorityScore != entries[j].PriorityScore {
			return entries[i].PriorityScore > entries[j].PriorityScore
		}
		return entries[i].CreatedAt < entries[j].CreatedAt
	})
	return entries
}
