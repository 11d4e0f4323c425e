package services

import (
	"math"
	"testing"
	"time"

	"pronto-backend/internal/models"
)

func regularOrder(createdAt time.Time, distanceMiles float64) *models.DeliveryOrder {
	d := distanceMiles
	return &models.DeliveryOrder{
		ID:            "o1",
		Status:        models.OrderStatusReady,
		DistanceMiles: &d,
		CreatedAt:     createdAt.Unix(),
	}
}

func scheduledOrder(createdAt, due time.Time, distanceMiles float64) *models.DeliveryOrder {
	o := regularOrder(createdAt, distanceMiles)
	scheduled := due.Unix()
	o.ScheduledFor = &scheduled
	return o
}

func TestScoreRegular(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	// 30 minutes waiting, 5 miles out: 30 * (1 + 5/10)
	order := regularOrder(now.Add(-30*time.Minute), 5)
	got := scorer.Score(order, now)
	if math.Abs(got-45) > 1e-9 {
		t.Fatalf("score = %v, want 45", got)
	}
}

func TestScoreRegularMonotoneInWaiting(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	prev := -1.0
	for _, waitMin := range []int{0, 1, 5, 15, 30, 60, 120, 240} {
		order := regularOrder(now.Add(-time.Duration(waitMin)*time.Minute), 3)
		score := scorer.Score(order, now)
		if score < prev {
			t.Fatalf("score decreased at wait %d min: %v < %v", waitMin, score, prev)
		}
		prev = score
	}
}

func TestScoreRegularDistanceRaisesScore(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	created := now.Add(-20 * time.Minute)

	near := scorer.Score(regularOrder(created, 1), now)
	far := scorer.Score(regularOrder(created, 9), now)
	if far <= near {
		t.Fatalf("far order should outscore near order: %v <= %v", far, near)
	}
}

func TestScoreScheduled(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	// 4 miles: lead time = 4*2.5 + 10 = 20 min
	cases := []struct {
		dueInMin float64
		want     float64
	}{
		// effectiveWait = 20 - 5 = 15, score = 15 * 2 * 1.4
		{5, 42},
		// effectiveWait = -5, damped to (−5+10)*0.5 = 2.5, score = 2.5 * 2 * 1.4
		{25, 7},
		// far in the future: damped all the way to zero
		{60, 0},
		// already overdue: 20 - (-10) = 30, score = 30 * 2 * 1.4
		{-10, 84},
	}

	for _, tc := range cases {
		due := now.Add(time.Duration(tc.dueInMin * float64(time.Minute)))
		got := scorer.Score(scheduledOrder(created, due, 4), now)
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("due in %v min: score = %v, want %v", tc.dueInMin, got, tc.want)
		}
	}
}

func TestScoreScheduledMonotoneAsDueApproaches(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	prev := -1.0
	for dueIn := 90; dueIn >= -60; dueIn -= 5 {
		due := now.Add(time.Duration(dueIn) * time.Minute)
		score := scorer.Score(scheduledOrder(created, due, 4), now)
		if score < prev {
			t.Fatalf("score decreased at due-in %d min: %v < %v", dueIn, score, prev)
		}
		prev = score
	}
}

func TestScoreMissingTimestamps(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	order := &models.DeliveryOrder{ID: "o1", Status: models.OrderStatusReady}
	if got := scorer.Score(order, now); got != 0 {
		t.Fatalf("order without created_at should score 0, got %v", got)
	}
}

func TestScoreMissingDistance(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	order := &models.DeliveryOrder{
		ID:        "o1",
		Status:    models.OrderStatusReady,
		CreatedAt: now.Add(-10 * time.Minute).Unix(),
	}
	// Unknown distance means factor 1.0, so score is pure waiting time
	if got := scorer.Score(order, now); math.Abs(got-10) > 1e-9 {
		t.Fatalf("score = %v, want 10", got)
	}
}

func TestScoreQueueOrdersMostUrgentFirst(t *testing.T) {
	scorer := NewPriorityScorer(10)
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	mkOrder := func(id string, waitMin int, distance float64) models.DeliveryOrder {
		d := distance
		return models.DeliveryOrder{
			ID:            id,
			OrderNumber:   id,
			Status:        models.OrderStatusReady,
			DistanceMiles: &d,
			CreatedAt:     now.Add(-time.Duration(waitMin) * time.Minute).Unix(),
		}
	}

	orders := []models.DeliveryOrder{
		mkOrder("fresh", 2, 1),
		mkOrder("oldest", 55, 2),
		mkOrder("middle", 20, 3),
	}

	entries := scorer.ScoreQueue(orders, now)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "oldest" || entries[2].ID != "fresh" {
		t.Fatalf("unexpected queue order: %s, %s, %s", entries[0].ID, entries[1].ID, entries[2].ID)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PriorityScore > entries[i-1].PriorityScore {
			t.Fatalf("queue not sorted by score at %d", i)
		}
	}
}
