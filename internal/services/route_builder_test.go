package services

import (
	"context"
	"math"
	"testing"

	"pronto-backend/internal/models"
)

// orderAtBearing places an order on a compass bearing from a (0,0) depot,
// arcDeg degrees of arc away
func orderAtBearing(id string, bearingDeg, arcDeg, score float64) models.QueueEntry {
	rad := bearingDeg * math.Pi / 180
	lat := arcDeg * math.Cos(rad)
	lng := arcDeg * math.Sin(rad)
	return models.QueueEntry{
		DeliveryOrder: models.DeliveryOrder{
			ID:           id,
			OrderNumber:  id,
			Status:       models.OrderStatusReady,
			CustomerName: "Customer " + id,
			Address:      id + " Test St",
			Latitude:     &lat,
			Longitude:    &lng,
		},
		PriorityScore: score,
	}
}

func orderWithoutCoords(id string, score float64) models.QueueEntry {
	return models.QueueEntry{
		DeliveryOrder: models.DeliveryOrder{
			ID:           id,
			OrderNumber:  id,
			Status:       models.OrderStatusReady,
			CustomerName: "Customer " + id,
			Address:      id + " Test St",
		},
		PriorityScore: score,
	}
}

func testDrivers(n int) []models.DriverAvailability {
	names := []string{"Marco", "Elena", "Sam", "Dana", "Lee"}
	drivers := make([]models.DriverAvailability, 0, n)
	for i := 0; i < n; i++ {
		since := int64(1700000000 + i)
		drivers = append(drivers, models.DriverAvailability{
			ID:          names[i],
			Name:        names[i],
			OnDutySince: &since,
		})
	}
	return drivers
}

func testBuilder() *RouteBuilder {
	return NewRouteBuilder(DefaultRouteBuilderConfig(), nil, NewStaticDepot(Coordinates{Lat: 0, Lng: 0}))
}

// collectOrderIDs gathers every order id across proposals and unassigned
func collectOrderIDs(t *testing.T, result BuildResult) map[string]int {
	t.Helper()
	seen := map[string]int{}
	for _, p := range result.Proposals {
		for _, s := range p.Stops {
			seen[s.OrderID]++
		}
	}
	for _, s := range result.Unassigned {
		seen[s.OrderID]++
	}
	return seen
}

func TestBuildEmptyQueue(t *testing.T) {
	result := testBuilder().Build(context.Background(), nil, testDrivers(2))
	if len(result.Proposals) != 0 || len(result.Unassigned) != 0 {
		t.Fatalf("empty queue should produce empty result, got %+v", result)
	}
}

func TestBuildZeroDrivers(t *testing.T) {
	orders := []models.QueueEntry{
		orderAtBearing("a", 10, 0.1, 1),
		orderAtBearing("b", 200, 0.1, 2),
	}

	result := testBuilder().Build(context.Background(), orders, nil)
	if len(result.Proposals) != 0 {
		t.Fatalf("zero drivers should produce zero proposals, got %d", len(result.Proposals))
	}
	if len(result.Unassigned) != 2 {
		t.Fatalf("all orders should be reported unassigned, got %d", len(result.Unassigned))
	}
}

func TestBuildConservesEveryOrder(t *testing.T) {
	orders := []models.QueueEntry{
		orderAtBearing("n1", 5, 0.05, 3),
		orderAtBearing("n2", 12, 0.07, 1),
		orderAtBearing("e1", 95, 0.06, 2),
		orderAtBearing("s1", 185, 0.08, 5),
		orderAtBearing("s2", 200, 0.05, 4),
		orderWithoutCoords("x1", 6),
		orderWithoutCoords("x2", 0.5),
	}

	result := testBuilder().Build(context.Background(), orders, testDrivers(3))

	seen := collectOrderIDs(t, result)
	if len(seen) != len(orders) {
		t.Fatalf("expected %d distinct orders in result, got %d", len(orders), len(seen))
	}
	for _, o := range orders {
		if seen[o.ID] != 1 {
			t.Errorf("order %s appears %d times, want exactly 1", o.ID, seen[o.ID])
		}
	}
}

func TestBuildNeverExceedsDriverCount(t *testing.T) {
	orders := make([]models.QueueEntry, 0, 10)
	for i := 0; i < 10; i++ {
		orders = append(orders, orderAtBearing(string(rune('a'+i)), float64(i*36), 0.1, float64(i)))
	}

	for _, driverCount := range []int{1, 2, 3, 5} {
		result := testBuilder().Build(context.Background(), orders, testDrivers(driverCount))
		if len(result.Proposals) > driverCount {
			t.Fatalf("%d drivers but %d proposals", driverCount, len(result.Proposals))
		}
	}
}

func TestBuildSplitsAcrossLargestGap(t *testing.T) {
	// Orders at bearings 10, 15, and 190 with two drivers: the near pair
	// must stay together and the opposite-side order rides alone
	orders := []models.QueueEntry{
		orderAtBearing("b10", 10, 0.1, 1),
		orderAtBearing("b15", 15, 0.1, 2),
		orderAtBearing("b190", 190, 0.1, 9),
	}

	result := testBuilder().Build(context.Background(), orders, testDrivers(2))
	if len(result.Proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(result.Proposals))
	}

	groups := map[string][]string{}
	for _, p := range result.Proposals {
		for _, s := range p.Stops {
			groups[p.DriverID] = append(groups[p.DriverID], s.OrderID)
		}
	}
	for _, ids := range groups {
		switch len(ids) {
		case 1:
			if ids[0] != "b190" {
				t.Fatalf("singleton group should be b190, got %v", ids)
			}
		case 2:
			has := map[string]bool{ids[0]: true, ids[1]: true}
			if !has["b10"] || !has["b15"] {
				t.Fatalf("pair group should be b10+b15, got %v", ids)
			}
		default:
			t.Fatalf("unexpected group size %d: %v", len(ids), ids)
		}
	}
}

func TestBuildMostUrgentGroupGetsFirstDriver(t *testing.T) {
	orders := []models.QueueEntry{
		orderAtBearing("calm1", 10, 0.1, 1),
		orderAtBearing("calm2", 15, 0.1, 2),
		orderAtBearing("urgent", 190, 0.1, 50),
	}
	drivers := testDrivers(2)

	result := testBuilder().Build(context.Background(), orders, drivers)
	if len(result.Proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(result.Proposals))
	}
	first := result.Proposals[0]
	if first.DriverID != drivers[0].ID {
		t.Fatalf("first proposal bound to %s, want %s", first.DriverID, drivers[0].ID)
	}
	if len(first.Stops) != 1 || first.Stops[0].OrderID != "urgent" {
		t.Fatalf("longest-on-duty driver should get the urgent group, got %+v", first.Stops)
	}
}

func TestBuildNoGeocodedOrders(t *testing.T) {
	orders := []models.QueueEntry{
		orderWithoutCoords("x1", 1),
		orderWithoutCoords("x2", 2),
		orderWithoutCoords("x3", 3),
	}

	result := testBuilder().Build(context.Background(), orders, testDrivers(2))
	if !result.Degraded {
		t.Fatal("build without coordinates should be degraded")
	}
	if len(result.Proposals) != 1 {
		t.Fatalf("expected a single fallback route, got %d", len(result.Proposals))
	}
	if len(result.Proposals[0].Stops) != 3 {
		t.Fatalf("fallback route should carry every order, got %d stops", len(result.Proposals[0].Stops))
	}
	for _, s := range result.Proposals[0].Stops {
		if s.Latitude != nil || s.Longitude != nil {
			t.Fatalf("stop %s should keep null coordinates", s.OrderID)
		}
	}
}

func TestBuildNoDepot(t *testing.T) {
	builder := NewRouteBuilder(DefaultRouteBuilderConfig(), nil, NewDepotCache("", nil))
	orders := []models.QueueEntry{
		orderAtBearing("a", 10, 0.1, 1),
		orderAtBearing("b", 200, 0.1, 2),
	}

	result := builder.Build(context.Background(), orders, testDrivers(2))
	if !result.Degraded {
		t.Fatal("build without depot should be degraded")
	}
	if len(result.Proposals) != 1 || len(result.Proposals[0].Stops) != 2 {
		t.Fatalf("expected one route with both stops, got %+v", result.Proposals)
	}
}

func TestNearestNeighborStopOrdering(t *testing.T) {
	// Three stops due east at increasing range, given out of order: the
	// tour must visit them closest first
	orders := []models.QueueEntry{
		orderAtBearing("far", 90, 0.3, 1),
		orderAtBearing("near", 90, 0.1, 1),
		orderAtBearing("mid", 90, 0.2, 1),
	}

	result := testBuilder().Build(context.Background(), orders, testDrivers(1))
	if len(result.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(result.Proposals))
	}
	stops := result.Proposals[0].Stops
	if len(stops) != 3 {
		t.Fatalf("expected 3 stops, got %d", len(stops))
	}
	want := []string{"near", "mid", "far"}
	for i, w := range want {
		if stops[i].OrderID != w {
			t.Fatalf("stop %d = %s, want %s", i, stops[i].OrderID, w)
		}
		if stops[i].Sequence != i+1 {
			t.Fatalf("stop %d sequence = %d, want %d", i, stops[i].Sequence, i+1)
		}
	}
}

func TestBuildUsesProviderDriveTimes(t *testing.T) {
	provider := &fakeGeoProvider{matrix: []float64{7, 9}}
	builder := NewRouteBuilder(DefaultRouteBuilderConfig(), provider, NewStaticDepot(Coordinates{Lat: 0, Lng: 0}))

	orders := []models.QueueEntry{
		orderAtBearing("a", 10, 0.1, 2),
		orderAtBearing("b", 20, 0.1, 1),
	}

	result := builder.Build(context.Background(), orders, testDrivers(1))
	if result.Degraded {
		t.Fatal("build with a working matrix should not be degraded")
	}
	if provider.matrixCalls != 1 {
		t.Fatalf("expected one batched matrix call, got %d", provider.matrixCalls)
	}
	// 7 + 9 drive + 2*3 service + 10 overhead
	got := result.Proposals[0].EstimatedDurationMin
	if math.Abs(got-32) > 1e-9 {
		t.Fatalf("estimated duration = %v, want 32", got)
	}
}

func TestBuildMatrixFailureDegrades(t *testing.T) {
	provider := &fakeGeoProvider{matrixErr: ErrGeoUnavailable}
	builder := NewRouteBuilder(DefaultRouteBuilderConfig(), provider, NewStaticDepot(Coordinates{Lat: 0, Lng: 0}))

	orders := []models.QueueEntry{orderAtBearing("a", 10, 0.1, 1)}
	result := builder.Build(context.Background(), orders, testDrivers(1))
	if !result.Degraded {
		t.Fatal("matrix failure should mark the build degraded")
	}
	if len(result.Proposals) != 1 || len(result.Proposals[0].Stops) != 1 {
		t.Fatalf("degraded build should still propose the route, got %+v", result.Proposals)
	}
}

func TestBuildLargeQueueFallsBackToChunking(t *testing.T) {
	cfg := DefaultRouteBuilderConfig()
	cfg.MaxSweepOrders = 4
	builder := NewRouteBuilder(cfg, nil, NewStaticDepot(Coordinates{Lat: 0, Lng: 0}))

	orders := make([]models.QueueEntry, 0, 8)
	for i := 0; i < 8; i++ {
		orders = append(orders, orderAtBearing(string(rune('a'+i)), float64(i*45), 0.1, float64(i)))
	}

	result := builder.Build(context.Background(), orders, testDrivers(3))
	seen := collectOrderIDs(t, result)
	if len(seen) != 8 {
		t.Fatalf("chunked build dropped orders: %d of 8 present", len(seen))
	}
	if len(result.Proposals) > 3 {
		t.Fatalf("chunked build exceeded driver count: %d", len(result.Proposals))
	}
}

func TestChunkEvenly(t *testing.T) {
	split := chunkEvenly(7, 3)
	if len(split) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(split))
	}
	sizes := []int{}
	prevEnd := 0
	for _, bounds := range split {
		if bounds[0] != prevEnd {
			t.Fatalf("chunks not contiguous at %v", bounds)
		}
		sizes = append(sizes, bounds[1]-bounds[0])
		prevEnd = bounds[1]
	}
	if prevEnd != 7 {
		t.Fatalf("chunks cover %d items, want 7", prevEnd)
	}
	for _, s := range sizes {
		if s < 2 || s > 3 {
			t.Fatalf("chunk sizes unbalanced: %v", sizes)
		}
	}

	if chunkEvenly(2, 3) != nil {
		t.Fatal("more chunks than items should yield nil")
	}
}
