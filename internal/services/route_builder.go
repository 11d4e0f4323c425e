package services

import (
	"context"
	"log"
	"math"
	"sort"

	"pronto-backend/internal/models"
)

// RouteBuilderConfig bounds the optimization search. Split enumeration is
// exponential in order count, so the builder caps both the sweep size and
// the number of split evaluations per candidate route count.
type RouteBuilderConfig struct {
	MaxRadiusMiles     float64 // normal delivery radius
	TargetMinMinutes   float64 // duration band floor
	TargetMaxMinutes   float64 // duration band ceiling
	StopServiceMinutes float64 // handoff time per stop
	RouteOverheadMin   float64 // load-up and paperwork per route
	MaxSweepOrders     int     // above this, splits fall back to plain chunking
	MaxSplitsPerCount  int     // split evaluations allowed per candidate route count
}

// DefaultRouteBuilderConfig returns the production tuning
func DefaultRouteBuilderConfig() RouteBuilderConfig {
	return RouteBuilderConfig{
		MaxRadiusMiles:     DefaultMaxRadiusMiles,
		TargetMinMinutes:   30,
		TargetMaxMinutes:   50,
		StopServiceMinutes: 3,
		RouteOverheadMin:   10,
		MaxSweepOrders:     24,
		MaxSplitsPerCount:  5000,
	}
}

// ProposalStop is one stop in a proposed route
type ProposalStop struct {
	OrderID       string   `json:"order_id"`
	OrderNumber   string   `json:"order_number"`
	CustomerName  string   `json:"customer_name"`
	CustomerPhone *string  `json:"customer_phone,omitempty"`
	Address       string   `json:"address"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
	ScheduledFor  *int64   `json:"scheduled_for,omitempty"`
	PriorityScore float64  `json:"priority_score"`
	DriveTimeMin  float64  `json:"drive_time_min"`
	Sequence      int      `json:"sequence"`
}

// RouteProposal is one driver's proposed route. Proposals are a
// point-in-time snapshot and are not persisted until dispatched.
type RouteProposal struct {
	DriverID             string         `json:"driver_id,omitempty"`
	DriverName           string         `json:"driver_name,omitempty"`
	Stops                []ProposalStop `json:"stops"`
	EstimatedDurationMin float64        `json:"estimated_duration_min"`
	TotalDistanceMiles   float64        `json:"total_distance_miles"`
	MaxPriorityScore     float64        `json:"max_priority_score"`
}

// BuildResult is the full outcome of one route build
type BuildResult struct {
	Proposals  []RouteProposal `json:"proposals"`
	Unassigned []ProposalStop  `json:"unassigned"`
	Degraded   bool            `json:"degraded"` // drive times came from straight-line fallback
}

// RouteBuilder turns the scored ready queue into proposed routes: orders
// are swept by compass bearing around the store, split into balanced
// contiguous groups, and sequenced by nearest neighbor
type RouteBuilder struct {
	cfg      RouteBuilderConfig
	provider GeoProvider
	depot    *DepotCache
}

// NewRouteBuilder creates a builder. provider may be nil and depot may be
// unresolvable; both degrade the build instead of failing it.
func NewRouteBuilder(cfg RouteBuilderConfig, provider GeoProvider, depot *DepotCache) *RouteBuilder {
	if cfg.MaxSweepOrders <= 0 {
		cfg.MaxSweepOrders = 24
	}
	if cfg.MaxSplitsPerCount <= 0 {
		cfg.MaxSplitsPerCount = 5000
	}
	return &RouteBuilder{cfg: cfg, provider: provider, depot: depot}
}

// builderOrder carries one queue entry through the build
type builderOrder struct {
	entry    models.QueueEntry
	coords   *Coordinates
	bearing  float64
	driveMin float64
}

// Build produces route proposals for the given queue and drivers.
// Zero orders or zero drivers yield an empty proposal list, never an
// error. Orders are read once up front; the result can go stale and is
// re-validated at dispatch time.
func (b *RouteBuilder) Build(ctx context.Context, orders []models.QueueEntry, drivers []models.DriverAvailability) BuildResult {
	result := BuildResult{Proposals: []RouteProposal{}, Unassigned: []ProposalStop{}}
	if len(orders) == 0 {
		return result
	}
	if len(drivers) == 0 {
		for i := range orders {
			result.Unassigned = append(result.Unassigned, b.toStop(&orders[i], 0, 0))
		}
		return result
	}

	log.Printf("🎯 Building routes: %d ready orders, %d available drivers", len(orders), len(drivers))

	var depotCoords Coordinates
	depotKnown := false
	if b.depot != nil {
		depotCoords, depotKnown = b.depot.Resolve(ctx)
	}

	all := make([]builderOrder, 0, len(orders))
	geocoded := 0
	for i := range orders {
		bo := builderOrder{entry: orders[i]}
		if orders[i].HasCoordinates() {
			bo.coords = &Coordinates{Lat: *orders[i].Latitude, Lng: *orders[i].Longitude}
			geocoded++
		}
		all = append(all, bo)
	}

	if !depotKnown || geocoded == 0 {
		// No way to cluster by bearing. Hand everything to one driver in
		// queue order rather than dropping anyone.
		log.Printf("⚠️ No depot coordinates or no geocoded orders - falling back to a single route")
		result.Degraded = true
		b.fillFallbackDriveTimes(all)
		result.Proposals = append(result.Proposals, b.toProposal(all, drivers[0], nil))
		return result
	}

	sweep, noCoords := b.sweepOrder(depotCoords, all)
	result.Degraded = !b.fillDriveTimes(ctx, depotCoords, sweep)
	b.fillFallbackDriveTimes(noCoords)

	// Unclustered orders ride along at the end of the sweep so the split
	// search still conserves every order.
	full := append(sweep, noCoords...)

	groups := b.bestGrouping(depotCoords, full, len(drivers))

	proposals := make([]RouteProposal, 0, len(groups))
	sort.SliceStable(groups, func(i, j int) bool {
		return maxScore(groups[i]) > maxScore(groups[j])
	})
	for i, group := range groups {
		if i >= len(drivers) {
			for j := range group {
				result.Unassigned = append(result.Unassigned, b.toStop(&group[j].entry, 0, group[j].driveMin))
			}
			continue
		}
		ordered := b.nearestNeighborOrder(depotCoords, group)
		proposals = append(proposals, b.toProposal(ordered, drivers[i], &depotCoords))
	}

	result.Proposals = proposals
	log.Printf("✅ Route build complete: %d proposals", len(proposals))
	return result
}

// sweepOrder sorts geocoded orders by bearing from the depot and rotates
// the circle to start just past the largest angular gap, so contiguous
// groups stay geographically compact. Orders without coordinates are
// returned separately.
func (b *RouteBuilder) sweepOrder(depot Coordinates, all []builderOrder) (sweep, noCoords []builderOrder) {
	for _, bo := range all {
		if bo.coords == nil {
			noCoords = append(noCoords, bo)
			continue
		}
		bo.bearing = BearingDegrees(depot, *bo.coords)
		sweep = append(sweep, bo)
	}

	sort.SliceStable(sweep, func(i, j int) bool {
		return sweep[i].bearing < sweep[j].bearing
	})

	if len(sweep) < 2 {
		return sweep, noCoords
	}

	gapStart := 0
	largestGap := -1.0
	for i := range sweep {
		next := (i + 1) % len(sweep)
		gap := sweep[next].bearing - sweep[i].bearing
		if gap < 0 {
			gap += 360
		}
		if gap > largestGap {
			largestGap = gap
			gapStart = next
		}
	}

	rotated := make([]builderOrder, 0, len(sweep))
	rotated = append(rotated, sweep[gapStart:]...)
	rotated = append(rotated, sweep[:gapStart]...)
	return rotated, noCoords
}

// fillDriveTimes resolves per-stop drive minutes with one batched matrix
// call. Returns false when the provider was unavailable and straight-line
// fallbacks were used instead.
func (b *RouteBuilder) fillDriveTimes(ctx context.Context, depot Coordinates, sweep []builderOrder) bool {
	if len(sweep) == 0 {
		return true
	}

	dests := make([]Coordinates, len(sweep))
	for i := range sweep {
		dests[i] = *sweep[i].coords
	}

	var minutes []float64
	var err error
	if b.provider != nil {
		minutes, err = b.provider.DriveTimeMatrix(ctx, depot, dests)
	} else {
		err = ErrGeoUnavailable
	}
	if err != nil {
		log.Printf("⚠️ Drive time matrix unavailable, estimating from distance: %v", err)
		for i := range sweep {
			sweep[i].driveMin = FallbackDriveMinutes(b.stopDistance(depot, &sweep[i]))
		}
		return false
	}

	for i := range sweep {
		if i < len(minutes) && minutes[i] >= 0 {
			sweep[i].driveMin = minutes[i]
		} else {
			sweep[i].driveMin = FallbackDriveMinutes(b.stopDistance(depot, &sweep[i]))
		}
	}
	return true
}

// fillFallbackDriveTimes estimates drive minutes for orders that never see
// the matrix call
func (b *RouteBuilder) fillFallbackDriveTimes(orders []builderOrder) {
	for i := range orders {
		orders[i].driveMin = FallbackDriveMinutes(orders[i].entry.Distance())
	}
}

// stopDistance prefers the order's recorded delivery distance, falling
// back to haversine from the depot
func (b *RouteBuilder) stopDistance(depot Coordinates, bo *builderOrder) float64 {
	if bo.entry.DistanceMiles != nil {
		return *bo.entry.DistanceMiles
	}
	if bo.coords != nil {
		return HaversineMiles(depot, *bo.coords)
	}
	return 0
}

// bestGrouping searches route counts 1..min(drivers, orders) for the
// grouping whose per-route durations sit closest to the target band
func (b *RouteBuilder) bestGrouping(depot Coordinates, full []builderOrder, driverCount int) [][]builderOrder {
	n := len(full)
	maxK := driverCount
	if n < maxK {
		maxK = n
	}

	tourCache := make(map[[2]int]float64)
	tour := func(start, end int) float64 {
		key := [2]int{start, end}
		if d, ok := tourCache[key]; ok {
			return d
		}
		d := b.nnTourDistance(depot, full[start:end])
		tourCache[key] = d
		return d
	}

	var bestGroups [][]int
	bestPenalty := math.MaxFloat64

	for k := 1; k <= maxK; k++ {
		var split [][]int
		if n > b.cfg.MaxSweepOrders {
			split = chunkEvenly(n, k)
		} else {
			split = b.bestSplit(n, k, tour)
		}
		if split == nil {
			continue
		}

		penalty := 0.0
		for _, bounds := range split {
			dur := b.groupDuration(full[bounds[0]:bounds[1]])
			if dur < b.cfg.TargetMinMinutes {
				gap := b.cfg.TargetMinMinutes - dur
				penalty += gap * gap
			} else if dur > b.cfg.TargetMaxMinutes {
				gap := dur - b.cfg.TargetMaxMinutes
				penalty += gap * gap
			}
		}

		if penalty < bestPenalty {
			bestPenalty = penalty
			bestGroups = split
		}
	}

	if bestGroups == nil {
		// More drivers than splittable orders still means everyone gets
		// delivered: one route with everything.
		bestGroups = [][]int{{0, n}}
	}

	groups := make([][]builderOrder, 0, len(bestGroups))
	for _, bounds := range bestGroups {
		groups = append(groups, full[bounds[0]:bounds[1]])
	}
	if len(groups) > 1 {
		log.Printf("   Selected %d routes (penalty %.1f)", len(groups), bestPenalty)
	}
	return groups
}

// bestSplit enumerates contiguous splits of n orders into k balanced
// groups and returns the one with minimum total tour distance. The
// enumeration is an explicit bounded recursion over group sizes, cut off
// at MaxSplitsPerCount evaluations so a burst of orders cannot wedge a
// build.
func (b *RouteBuilder) bestSplit(n, k int, tour func(start, end int) float64) [][]int {
	target := float64(n) / float64(k)
	minSize := int(math.Ceil(target - 1))
	if minSize < 1 {
		minSize = 1
	}
	maxSize := int(math.Floor(target + 1))

	var best [][]int
	bestDistance := math.MaxFloat64
	evaluated := 0

	bounds := make([][2]int, 0, k)
	var walk func(start, remaining int, distance float64)
	walk = func(start, remaining int, distance float64) {
		if evaluated >= b.cfg.MaxSplitsPerCount || distance >= bestDistance {
			return
		}
		if remaining == 1 {
			size := n - start
			if size < minSize || size > maxSize {
				return
			}
			evaluated++
			total := distance + tour(start, n)
			if total < bestDistance {
				bestDistance = total
				best = make([][]int, 0, k)
				for _, g := range bounds {
					best = append(best, []int{g[0], g[1]})
				}
				best = append(best, []int{start, n})
			}
			return
		}
		for size := minSize; size <= maxSize; size++ {
			end := start + size
			if end > n-(remaining-1) {
				break
			}
			bounds = append(bounds, [2]int{start, end})
			walk(end, remaining-1, distance+tour(start, end))
			bounds = bounds[:len(bounds)-1]
		}
	}
	walk(0, k, 0)

	return best
}

// chunkEvenly is the large-queue fallback: contiguous groups whose sizes
// differ by at most one, no search
func chunkEvenly(n, k int) [][]int {
	if k > n {
		return nil
	}
	base := n / k
	extra := n % k
	split := make([][]int, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		split = append(split, []int{start, start + size})
		start += size
	}
	return split
}

// groupDuration estimates a group's route time: drive plus handoff per
// stop plus fixed route overhead
func (b *RouteBuilder) groupDuration(group []builderOrder) float64 {
	total := b.cfg.RouteOverheadMin
	for i := range group {
		total += group[i].driveMin + b.cfg.StopServiceMinutes
	}
	return total
}

// nnTourDistance is the haversine length of a nearest-neighbor tour from
// the depot through every located stop in the group and back. Stops
// without coordinates contribute nothing.
func (b *RouteBuilder) nnTourDistance(depot Coordinates, group []builderOrder) float64 {
	remaining := make([]*Coordinates, 0, len(group))
	for i := range group {
		if group[i].coords != nil {
			remaining = append(remaining, group[i].coords)
		}
	}
	if len(remaining) == 0 {
		return 0
	}

	total := 0.0
	current := depot
	for len(remaining) > 0 {
		bestIdx := 0
		bestDistance := math.MaxFloat64
		for i, c := range remaining {
			d := HaversineMiles(current, *c)
			if d < bestDistance {
				bestDistance = d
				bestIdx = i
			}
		}
		total += bestDistance
		current = *remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return total + HaversineMiles(current, depot)
}

// nearestNeighborOrder sequences a group by repeatedly visiting the
// closest unvisited stop, starting from the depot. Stops without
// coordinates keep their relative order at the tail.
func (b *RouteBuilder) nearestNeighborOrder(depot Coordinates, group []builderOrder) []builderOrder {
	located := make([]builderOrder, 0, len(group))
	tail := make([]builderOrder, 0)
	for _, bo := range group {
		if bo.coords != nil {
			located = append(located, bo)
		} else {
			tail = append(tail, bo)
		}
	}

	ordered := make([]builderOrder, 0, len(group))
	current := depot
	for len(located) > 0 {
		bestIdx := 0
		bestDistance := math.MaxFloat64
		for i := range located {
			d := HaversineMiles(current, *located[i].coords)
			if d < bestDistance {
				bestDistance = d
				bestIdx = i
			}
		}
		next := located[bestIdx]
		ordered = append(ordered, next)
		current = *next.coords
		located = append(located[:bestIdx], located[bestIdx+1:]...)
	}

	return append(ordered, tail...)
}

// toProposal materializes an ordered group as a driver's proposal. When
// the depot is known the reported distance covers the full loop, store to
// store.
func (b *RouteBuilder) toProposal(ordered []builderOrder, driver models.DriverAvailability, depot *Coordinates) RouteProposal {
	proposal := RouteProposal{
		DriverID:   driver.ID,
		DriverName: driver.Name,
		Stops:      make([]ProposalStop, 0, len(ordered)),
	}

	prev := depot
	for i := range ordered {
		bo := &ordered[i]
		proposal.Stops = append(proposal.Stops, b.toStop(&bo.entry, i+1, bo.driveMin))
		proposal.EstimatedDurationMin += bo.driveMin + b.cfg.StopServiceMinutes
		if bo.entry.PriorityScore > proposal.MaxPriorityScore {
			proposal.MaxPriorityScore = bo.entry.PriorityScore
		}
		if bo.coords != nil {
			if prev != nil {
				proposal.TotalDistanceMiles += HaversineMiles(*prev, *bo.coords)
			}
			prev = bo.coords
		}
	}
	if prev != nil && depot != nil && prev != depot {
		proposal.TotalDistanceMiles += HaversineMiles(*prev, *depot)
	}
	proposal.EstimatedDurationMin += b.cfg.RouteOverheadMin

	return proposal
}

func (b *RouteBuilder) toStop(entry *models.QueueEntry, sequence int, driveMin float64) ProposalStop {
	return ProposalStop{
		OrderID:       entry.ID,
		OrderNumber:   entry.OrderNumber,
		CustomerName:  entry.CustomerName,
		CustomerPhone: entry.CustomerPhone,
		Address:       entry.Address,
		Latitude:      entry.Latitude,
		Longitude:     entry.Longitude,
		DistanceMiles: entry.DistanceMiles,
		ScheduledFor:  entry.ScheduledFor,
		PriorityScore: entry.PriorityScore,
		DriveTimeMin:  driveMin,
		Sequence:      sequence,
	}
}

func maxScore(group []builderOrder) float64 {
	best := 0.0
	for i := range group {
		if group[i].entry.PriorityScore > best {
			best = group[i].entry.PriorityScore
		}
	}
	return best
}
