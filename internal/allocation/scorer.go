package allocation

import (
	"math"

	"github.com/google/uuid"

	"github.com/fieldops/dispatch-api/internal/allocation/spatial"
)

// Score combines distance and current load into a single ranking score:
//
//	score = max(0, 100 − distanceKm/10) + (1 − load/maxLoad) × 50
//
// The distance term dominates for nearby candidates: a worker at the task's
// doorstep earns the full 100 points, decaying linearly and flooring at 0
// beyond 1000 km. The load term contributes at most 50 points, rewarding
// idle workers.
func Score(distanceKm float64, load, maxLoad int) float64 {
	distScore := 100 - distanceKm/10
	if distScore < 0 {
		distScore = 0
	}

	loadScore := (1 - float64(load)/float64(maxLoad)) * 50

	return distScore + loadScore
}

// ChooseWorker selects the best worker for a task from spatially-nearby
// candidates. Candidates already at or above maxLoad are excluded before
// scoring, not merely penalized. The candidate with the strictly highest
// score wins; on a tie the first candidate in enumeration order is kept, so
// callers wanting determinism pass candidates in a stable order (the engine
// sorts by worker id).
//
// Returns false when no candidate is under the load cap or the candidate
// set is empty; the task then fails allocation for this run.
func ChooseWorker(candidates []spatial.Candidate, loads map[uuid.UUID]int, maxLoad int) (spatial.Candidate, bool) {
	var best spatial.Candidate
	bestScore := math.Inf(-1)
	found := false

	for _, c := range candidates {
		load := loads[c.Worker.ID]
		if load >= maxLoad {
			continue
		}

		if s := Score(c.DistanceKm, load, maxLoad); s > bestScore {
			best = c
			bestScore = s
			found = true
		}
	}

	return best, found
}
