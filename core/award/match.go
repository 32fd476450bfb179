package award

import "github.com/trezcool/pensamiento/core"

// matchPending picks the award a redemption for (exerciseID, activityID) targets among candidates.
// An award scoped to the requested activity wins over an unscoped one. Unless strict, an unscoped
// award matches any requested activity and a request without activity matches any award of the
// exercise (at most one is pending per student and exercise).
func matchPending(candidates []Award, exerciseID int, activityID *int, strict bool) (Award, bool) {
	var (
		fallback Award
		found    bool
	)
	for _, awd := range candidates {
		if !awd.Redeemable() || awd.ExerciseID != exerciseID {
			continue
		}
		if core.IntPtrEqual(awd.ActivityID, activityID) {
			return awd, true
		}
		if strict || found {
			continue
		}
		if awd.ActivityID == nil || activityID == nil {
			fallback, found = awd, true
		}
	}
	return fallback, found
}
