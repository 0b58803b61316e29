package transcoder

import (
	"math"

	"github.com/streamforge/reelpipe/internal/domain/model"
)

// PlanLadder resolves every ladder tier against the probed source dimensions.
// Pure: the same input always yields the same plan.
//
// Target width preserves the source aspect ratio, rounded to the nearest
// integer and then forced up to even (4:2:0 chroma subsampling requires even
// dimensions). Tiers taller than the source are kept; the ladder is fixed and
// upscaling is permitted.
func PlanLadder(info model.VideoInfo, tiers []TierSpec) []TierPlan {
	plans := make([]TierPlan, 0, len(tiers))
	for _, t := range tiers {
		plans = append(plans, TierPlan{
			TierSpec: t,
			Width:    scaledEvenWidth(info.Width, info.Height, t.MaxHeight),
			Height:   t.MaxHeight,
		})
	}
	return plans
}

// scaledEvenWidth computes round(targetH * srcW / srcH) forced to the next
// even integer when odd.
func scaledEvenWidth(srcW, srcH, targetH int) int {
	if srcH <= 0 {
		return 0
	}
	w := int(math.Round(float64(targetH) * float64(srcW) / float64(srcH)))
	if w%2 != 0 {
		w++
	}
	return w
}
