package engine

import "github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"

const (
	maxVectorBoost  = 0.3
	vectorWeight    = 0.4
	maxGraphBoost   = 0.2
	graphWeight     = 0.2
	healthyBonus    = 0.1
	vectorHitBonus  = 0.05
	confidenceLimit = 0.98
)

// Score combines the retrieval signals into a confidence in [0, 0.98].
// healthy reports whether every retrieval stage avoided failure.
func Score(intent apptype.Intent, vectors []apptype.ScoredDocument, edges []apptype.RelatedEdge, healthy bool) float64 {
	c := intent.Confidence
	if len(vectors) > 0 {
		var sum float64
		for _, v := range vectors {
			sum += v.Similarity
		}
		c += min(maxVectorBoost, sum/float64(len(vectors))*vectorWeight)
	}
	if len(edges) > 0 {
		var sum float64
		for _, e := range edges {
			sum += e.EffectiveStrength
		}
		c += min(maxGraphBoost, sum/float64(len(edges))*graphWeight)
	}
	if healthy {
		c += healthyBonus
	}
	if len(vectors) > 0 {
		c += vectorHitBonus
	}
	return max(0, min(confidenceLimit, c))
}
