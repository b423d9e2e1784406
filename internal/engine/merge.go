package engine

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-context-libsql-go/internal/timeseries"
)

const (
	contextDocs      = 3
	contextEdges     = 5
	contextPoints    = 10
	contentPreview   = 200
	untitledDocument = "Untitled"
	unknownCategory  = "Unknown"
)

// BuildContext renders the retrieval results as the plain-text block handed
// to a downstream generator. Sections without data are left out.
func BuildContext(cls apptype.Classification, vectors []apptype.ScoredDocument, edges []apptype.RelatedEdge, responseTimes []apptype.MetricPoint) string {
	lines := []string{
		fmt.Sprintf("User Intent: %s (confidence: %.2f)", cls.Intent.Type, cls.Intent.Confidence),
	}
	if len(cls.Entities) > 0 {
		parts := make([]string, len(cls.Entities))
		for i, e := range cls.Entities {
			parts[i] = e.Type + ": " + e.Value
		}
		lines = append(lines, "Extracted Entities: "+strings.Join(parts, ", "))
	}

	if len(vectors) > 0 {
		lines = append(lines, fmt.Sprintf("\nSemantic Search Results (%d found):", len(vectors)))
		for i, hit := range vectors[:min(contextDocs, len(vectors))] {
			lines = append(lines,
				fmt.Sprintf("%d. %s (similarity: %.3f)", i+1, orDefault(hit.Document.Title, untitledDocument), hit.Similarity),
				fmt.Sprintf("   Content: %s...", preview(hit.Document.Content, contentPreview)),
				fmt.Sprintf("   Category: %s", orDefault(hit.Document.Category, unknownCategory)),
			)
		}
	}

	if len(edges) > 0 {
		lines = append(lines, fmt.Sprintf("\nRelationship Context (%d relationships):", len(edges)))
		for _, e := range edges[:min(contextEdges, len(edges))] {
			lines = append(lines, fmt.Sprintf("• %s --[%s]--> %s (strength: %.2f)",
				e.SourceID, e.RelationshipType, e.TargetID, e.EffectiveStrength))
		}
	}

	// responseTimes is newest first, so this averages the most recent points.
	if avg, ok := timeseries.Mean(responseTimes, contextPoints); ok {
		lines = append(lines, fmt.Sprintf("\nPerformance Context: Recent average response time: %.2fs", avg))
	}
	return strings.Join(lines, "\n")
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
