// Package suggest maps a user's discovered mailbox structure onto the
// canonical business taxonomy and recommends a reuse-or-create action per
// canonical slot.
//
// The engine is deliberately deterministic: the canonical tree is walked in
// pre-order, candidates are scanned in discovery order, and every tie-break
// is total. Identical inputs always produce identical output.
package suggest

import (
	"log/slog"
	"strings"

	"github.com/canopymail/canopy/internal/provider"
	"github.com/canopymail/canopy/internal/taxonomy"
)

// Threshold is the minimum similarity score for a partial match.
const Threshold = 0.6

// Action recommends what to do with a canonical slot.
type Action string

const (
	ActionReuse  Action = "reuse"
	ActionCreate Action = "create"
)

// Match records a canonical key resolved against a discovered item.
type Match struct {
	Key        string                  `json:"key"`
	Item       provider.DiscoveredItem `json:"item"`
	Confidence float64                 `json:"confidence"`
}

// Matches groups resolved keys by match quality.
type Matches struct {
	Exact   []Match `json:"exact"`
	Partial []Match `json:"partial"`
}

// MappingEntry is the per-key suggestion: reuse an existing item or create
// a new one.
type MappingEntry struct {
	Action        Action  `json:"action"`
	MatchedItemID string  `json:"matched_item_id,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// Suggestion is a MappingEntry with enough context to render a review UI.
type Suggestion struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Path        []string `json:"path"`
	Action      Action   `json:"action"`
	MatchedItem string   `json:"matched_item,omitempty"`
	MatchedID   string   `json:"matched_id,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Analysis summarizes how automatable the mapping is.
type Analysis struct {
	ExistingCount   int     `json:"existing_count"`
	CanonicalCount  int     `json:"canonical_count"`
	AutomationScore float64 `json:"automation_score"`
}

// Result is the full suggestion payload for one discovery.
type Result struct {
	Matches          Matches                 `json:"matches"`
	Suggestions      []Suggestion            `json:"suggestions"`
	SuggestedMapping map[string]MappingEntry `json:"suggested_mapping"`
	Analysis         Analysis                `json:"analysis"`
	MissingCount     int                     `json:"missing_count"`
}

// Suggest matches every canonical taxonomy slot of the business type's
// variant against the discovered user items. Each discovered item is
// consumed by at most one canonical key.
func Suggest(discovery *provider.DiscoveryResult, businessType string) *Result {
	canonical := taxonomy.Flatten(taxonomy.ForBusinessType(businessType))

	var candidates []provider.DiscoveredItem
	for _, it := range discovery.Items {
		if it.Type == provider.TypeUser {
			candidates = append(candidates, it)
		}
	}
	used := make([]bool, len(candidates))

	res := &Result{
		Matches:          Matches{Exact: []Match{}, Partial: []Match{}},
		Suggestions:      make([]Suggestion, 0, len(canonical)),
		SuggestedMapping: make(map[string]MappingEntry, len(canonical)),
	}

	// First pass: exact matches on the last path segment, case-insensitive
	// against both the display name and the key.
	exactIdx := make(map[string]int, len(canonical))
	for _, item := range canonical {
		idx := -1
		for i, cand := range candidates {
			if used[i] {
				continue
			}
			last := lastSegment(cand)
			if strings.EqualFold(last, item.DisplayName) || strings.EqualFold(last, item.Key) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			used[idx] = true
			exactIdx[item.Key] = idx
		}
	}

	// Second pass: bigram similarity for everything still unresolved.
	partialIdx := make(map[string]int, len(canonical))
	partialScore := make(map[string]float64, len(canonical))
	for _, item := range canonical {
		if _, ok := exactIdx[item.Key]; ok {
			continue
		}
		idx, score := bestPartial(item, candidates, used)
		if idx >= 0 {
			used[idx] = true
			partialIdx[item.Key] = idx
			partialScore[item.Key] = score
		}
	}

	// Assemble in canonical pre-order so output layout is stable.
	for _, item := range canonical {
		path := canonicalPath(businessType, item.Key)
		if idx, ok := exactIdx[item.Key]; ok {
			cand := candidates[idx]
			res.Matches.Exact = append(res.Matches.Exact, Match{Key: item.Key, Item: cand, Confidence: 1.0})
			res.SuggestedMapping[item.Key] = MappingEntry{Action: ActionReuse, MatchedItemID: cand.ID, Confidence: 1.0}
			res.Suggestions = append(res.Suggestions, Suggestion{
				Key: item.Key, DisplayName: item.DisplayName, Path: path,
				Action: ActionReuse, MatchedItem: cand.Name, MatchedID: cand.ID, Confidence: 1.0,
			})
			continue
		}
		if idx, ok := partialIdx[item.Key]; ok {
			cand := candidates[idx]
			score := partialScore[item.Key]
			res.Matches.Partial = append(res.Matches.Partial, Match{Key: item.Key, Item: cand, Confidence: score})
			res.SuggestedMapping[item.Key] = MappingEntry{Action: ActionReuse, MatchedItemID: cand.ID, Confidence: score}
			res.Suggestions = append(res.Suggestions, Suggestion{
				Key: item.Key, DisplayName: item.DisplayName, Path: path,
				Action: ActionReuse, MatchedItem: cand.Name, MatchedID: cand.ID, Confidence: score,
			})
			continue
		}
		res.MissingCount++
		res.SuggestedMapping[item.Key] = MappingEntry{Action: ActionCreate, Confidence: 0}
		res.Suggestions = append(res.Suggestions, Suggestion{
			Key: item.Key, DisplayName: item.DisplayName, Path: path,
			Action: ActionCreate, Confidence: 0,
		})
	}

	res.Analysis = Analysis{
		ExistingCount:  len(candidates),
		CanonicalCount: len(canonical),
	}
	if len(canonical) > 0 {
		res.Analysis.AutomationScore = float64(len(canonical)-res.MissingCount) / float64(len(canonical))
	}

	slog.Debug("suggestion complete",
		"canonical", len(canonical),
		"exact", len(res.Matches.Exact),
		"partial", len(res.Matches.Partial),
		"missing", res.MissingCount)
	return res
}

// bestPartial finds the highest-scoring unused candidate above Threshold.
// Ties go to the shorter discovered path, then the lexicographically
// smaller name.
func bestPartial(item taxonomy.Item, candidates []provider.DiscoveredItem, used []bool) (int, float64) {
	target := normalize(item.DisplayName)
	bestIdx := -1
	bestScore := 0.0
	for i, cand := range candidates {
		if used[i] {
			continue
		}
		score := DiceCoefficient(target, normalize(lastSegment(cand)))
		if score <= Threshold {
			continue
		}
		if bestIdx < 0 || score > bestScore || (score == bestScore && betterTie(cand, candidates[bestIdx])) {
			bestIdx = i
			bestScore = score
		}
	}
	return bestIdx, bestScore
}

func betterTie(a, b provider.DiscoveredItem) bool {
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	return a.Name < b.Name
}

// DiceCoefficient computes the Sørensen–Dice coefficient over character
// bigrams of two normalized strings, in [0,1].
func DiceCoefficient(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ab := bigrams(a)
	bb := bigrams(b)
	if len(ab) == 0 || len(bb) == 0 {
		return 0.0
	}
	overlap := 0
	for g, n := range ab {
		if m, ok := bb[g]; ok {
			overlap += min(n, m)
		}
	}
	return 2.0 * float64(overlap) / float64(total(ab)+total(bb))
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func total(grams map[string]int) int {
	n := 0
	for _, c := range grams {
		n += c
	}
	return n
}

// normalize case-folds and collapses whitespace for comparison.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func lastSegment(item provider.DiscoveredItem) string {
	if len(item.Path) == 0 {
		return item.Name
	}
	return item.Path[len(item.Path)-1]
}

// canonicalPath resolves the display path of a canonical key, empty on
// lookup failure (cannot happen for keys produced by Flatten).
func canonicalPath(businessType, key string) []string {
	path, err := taxonomy.Path(taxonomy.ForBusinessType(businessType), key)
	if err != nil {
		return nil
	}
	return path
}
