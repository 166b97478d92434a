// internal/matching/matcher.go
package matching

import (
	"sort"
	"strings"

	"ideamarket/internal/models"
)

// Match is one seller's fit for a project.
type Match struct {
	Seller        models.SellerProfile `json:"seller"`
	Score         int                  `json:"score"`
	Overlap       []string             `json:"overlap"`
	CategoryMatch bool                 `json:"categoryMatch"`
}

// Candidate converts m to the wire shape accepted by notify-sellers.
func (m Match) Candidate() models.RankedSeller {
	return models.RankedSeller{
		SellerID: m.Seller.ID,
		Name:     m.Seller.Name,
		Email:    m.Seller.Email,
		Score:    m.Score,
		Overlap:  append([]string{}, m.Overlap...),
	}
}

// Rank scores every seller against project and orders them by score,
// highest first. Equal scores keep their input order. Comparison is
// case-insensitive; overlap entries are lower-cased project skills in
// project order.
func Rank(project models.Project, sellers []models.SellerProfile) []Match {
	wanted := normalize(project.Skills)
	category := strings.ToLower(strings.TrimSpace(project.Category))

	out := make([]Match, 0, len(sellers))
	for _, s := range sellers {
		have := toSet(s.Skills)

		overlap := []string{}
		for _, skill := range wanted {
			if _, ok := have[skill]; ok {
				overlap = append(overlap, skill)
			}
		}

		catMatch := false
		if category != "" {
			_, catMatch = toSet(s.Categories)[category]
		}

		score := len(overlap)
		if catMatch {
			score++
		}
		out = append(out, Match{Seller: s, Score: score, Overlap: overlap, CategoryMatch: catMatch})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Candidates converts a ranking to notify-sellers candidates, keeping order.
func Candidates(matches []Match) []models.RankedSeller {
	out := make([]models.RankedSeller, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Candidate())
	}
	return out
}

// normalize lower-cases and de-duplicates values, keeping first occurrence.
func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	return set
}
