package campaign

import "strings"

type ResolutionKind int

const (
	// ResolutionResolved carries the assignment the command applies to.
	ResolutionResolved ResolutionKind = iota
	// ResolutionNoActive means the KOL has no open assignment.
	ResolutionNoActive
	// ResolutionNoMatch means a hint was given and no campaign name contains it.
	ResolutionNoMatch
	// ResolutionAmbiguous means several assignments are open and no hint was given.
	ResolutionAmbiguous
)

type Resolution struct {
	Kind       ResolutionKind
	Assignment *Assignment
	// Candidates lists campaign names, in assignment order, for the
	// clarification reply.
	Candidates []string
}

// Disambiguate picks the assignment a submission applies to. A single open
// assignment always wins and the hint is ignored. Otherwise the first
// assignment whose campaign name contains the hint, case-insensitively, is
// chosen. The input order must be stable for the result to be deterministic.
func Disambiguate(assignments []Assignment, hint string) Resolution {
	switch len(assignments) {
	case 0:
		return Resolution{Kind: ResolutionNoActive}
	case 1:
		return Resolution{Kind: ResolutionResolved, Assignment: &assignments[0]}
	}

	candidates := make([]string, 0, len(assignments))
	for _, a := range assignments {
		candidates = append(candidates, a.Campaign.Name)
	}

	needle := strings.ToLower(strings.TrimSpace(hint))
	if needle == "" {
		return Resolution{Kind: ResolutionAmbiguous, Candidates: candidates}
	}

	for i := range assignments {
		if strings.Contains(strings.ToLower(assignments[i].Campaign.Name), needle) {
			return Resolution{Kind: ResolutionResolved, Assignment: &assignments[i]}
		}
	}

	return Resolution{Kind: ResolutionNoMatch, Candidates: candidates}
}
