package window

// ArtifactKind names one of the two files a window fetch produces.
type ArtifactKind int

const (
	// Fine is the daily series restricted to the window range.
	Fine ArtifactKind = iota
	// Coarse is the companion series from the series start to the window end.
	Coarse
)

func (k ArtifactKind) String() string {
	switch k {
	case Fine:
		return "fine"
	case Coarse:
		return "coarse"
	default:
		return "unknown"
	}
}

// Materialized reports whether the artifact of the given kind exists for a window.
type Materialized func(w Window, kind ArtifactKind) bool

// MissingWindow is one row of the missing-window ledger.
type MissingWindow struct {
	CountryCode string
	Start       Month
	End         Month
}

// Audit replays the plan for req and returns every window for which neither artifact exists.
func Audit(countryCode string, req PlanRequest, exists Materialized) ([]MissingWindow, error) {
	plan, err := Plan(req)
	if err != nil {
		return nil, err
	}

	missing := make([]MissingWindow, 0)
	for _, w := range plan {
		if exists(w, Fine) || exists(w, Coarse) {
			continue
		}
		missing = append(missing, MissingWindow{CountryCode: countryCode, Start: w.Start, End: w.End})
	}
	return missing, nil
}
