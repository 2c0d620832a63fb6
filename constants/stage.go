package constants

import "strings"

// ProjectStage is the development stage reported for a mining project.
type ProjectStage string

const (
	StageExploration    ProjectStage = "Exploration"
	StagePEA            ProjectStage = "PEA"
	StagePreFeasibility ProjectStage = "Pre-Feasibility"
	StageFeasibility    ProjectStage = "Feasibility"
	StageDevelopment    ProjectStage = "Development"
	StageProduction     ProjectStage = "Production"
)

var allStages = []ProjectStage{
	StageExploration, StagePEA, StagePreFeasibility, StageFeasibility, StageDevelopment, StageProduction,
}

// Stages returns the stage labels offered to the model.
func Stages() []string {
	out := make([]string, len(allStages))
	for i, s := range allStages {
		out[i] = string(s)
	}
	return out
}

var stageAliases = map[string]ProjectStage{
	"preliminary economic assessment": StagePEA,
	"scoping":                         StagePEA,
	"scoping study":                   StagePEA,
	"pfs":                             StagePreFeasibility,
	"prefeasibility":                  StagePreFeasibility,
	"pre-feasibility study":           StagePreFeasibility,
	"fs":                              StageFeasibility,
	"dfs":                             StageFeasibility,
	"bfs":                             StageFeasibility,
	"feasibility study":               StageFeasibility,
	"definitive feasibility study":    StageFeasibility,
	"construction":                    StageDevelopment,
	"operating":                       StageProduction,
	"producing":                       StageProduction,
}

// CanonicalStage maps a free-form stage label onto a known stage.
// Unknown labels are returned trimmed with ok=false.
func CanonicalStage(input string) (string, bool) {
	s := strings.TrimSpace(input)
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if key == "" {
		return "", false
	}
	if st, ok := stageAliases[key]; ok {
		return string(st), true
	}
	for _, st := range allStages {
		if strings.EqualFold(key, string(st)) {
			return string(st), true
		}
	}
	return s, false
}
