package agentloop

import "github.com/redlance/redlance/pkg/models"

// Result is what Run returns once a scan reaches a terminal state.
type Result struct {
	Status        models.ScanStatus
	FinalAnalysis string
	ErrorMessage  string
	Iterations    int
	TokensIn      int
	TokensOut     int
	EstimatedCost float64
}
