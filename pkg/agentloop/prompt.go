package agentloop

import (
	"fmt"
	"strings"

	"github.com/redlance/redlance/pkg/llmprovider"
	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/router"
	"github.com/redlance/redlance/pkg/toolbox"
)

// finalAnswerFunction is the reserved function name the model calls to
// declare the assessment complete, instead of requesting another tool.
const finalAnswerFunction = "submit_final_assessment"

func finalAnswerSchema() llmprovider.FunctionSchema {
	return llmprovider.FunctionSchema{
		Name:        finalAnswerFunction,
		Description: "Declare the penetration test objective satisfied and submit the closing assessment narrative.",
		Parameters: map[string]llmprovider.FunctionParam{
			"summary": {Type: "string", Description: "Final narrative covering what was found and its risk."},
		},
		Required: []string{"summary"},
	}
}

func toLLMFunctions(schemas []toolbox.FunctionSchema) []llmprovider.FunctionSchema {
	out := make([]llmprovider.FunctionSchema, 0, len(schemas)+1)
	for _, s := range schemas {
		params := make(map[string]llmprovider.FunctionParam, len(s.Parameters))
		for k, v := range s.Parameters {
			params[k] = llmprovider.FunctionParam{Type: v.Type, Description: v.Description}
		}
		out = append(out, llmprovider.FunctionSchema{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  params,
			Required:    s.Required,
		})
	}
	out = append(out, finalAnswerSchema())
	return out
}

func buildSystemPrompt(target, objective string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are directing an authorized penetration test against %q.\n", target)
	fmt.Fprintf(&b, "Objective: %s\n", objective)
	b.WriteString("Call exactly one tool function per turn, or call submit_final_assessment once the objective is satisfied or no further tool gives new signal.\n")
	return b.String()
}

func buildHandoffMessage(hc router.HandoffContext) llmprovider.Message {
	var b strings.Builder
	b.WriteString("Continuing under a new model tier. Prior context:\n")
	fmt.Fprintf(&b, "Objective: %s\n", hc.Objective)
	if len(hc.RecentReasoning) > 0 {
		b.WriteString("Recent reasoning:\n")
		for _, r := range hc.RecentReasoning {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(hc.DiscoveredTargets) > 0 {
		fmt.Fprintf(&b, "Discovered targets: %s\n", strings.Join(hc.DiscoveredTargets, ", "))
	}
	if len(hc.FindingCountBySeverity) > 0 {
		b.WriteString("Findings so far: ")
		for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInfo} {
			if n, ok := hc.FindingCountBySeverity[sev]; ok && n > 0 {
				fmt.Fprintf(&b, "%s=%d ", sev.String(), n)
			}
		}
		b.WriteString("\n")
	}
	return llmprovider.Message{Role: "user", Content: b.String()}
}

func chainHintMessage(candidates []string) llmprovider.Message {
	return llmprovider.Message{
		Role: "user",
		Content: fmt.Sprintf(
			"New findings make these tools worth considering next, if they serve the objective: %s",
			strings.Join(candidates, ", "),
		),
	}
}

func fixupMessage(reason string) llmprovider.Message {
	return llmprovider.Message{
		Role:    "user",
		Content: fmt.Sprintf("Your previous function call was invalid (%s). Reissue a single corrected function call.", reason),
	}
}
