// Package router implements the hybrid fast/deep routing policy: a pure
// function of RoutingContext that chooses a model tier, plus the
// handoff-context summary emitted whenever that choice changes tier.
package router

import (
	"github.com/redlance/redlance/pkg/models"
)

// Thresholds holds the configurable cutoffs the routing policy consults.
type Thresholds struct {
	FindingThreshold   int
	SubdomainThreshold int
}

// Decision is the tier Route chose plus a short machine-readable reason
// (e.g. "forced_mode", "finding_threshold", "default").
type Decision struct {
	models.ModelTier
	Reason string
}

// Route applies the deterministic policy from spec §4.5 in order:
// forced_mode, completion summarization, finding-count+severity escalation,
// subdomain-count/target-complexity escalation, plan/prioritize intent,
// otherwise fast.
func Route(ctx models.RoutingContext, isCompletionSummarization bool, thresholds Thresholds) Decision {
	if ctx.ForcedMode != nil {
		return Decision{ModelTier: *ctx.ForcedMode, Reason: "forced_mode"}
	}
	if isCompletionSummarization {
		return Decision{ModelTier: models.TierDeep, Reason: "completion_summarization"}
	}
	if ctx.FindingCount >= thresholds.FindingThreshold && ctx.HighestSeverity >= models.SeverityHigh {
		return Decision{ModelTier: models.TierDeep, Reason: "finding_threshold"}
	}
	if ctx.SubdomainCount >= thresholds.SubdomainThreshold {
		return Decision{ModelTier: models.TierDeep, Reason: "subdomain_scale"}
	}
	if ctx.TargetComplexity == models.ComplexityHigh {
		return Decision{ModelTier: models.TierDeep, Reason: "target_complexity"}
	}
	if ctx.QueryIntentTags[models.IntentPlan] || ctx.QueryIntentTags[models.IntentPrioritize] {
		return Decision{ModelTier: models.TierDeep, Reason: "intent_tag"}
	}
	return Decision{ModelTier: models.TierFast, Reason: "default"}
}

// RouteWithEscalation wraps Route with the single-use escalation latch: an
// explicit escalation request (armed by the agent loop when a model reply
// signals low confidence or a tool call is repeated) forces the very next
// decision to deep, then the latch clears.
func RouteWithEscalation(ctx models.RoutingContext, isCompletionSummarization bool, thresholds Thresholds, gate *EscalationGate) Decision {
	if ctx.ForcedMode == nil && gate != nil && gate.Consume() {
		return Decision{ModelTier: models.TierDeep, Reason: "escalation_requested"}
	}
	return Route(ctx, isCompletionSummarization, thresholds)
}

// HandoffContext summarizes conversational continuity across a tier
// switch so the new model does not need the full transcript replayed.
type HandoffContext struct {
	Objective            string
	RecentReasoning      []string // last 3
	DiscoveredTargets    []string
	FindingCountBySeverity map[models.Severity]int
}

// BuildHandoffContext assembles a HandoffContext from the running scan
// state. recentReasoning is truncated to the last 3 entries.
func BuildHandoffContext(objective string, recentReasoning []string, discoveredTargets []string, findingCounts map[models.Severity]int) HandoffContext {
	if len(recentReasoning) > 3 {
		recentReasoning = recentReasoning[len(recentReasoning)-3:]
	}
	return HandoffContext{
		Objective:              objective,
		RecentReasoning:        recentReasoning,
		DiscoveredTargets:      discoveredTargets,
		FindingCountBySeverity: findingCounts,
	}
}
