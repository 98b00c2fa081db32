// Package agentloop drives one scan from objective to terminal state: a
// bounded loop that alternates routing a decision to a fast or deep model
// tier, dispatching its function call to the toolbox and execution engine,
// normalizing the resulting findings, and deciding whether to continue,
// chain into a follow-up tool, or conclude. Modeled on the teacher's
// pkg/agent/controller.ReActController, generalized from its text-parsed
// ReAct format to native function-calling dispatch against the Provider
// interface, and from a single LangChain-backed model to the fast/deep
// hybrid router.
package agentloop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redlance/redlance/pkg/config"
	"github.com/redlance/redlance/pkg/errs"
	"github.com/redlance/redlance/pkg/events"
	"github.com/redlance/redlance/pkg/execengine"
	"github.com/redlance/redlance/pkg/finding"
	"github.com/redlance/redlance/pkg/llmprovider"
	"github.com/redlance/redlance/pkg/masking"
	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/router"
	"github.com/redlance/redlance/pkg/toolbox"
)

var lowConfidenceMarkers = []string{"not sure", "uncertain", "unclear", "low confidence", "hard to tell"}

// Input is one scan's starting parameters.
type Input struct {
	ScanID    string
	Target    string
	Objective string
	Profile   models.ScanProfile
}

// Loop owns every collaborator the agent needs to drive a single scan:
// the tool catalog, the execution engine, the finding normalizer, the two
// model tiers, the router and its cache, the event bus, and a persistence
// recorder. One Loop instance is shared across scans; Run is safe to call
// concurrently for distinct scan IDs.
type Loop struct {
	Registry    *toolbox.Registry
	Engine      *execengine.Engine
	Normalizer  *finding.Normalizer
	Providers   *llmprovider.Tiers
	ProviderCfg config.ProvidersConfig
	Thresholds  router.Thresholds
	Cache       *router.Cache
	Bus         *events.Bus
	Masker      *masking.Service
	Cfg         config.LoopConfig
	Recorder    Recorder
}

// NewLoop wires a Loop from its component collaborators and the loop's
// iteration/budget configuration.
func NewLoop(
	registry *toolbox.Registry,
	engine *execengine.Engine,
	normalizer *finding.Normalizer,
	providers *llmprovider.Tiers,
	providerCfg config.ProvidersConfig,
	thresholds router.Thresholds,
	cache *router.Cache,
	bus *events.Bus,
	masker *masking.Service,
	cfg config.LoopConfig,
	recorder Recorder,
) *Loop {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Loop{
		Registry: registry, Engine: engine, Normalizer: normalizer,
		Providers: providers, ProviderCfg: providerCfg, Thresholds: thresholds,
		Cache: cache, Bus: bus, Masker: masker, Cfg: cfg, Recorder: recorder,
	}
}

// runState accumulates everything the loop tracks across iterations of a
// single scan run.
type runState struct {
	messages           []llmprovider.Message
	functions          []llmprovider.FunctionSchema
	gate               *router.EscalationGate
	executedCalls      map[string]int // fingerprint -> times executed
	ranTools           map[string]bool
	findingsBySeverity map[models.Severity]int
	discoveredTargets  map[string]bool
	recentReasoning    []string
	consecutiveEmpty   int
	stepIndex          int
	totalTokensIn      int
	totalTokensOut     int
	totalCost          float64
	budgetExceeded     bool
	lastTier           *models.ModelTier
	objective          string
}

// Run drives the scan to completion, publishing events as it goes and
// persisting each step through Recorder. It returns once the scan reaches
// a terminal status.
func (l *Loop) Run(ctx context.Context, in Input) Result {
	deadline := time.Now().Add(l.Cfg.MaxScanDuration)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	st := &runState{
		messages:           []llmprovider.Message{{Role: "system", Content: buildSystemPrompt(in.Target, in.Objective)}},
		functions:          toLLMFunctions(l.Registry.Describe()),
		gate:               &router.EscalationGate{},
		executedCalls:      make(map[string]int),
		ranTools:           make(map[string]bool),
		findingsBySeverity: make(map[models.Severity]int),
		discoveredTargets:  map[string]bool{in.Target: true},
		objective:          in.Objective,
	}

	l.Bus.Publish(in.ScanID, models.Event{
		Kind:    models.EventScanStarted,
		Payload: map[string]any{"target": in.Target, "objective": in.Objective},
	})

	for iteration := 1; iteration <= l.Cfg.MaxIterations; iteration++ {
		if ctx.Err() != nil {
			if time.Now().After(deadline) {
				return l.terminate(in.ScanID, st, models.ScanStatusFailed, "", "timeout")
			}
			return l.terminate(in.ScanID, st, models.ScanStatusCancelled, "", "")
		}

		decision, resp, err := l.callTier(ctx, in.ScanID, st)
		if err != nil {
			var cls *errs.Classified
			ok := asClassified(err, &cls)
			if ok && !cls.Recoverable {
				return l.terminate(in.ScanID, st, models.ScanStatusFailed, "", cls.Error())
			}
			kind := errs.KindProviderNetwork
			if ok {
				kind = cls.Kind
			}
			l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventError, Payload: errorPayload(kind, true, err.Error(), nil)})
			st.consecutiveEmpty++
			if st.consecutiveEmpty >= 3 {
				return l.terminate(in.ScanID, st, models.ScanStatusFailed, "", "three consecutive malformed iterations")
			}
			continue
		}

		st.totalTokensIn += resp.TokensIn
		st.totalTokensOut += resp.TokensOut
		st.totalCost += l.costFor(decision.ModelTier, resp.TokensIn, resp.TokensOut)
		if l.Cfg.BudgetUSD != nil && st.totalCost > *l.Cfg.BudgetUSD {
			st.budgetExceeded = true
		}

		switch resp.Kind {
		case llmprovider.ResponseEmpty:
			st.consecutiveEmpty++
			if st.consecutiveEmpty >= 3 {
				return l.terminate(in.ScanID, st, models.ScanStatusFailed, "", "three consecutive empty responses")
			}

		case llmprovider.ResponseTextOnly:
			st.consecutiveEmpty = 0
			st.recentReasoning = append(st.recentReasoning, resp.Text)
			st.messages = append(st.messages, llmprovider.Message{Role: "assistant", Content: resp.Text})
			if containsAny(strings.ToLower(resp.Text), lowConfidenceMarkers) {
				st.gate.RequestEscalation()
			}
			if strings.Contains(strings.ToUpper(resp.Text), "ASSESSMENT COMPLETE") {
				return l.summarizeAndTerminate(ctx, in, st, resp.Text)
			}
			l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventAgentReasoning, Payload: map[string]any{"text": resp.Text}})

		case llmprovider.ResponseFunctionCall:
			st.consecutiveEmpty = 0
			if resp.FunctionName == finalAnswerFunction {
				summary := extractSummary(resp.ArgumentsJSON)
				return l.summarizeAndTerminate(ctx, in, st, summary)
			}
			l.dispatchFunctionCall(ctx, in, st, decision, resp)
		}
	}

	l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventMaxIterationsReached})
	return l.summarizeAndTerminate(ctx, in, st, "")
}

// callTier builds the routing context from accumulated state, consults
// the router, and calls the chosen provider, applying the handoff message
// whenever the tier changes from the previous iteration.
func (l *Loop) callTier(ctx context.Context, scanID string, st *runState) (router.Decision, llmprovider.ProviderResponse, error) {
	rctx := models.RoutingContext{
		SubdomainCount:   len(st.discoveredTargets),
		FindingCount:     totalFindings(st.findingsBySeverity),
		HighestSeverity:  highestSeverity(st.findingsBySeverity),
		TargetComplexity: complexityFor(len(st.discoveredTargets)),
		QueryIntentTags:  map[models.QueryIntent]bool{},
	}
	if st.budgetExceeded {
		fast := models.TierFast
		rctx.ForcedMode = &fast
	}
	decision := router.RouteWithEscalation(rctx, false, l.Thresholds, st.gate)

	if st.lastTier != nil && *st.lastTier != decision.ModelTier {
		hc := router.BuildHandoffContext(st.objective, st.recentReasoning, setKeys(st.discoveredTargets), st.findingsBySeverity)
		st.messages = append(st.messages, buildHandoffMessage(hc))
	}
	tier := decision.ModelTier
	st.lastTier = &tier

	l.Bus.Publish(scanID, models.Event{
		Kind:    models.EventModelSelected,
		Model:   &tier,
		Payload: map[string]any{"reason": decision.Reason},
	})

	provider := l.Providers.Select(decision.ModelTier)
	ep := l.endpointFor(decision.ModelTier)
	cfg := llmprovider.Config{Temperature: ep.Temperature, MaxTokens: ep.MaxTokens}

	// The cache MUST NOT serve a step whose prompt includes newly
	// discovered findings (spec §4.5), so it is only consulted while the
	// scan has not yet produced any: the transcript up to that point is a
	// pure function of the objective and tool outputs seen so far.
	fp := transcriptFingerprint(st.messages)
	mode := string(decision.ModelTier)
	if l.Cache != nil && totalFindings(st.findingsBySeverity) == 0 {
		if cached, ok := l.Cache.Get(fp, mode); ok {
			return decision, cached, nil
		}
	}

	resp, err := provider.Complete(ctx, st.messages, st.functions, cfg)
	if err == nil && l.Cache != nil && totalFindings(st.findingsBySeverity) == 0 {
		l.Cache.Put(fp, mode, resp)
	}
	return decision, resp, err
}

// dispatchFunctionCall validates and executes one tool call, with the
// bounded fix-up retry policy for malformed arguments and the duplicate
// tool-call refusal after two executions of the same (tool, args) pair.
func (l *Loop) dispatchFunctionCall(ctx context.Context, in Input, st *runState, decision router.Decision, resp llmprovider.ProviderResponse) {
	st.messages = append(st.messages, llmprovider.Message{
		Role:    "assistant",
		Content: fmt.Sprintf("calling %s(%s)", resp.FunctionName, resp.ArgumentsJSON),
	})

	var rawArgs map[string]any
	validated, err := l.parseAndValidate(resp, &rawArgs)
	retries := 0
	for err != nil && retries < l.Cfg.MaxFixupRetries {
		st.messages = append(st.messages, fixupMessage(err.Error()))
		fixed, fixErr := l.Providers.Select(decision.ModelTier).Complete(ctx, st.messages, st.functions, llmprovider.Config{})
		retries++
		if fixErr != nil || fixed.Kind != llmprovider.ResponseFunctionCall {
			err = fmt.Errorf("fix-up attempt produced no usable function call")
			continue
		}
		resp = fixed
		validated, err = l.parseAndValidate(resp, &rawArgs)
	}
	if err != nil {
		l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventError, Payload: errorPayload(errs.KindValidationError, true, err.Error(), nil)})
		return
	}

	descriptor, _ := l.Registry.Get(resp.FunctionName)
	callFingerprint := fingerprintCall(resp.FunctionName, validated)
	if st.executedCalls[callFingerprint] >= 2 {
		l.Bus.Publish(in.ScanID, models.Event{
			Kind: models.EventError,
			Payload: errorPayload(errs.KindValidationError, true,
				"duplicate_tool_call: tool call already executed twice this scan",
				map[string]any{"tool": resp.FunctionName}),
		})
		st.messages = append(st.messages, llmprovider.Message{Role: "user", Content: "That exact tool call has already run twice this scan; choose a different action."})
		return
	}
	if st.executedCalls[callFingerprint] == 1 {
		st.gate.RequestEscalation()
	}
	st.executedCalls[callFingerprint]++

	st.stepIndex++
	startedAt := time.Now()
	l.Bus.Publish(in.ScanID, models.Event{
		Kind:    models.EventToolCall,
		Payload: map[string]any{"tool": resp.FunctionName, "args": validated},
	})

	sink := &busSink{bus: l.Bus, masker: l.Masker, scanID: in.ScanID, toolName: resp.FunctionName}
	result, execErr := l.Engine.Execute(ctx, descriptor, validated, sink)

	step := models.AgentStep{
		ScanID:    in.ScanID,
		Index:     st.stepIndex,
		ModelUsed: decision.ModelTier,
		Reasoning: resp.Text,
		ToolCall: &models.ToolCallRecord{
			ToolName:           resp.FunctionName,
			Arguments:          stringifyMap(rawArgs),
			ValidatedArguments: stringifyMap(validated),
		},
		StartedAt:     startedAt,
		CompletedAt:   time.Now(),
		TokensIn:      resp.TokensIn,
		TokensOut:     resp.TokensOut,
		EstimatedCost: l.costFor(decision.ModelTier, resp.TokensIn, resp.TokensOut),
	}

	if execErr != nil {
		observation := fmt.Sprintf("tool %s failed: %v", resp.FunctionName, execErr)
		step.ToolResult = &models.ToolResultRecord{RawOutput: observation}
		st.messages = append(st.messages, llmprovider.Message{Role: "user", Content: observation})
		l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventToolCompleted, Payload: map[string]any{"tool": resp.FunctionName, "error": execErr.Error()}})
		_ = l.Recorder.AppendStep(ctx, step)
		return
	}

	st.ranTools[resp.FunctionName] = true
	normalized := l.Normalizer.Normalize(resp.FunctionName, descriptor, in.ScanID, st.stepIndex, result.RawFindings)
	for _, f := range normalized {
		st.findingsBySeverity[f.Severity]++
		st.discoveredTargets[f.AffectedTarget] = true
		l.Bus.Publish(in.ScanID, models.Event{Kind: models.EventFinding, Payload: map[string]any{"finding": f}})
		_ = l.Recorder.UpsertFinding(ctx, f)
	}

	step.ToolResult = &models.ToolResultRecord{
		RawOutput:      l.Masker.MaskToolOutput(result.RawOutput),
		ParsedFindings: normalized,
		ExitCode:       result.ExitCode,
		DurationMS:     result.DurationMS,
		Truncated:      result.Truncated,
	}
	_ = l.Recorder.AppendStep(ctx, step)
	l.Bus.Publish(in.ScanID, models.Event{
		Kind:    models.EventToolCompleted,
		Payload: map[string]any{"tool": resp.FunctionName, "finding_count": len(normalized)},
	})

	observation := fmt.Sprintf("%s completed: %d findings, exit code %d", resp.FunctionName, len(normalized), result.ExitCode)
	st.messages = append(st.messages, llmprovider.Message{Role: "user", Content: observation})

	var produced []toolbox.ChainKind
	produced = append(produced, descriptor.ChainOutputs...)
	candidates := l.Registry.ChainHint(produced)
	var fresh []string
	for _, c := range candidates {
		if !st.ranTools[c] {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) > 0 {
		st.messages = append(st.messages, chainHintMessage(fresh))
	}
}

func (l *Loop) parseAndValidate(resp llmprovider.ProviderResponse, rawOut *map[string]any) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(resp.ArgumentsJSON), &raw); err != nil {
		return nil, fmt.Errorf("could not parse function arguments as JSON: %w", err)
	}
	*rawOut = raw
	return l.Registry.Validate(resp.FunctionName, raw)
}

// summarizeAndTerminate invokes the mandatory final deep summarization
// step (spec §4.6 termination) regardless of the budget's fast-only
// restriction, then terminates completed.
func (l *Loop) summarizeAndTerminate(ctx context.Context, in Input, st *runState, hint string) Result {
	deep := l.Providers.Select(models.TierDeep)
	ep := l.endpointFor(models.TierDeep)
	prompt := "Provide the closing assessment: summarize findings, severity, and recommended next steps."
	if hint != "" {
		prompt = hint + "\n\n" + prompt
	}
	messages := append(append([]llmprovider.Message{}, st.messages...), llmprovider.Message{Role: "user", Content: prompt})

	resp, err := deep.Complete(ctx, messages, nil, llmprovider.Config{Temperature: ep.Temperature, MaxTokens: ep.MaxTokens})
	final := hint
	if err == nil && resp.Text != "" {
		final = resp.Text
		st.totalTokensIn += resp.TokensIn
		st.totalTokensOut += resp.TokensOut
		st.totalCost += l.costFor(models.TierDeep, resp.TokensIn, resp.TokensOut)
	}
	if final == "" {
		final = "Assessment concluded with partial results."
	}
	return l.terminate(in.ScanID, st, models.ScanStatusCompleted, final, "")
}

func (l *Loop) terminate(scanID string, st *runState, status models.ScanStatus, finalAnalysis, errMsg string) Result {
	kind := models.EventScanCompleted
	payload := map[string]any{}
	switch status {
	case models.ScanStatusFailed:
		kind = models.EventScanFailed
		payload["error"] = errMsg
	case models.ScanStatusCancelled:
		kind = models.EventScanCancelled
	default:
		payload["final_analysis"] = finalAnalysis
	}
	l.Bus.Publish(scanID, models.Event{Kind: kind, Payload: payload})

	return Result{
		Status:        status,
		FinalAnalysis: finalAnalysis,
		ErrorMessage:  errMsg,
		Iterations:    st.stepIndex,
		TokensIn:      st.totalTokensIn,
		TokensOut:     st.totalTokensOut,
		EstimatedCost: st.totalCost,
	}
}

func (l *Loop) endpointFor(tier models.ModelTier) config.ProviderEndpoint {
	if tier == models.TierDeep {
		return l.ProviderCfg.Deep
	}
	return l.ProviderCfg.Fast
}

func (l *Loop) costFor(tier models.ModelTier, tokensIn, tokensOut int) float64 {
	ep := l.endpointFor(tier)
	return float64(tokensIn)/1000*ep.CostPerKTokIn + float64(tokensOut)/1000*ep.CostPerKTokOut
}

func asClassified(err error, target **errs.Classified) bool {
	cls, ok := err.(*errs.Classified)
	if ok {
		*target = cls
		return true
	}
	return false
}

// errorPayload builds an `error` event payload carrying the spec-mandated
// kind/recoverable fields alongside the human-readable reason.
func errorPayload(kind errs.Kind, recoverable bool, reason string, extra map[string]any) map[string]any {
	payload := map[string]any{
		"kind":        string(kind),
		"recoverable": recoverable,
		"error":       reason,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload
}

func extractSummary(argumentsJSON string) string {
	var args struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
		slog.Warn("could not parse submit_final_assessment arguments", "error", err)
		return ""
	}
	return args.Summary
}

func transcriptFingerprint(messages []llmprovider.Message) string {
	h := sha256.New()
	for _, m := range messages {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func fingerprintCall(toolName string, validated map[string]any) string {
	b, _ := json.Marshal(validated)
	return toolName + "\x00" + string(b)
}

func stringifyMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func totalFindings(bySeverity map[models.Severity]int) int {
	total := 0
	for _, n := range bySeverity {
		total += n
	}
	return total
}

func highestSeverity(bySeverity map[models.Severity]int) models.Severity {
	highest := models.SeverityInfo
	for sev, n := range bySeverity {
		if n > 0 && sev > highest {
			highest = sev
		}
	}
	return highest
}

func complexityFor(targetCount int) models.TargetComplexity {
	switch {
	case targetCount >= 50:
		return models.ComplexityHigh
	case targetCount >= 10:
		return models.ComplexityMedium
	default:
		return models.ComplexityLow
	}
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
