package toolbox

import "fmt"

// Registry is the authoritative, immutable-after-construction catalog of
// tools usable by the agent loop.
type Registry struct {
	descriptors map[string]Descriptor
	order       []string // registration order, kept for deterministic Describe()
}

// NewRegistry builds the registry with the minimum tool set the spec
// requires: port scanner, subdomain enumerator, HTTP prober, template
// vulnerability scanner, web-technology fingerprinter, TLS scanner,
// web fuzzer, and SQL-injection probe.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor)}
	for _, d := range builtinDescriptors() {
		r.register(d)
	}
	return r
}

func (r *Registry) register(d Descriptor) {
	r.descriptors[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Get returns the descriptor for name, or false if unknown.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.descriptors[name]
	return d, ok
}

// Describe returns the LLM-function-calling-shaped schema for every
// registered tool, in registration order.
func (r *Registry) Describe() []FunctionSchema {
	out := make([]FunctionSchema, 0, len(r.order))
	for _, name := range r.order {
		d := r.descriptors[name]
		params := make(map[string]FunctionParam, len(d.ArgumentSchema.Fields))
		var required []string
		for _, f := range d.ArgumentSchema.Fields {
			params[f.Name] = FunctionParam{Type: fieldTypeName(f.Type), Description: ""}
			if f.Required {
				required = append(required, f.Name)
			}
		}
		out = append(out, FunctionSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
			Required:    required,
		})
	}
	return out
}

// Validate checks raw_args against the named tool's schema, dropping
// unknown keys, applying defaults, and coercing types within bounds.
func (r *Registry) Validate(toolName string, rawArgs map[string]any) (map[string]any, error) {
	d, ok := r.descriptors[toolName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, toolName)
	}
	return validateArgs(toolName, d.ArgumentSchema, rawArgs)
}

// ChainHint maps a set of chain kinds produced by prior findings to an
// ordered list of candidate tool names able to consume at least one of
// them. Pure function of the registry's static descriptors and the input
// set — order is registration order among matches, which keeps the hint
// deterministic for a given registry.
func (r *Registry) ChainHint(produced []ChainKind) []string {
	producedSet := make(map[ChainKind]bool, len(produced))
	for _, k := range produced {
		producedSet[k] = true
	}

	var candidates []string
	for _, name := range r.order {
		d := r.descriptors[name]
		for _, in := range d.ChainInputs {
			if producedSet[in] {
				candidates = append(candidates, name)
				break
			}
		}
	}
	return candidates
}

func fieldTypeName(t FieldType) string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "integer"
	case FieldFloat:
		return "number"
	case FieldBool:
		return "boolean"
	case FieldStringList:
		return "array"
	default:
		return "string"
	}
}
