package toolbox

// FieldType enumerates the argument types the schema understands. Kept
// deliberately small: the validation contract only needs to distinguish
// strings, numbers, bools, and string lists.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldBool
	FieldStringList
)

// FieldSchema describes one argument of a tool's argument_schema: its type,
// whether it is required, a default value when absent, and inclusive
// numeric bounds (ignored for non-numeric fields).
type FieldSchema struct {
	Name     string
	Type     FieldType
	Required bool
	Default  any
	Min, Max float64 // only consulted when Type is FieldInt or FieldFloat
	HasBound bool
}

// ArgumentSchema is the ordered set of fields a tool accepts.
type ArgumentSchema struct {
	Fields []FieldSchema
}

func (s ArgumentSchema) field(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// FunctionSchema is the LLM-function-calling-API-shaped projection of a
// ToolDescriptor, returned by Registry.Describe().
type FunctionSchema struct {
	Name        string
	Description string
	Parameters  map[string]FunctionParam
	Required    []string
}

// FunctionParam is one entry of a FunctionSchema's parameter map.
type FunctionParam struct {
	Type        string
	Description string
}
