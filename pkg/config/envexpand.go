package config

import "os"

// ExpandEnv expands ${VAR} / $VAR references in raw YAML using the standard
// library's shell-style expansion. Missing variables expand to empty
// string; Validate is responsible for catching fields left empty by that.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
