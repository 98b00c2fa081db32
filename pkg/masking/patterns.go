package masking

// patternSpec is the uncompiled form of a built-in pattern: a regex source
// string and the replacement text for matches.
type patternSpec struct {
	pattern     string
	replacement string
}

// builtinPatterns covers the credential shapes security tools most
// commonly echo back verbatim: cloud access keys, bearer/API tokens, and
// PEM-encoded private key material. Deliberately conservative — false
// positives (masking something that wasn't actually a secret) are cheaper
// than leaking a real one into persisted scan output.
var builtinPatterns = map[string]patternSpec{
	"aws_access_key_id": {
		pattern:     `\b(AKIA|ASIA)[0-9A-Z]{16}\b`,
		replacement: "[REDACTED:AWS_ACCESS_KEY]",
	},
	"aws_secret_access_key": {
		pattern:     `(?i)(aws_secret_access_key|secret[_-]?access[_-]?key)\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}["']?`,
		replacement: "$1=[REDACTED:AWS_SECRET_KEY]",
	},
	"bearer_token": {
		pattern:     `(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{16,}=*\b`,
		replacement: "Bearer [REDACTED:TOKEN]",
	},
	"generic_api_key_assignment": {
		pattern:     `(?i)\b(api[_-]?key|access[_-]?token|auth[_-]?token|client[_-]?secret)\s*[:=]\s*["']?[A-Za-z0-9\-._~+/]{12,}["']?`,
		replacement: "$1=[REDACTED:CREDENTIAL]",
	},
	"private_key_block": {
		pattern:     `(?s)-----BEGIN (RSA |EC |OPENSSH |DSA |)PRIVATE KEY-----.*?-----END (RSA |EC |OPENSSH |DSA |)PRIVATE KEY-----`,
		replacement: "[REDACTED:PRIVATE_KEY]",
	},
	"jwt": {
		pattern:     `\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`,
		replacement: "[REDACTED:JWT]",
	},
	"slack_token": {
		pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,}\b`,
		replacement: "[REDACTED:SLACK_TOKEN]",
	},
}
