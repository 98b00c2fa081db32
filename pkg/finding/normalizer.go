// Package finding converts tool-specific raw findings into normalized,
// deduplicated Finding records.
package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/toolbox"
)

var cveRegex = regexp.MustCompile(`^CVE-\d{4}-\d+$`)

// Normalizer assigns severity, normalizes affected_target, computes a
// stable fingerprint, and deduplicates findings within a scan. One
// Normalizer instance is created per scan; it is not shared across scans.
type Normalizer struct {
	mu   sync.Mutex
	seen map[string]bool // fingerprint -> exists, scoped to this scan
}

// NewNormalizer returns a Normalizer with an empty per-scan dedup set.
func NewNormalizer() *Normalizer {
	return &Normalizer{seen: make(map[string]bool)}
}

// Normalize converts raw findings produced by a tool's Parser into
// normalized Finding records, dropping any whose fingerprint already
// exists in this scan (the earlier record stands).
func (n *Normalizer) Normalize(toolSource string, descriptor toolbox.Descriptor, scanID string, stepIndex int, raw []models.RawFinding) []models.Finding {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]models.Finding, 0, len(raw))
	for _, r := range raw {
		affected := normalizeTarget(r.AffectedTarget)
		fp := fingerprint(toolSource, r.Title, affected)
		if n.seen[fp] {
			continue
		}
		n.seen[fp] = true

		f := models.Finding{
			ID:             uuid.NewString(),
			ScanID:         scanID,
			StepIndex:      stepIndex,
			ToolSource:     toolSource,
			Severity:       descriptor.MapSeverity(strings.ToLower(r.RawSeverity)),
			Title:          r.Title,
			Description:    r.Description,
			Evidence:       r.Evidence,
			AffectedTarget: affected,
			Remediation:    r.Remediation,
			CVSSScore:      r.CVSSScore,
			Fingerprint:    fp,
		}
		if cveRegex.MatchString(r.CVE) {
			f.CVE = r.CVE
		}
		out = append(out, f)
	}
	return out
}

// fingerprint computes the stable per-scan dedup key specified for
// Finding: H(tool_source, title, affected_target).
func fingerprint(toolSource, title, affectedTarget string) string {
	h := sha256.New()
	h.Write([]byte(toolSource))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(affectedTarget))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeTarget lowercases hostnames, strips default ports and trailing
// slashes from URLs, and canonicalizes IP literals.
func normalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return target
	}

	if ip := net.ParseIP(strings.TrimSuffix(target, "/")); ip != nil {
		return ip.String()
	}

	if strings.Contains(target, "://") {
		return normalizeURL(target)
	}

	// bare host or host:port
	host, port, err := net.SplitHostPort(target)
	if err == nil {
		host = strings.ToLower(host)
		if port == "" {
			return host
		}
		return host + ":" + port
	}
	return strings.ToLower(target)
}

func normalizeURL(raw string) string {
	schemeSep := strings.Index(raw, "://")
	scheme := strings.ToLower(raw[:schemeSep])
	rest := raw[schemeSep+3:]

	path := ""
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		path = rest[idx:]
		rest = rest[:idx]
	}

	host := strings.ToLower(rest)
	defaultPort := map[string]string{"http": ":80", "https": ":443"}[scheme]
	if defaultPort != "" && strings.HasSuffix(host, defaultPort) {
		host = strings.TrimSuffix(host, defaultPort)
	}

	path = strings.TrimSuffix(path, "/")

	return scheme + "://" + host + path
}
