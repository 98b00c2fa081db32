package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/models"
	"github.com/redlance/redlance/pkg/toolbox"
)

func testDescriptor() toolbox.Descriptor {
	return toolbox.Descriptor{
		Name: "vuln_template_scanner",
		SeverityMap: map[string]models.Severity{
			"high": models.SeverityHigh,
		},
	}
}

func TestNormalizeAssignsMappedSeverity(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("vuln_template_scanner", testDescriptor(), "scan-1", 3, []models.RawFinding{
		{Title: "Exposed panel", RawSeverity: "high", AffectedTarget: "https://Example.test/Admin/"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
}

func TestNormalizeDefaultsUnknownSeverityToInfo(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("vuln_template_scanner", testDescriptor(), "scan-1", 1, []models.RawFinding{
		{Title: "x", RawSeverity: "notable", AffectedTarget: "host.test"},
	})
	require.Len(t, out, 1)
	assert.Equal(t, models.SeverityInfo, out[0].Severity)
}

func TestNormalizeDeduplicatesWithinScan(t *testing.T) {
	n := NewNormalizer()
	first := n.Normalize("nuclei", testDescriptor(), "scan-1", 1, []models.RawFinding{
		{Title: "dup", AffectedTarget: "host.test", Description: "first"},
	})
	second := n.Normalize("nuclei", testDescriptor(), "scan-1", 2, []models.RawFinding{
		{Title: "dup", AffectedTarget: "host.test", Description: "second"},
	})
	require.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestNormalizeURLStripsDefaultPortAndTrailingSlash(t *testing.T) {
	assert.Equal(t, "https://example.test/admin", normalizeURL("https://EXAMPLE.test:443/admin/"))
	assert.Equal(t, "http://example.test", normalizeURL("http://example.test:80/"))
}

func TestNormalizeCanonicalizesIP(t *testing.T) {
	assert.Equal(t, "192.168.1.1", normalizeTarget("192.168.1.1"))
}

func TestNormalizeLowercasesHostname(t *testing.T) {
	assert.Equal(t, "example.test", normalizeTarget("EXAMPLE.test"))
}

func TestNormalizeValidatesCVESyntax(t *testing.T) {
	n := NewNormalizer()
	out := n.Normalize("nuclei", testDescriptor(), "scan-1", 1, []models.RawFinding{
		{Title: "a", AffectedTarget: "host1.test", CVE: "CVE-2023-12345"},
		{Title: "b", AffectedTarget: "host2.test", CVE: "not-a-cve"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "CVE-2023-12345", out[0].CVE)
	assert.Empty(t, out[1].CVE)
}

func TestNormalizeFingerprintStableAcrossCalls(t *testing.T) {
	a := fingerprint("nmap", "open port", "host:80")
	b := fingerprint("nmap", "open port", "host:80")
	assert.Equal(t, a, b)
}

func TestNormalizeFingerprintDiffersOnAnyField(t *testing.T) {
	base := fingerprint("nmap", "open port", "host:80")
	assert.NotEqual(t, base, fingerprint("nmap", "open port", "host:81"))
	assert.NotEqual(t, base, fingerprint("httpx", "open port", "host:80"))
}
