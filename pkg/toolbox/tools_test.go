package toolbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortScanGrepableExtractsOpenPorts(t *testing.T) {
	raw := `Host: 10.0.0.1 ()	Ports: 22/open/tcp//ssh///, 80/open/tcp//http///, 81/closed/tcp//unknown///
`
	findings, err := parsePortScanGrepable(raw, 0)
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "10.0.0.1:22", findings[0].AffectedTarget)
	assert.Equal(t, "10.0.0.1:80", findings[1].AffectedTarget)
}

func TestParseHTTPXJSONLinesSkipsInvalidLines(t *testing.T) {
	raw := "{\"url\":\"https://example.test\",\"status_code\":200,\"title\":\"Home\",\"webserver\":\"nginx\"}\nnot json\n"
	findings, err := parseHTTPXJSONLines(raw, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "https://example.test", findings[0].AffectedTarget)
}

func TestParseNucleiJSONLinesCarriesSeverity(t *testing.T) {
	raw := `{"template-id":"exposed-panel","info":{"name":"Exposed Admin Panel","severity":"medium"},"host":"https://example.test","matched-at":"https://example.test/admin"}`
	findings, err := parseNucleiJSONLines(raw, 1)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "medium", findings[0].RawSeverity)
	assert.Equal(t, "Exposed Admin Panel", findings[0].Title)
}

func TestParseFFUFJSONExtractsResults(t *testing.T) {
	raw := `{"results":[{"url":"https://example.test/admin","status":200,"length":512}]}`
	findings, err := parseFFUFJSON(raw, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "https://example.test/admin", findings[0].AffectedTarget)
}

func TestParseSQLMapOutputAssociatesParameterWithVulnerability(t *testing.T) {
	raw := "Parameter: id (GET)\n    Type: boolean-based blind\nid is vulnerable to SQL injection\n"
	findings, err := parseSQLMapOutput(raw, 0)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "id", findings[0].AffectedTarget)
	assert.Equal(t, "injectable", findings[0].RawSeverity)
}

func TestVulnTemplateScannerTreatsExitOneAsSuccess(t *testing.T) {
	d := vulnTemplateScannerDescriptor()
	assert.True(t, d.IsSuccessExit(1))
	assert.True(t, d.IsSuccessExit(0))
	assert.False(t, d.IsSuccessExit(2))
}

func TestDescriptorMapSeverityDefaultsToInfo(t *testing.T) {
	d := vulnTemplateScannerDescriptor()
	assert.Equal(t, "critical", d.MapSeverity("critical").String())
	assert.Equal(t, "info", d.MapSeverity("unknown-label").String())
}
