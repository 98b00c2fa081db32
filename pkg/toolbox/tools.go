package toolbox

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redlance/redlance/pkg/models"
)

// builtinDescriptors returns the minimum registered-tool set the spec
// requires. Binaries, flags, and output shapes are modeled on the real
// tools of the same class (nmap, subfinder, httpx, nuclei, whatweb,
// sslscan, ffuf, sqlmap) without depending on their exact CLI surface —
// BuildArgs/Parser are the seams a deployment wires to its actual binary.
func builtinDescriptors() []Descriptor {
	return []Descriptor{
		portScannerDescriptor(),
		subdomainEnumeratorDescriptor(),
		httpProbeDescriptor(),
		vulnTemplateScannerDescriptor(),
		webTechFingerprinterDescriptor(),
		tlsScannerDescriptor(),
		webFuzzerDescriptor(),
		sqlInjectionProbeDescriptor(),
	}
}

func portScannerDescriptor() Descriptor {
	return Descriptor{
		Name:        "port_scanner",
		Description: "Scans a target for open TCP ports and identifies listening services.",
		Binary:      "nmap",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target", Type: FieldString, Required: true},
			{Name: "ports", Type: FieldString, Default: "1-1000"},
			{Name: "service_detection", Type: FieldBool, Default: true},
		}},
		ChainOutputs:     []ChainKind{ChainOpenPort},
		ChainInputs:      nil,
		DefaultTimeout:   3 * time.Minute,
		MaxOutputBytes:   2 << 20,
		SuccessExitCodes: nil,
		SeverityMap:      map[string]models.Severity{},
		BuildArgs: func(v map[string]any) []string {
			args := []string{"-p", asString(v["ports"]), "-oG", "-"}
			if asBool(v["service_detection"]) {
				args = append(args, "-sV")
			}
			return append(args, asString(v["target"]))
		},
		Parser: ParserFunc(parsePortScanGrepable),
	}
}

func subdomainEnumeratorDescriptor() Descriptor {
	return Descriptor{
		Name:        "subdomain_enumerator",
		Description: "Enumerates subdomains of a target domain via passive sources.",
		Binary:      "subfinder",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "domain", Type: FieldString, Required: true},
			{Name: "max_results", Type: FieldInt, Default: int64(500), HasBound: true, Min: 1, Max: 5000},
		}},
		ChainOutputs:   []ChainKind{ChainSubdomain},
		DefaultTimeout: 2 * time.Minute,
		MaxOutputBytes: 1 << 20,
		SeverityMap:    map[string]models.Severity{},
		BuildArgs: func(v map[string]any) []string {
			return []string{"-d", asString(v["domain"]), "-silent"}
		},
		Parser: ParserFunc(parseLineListFindings("subdomain discovered")),
	}
}

func httpProbeDescriptor() Descriptor {
	return Descriptor{
		Name:        "http_probe",
		Description: "Probes hosts for HTTP(S) liveness and collects response metadata (status, title, server header).",
		Binary:      "httpx",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "targets", Type: FieldStringList, Required: true},
			{Name: "follow_redirects", Type: FieldBool, Default: true},
		}},
		ChainOutputs:   []ChainKind{ChainLiveHost},
		ChainInputs:    []ChainKind{ChainSubdomain, ChainOpenPort},
		DefaultTimeout: 90 * time.Second,
		MaxOutputBytes: 1 << 20,
		SeverityMap:    map[string]models.Severity{},
		BuildArgs: func(v map[string]any) []string {
			args := []string{"-json", "-silent"}
			if !asBool(v["follow_redirects"]) {
				args = append(args, "-no-fallback")
			}
			return args
		},
		Parser: ParserFunc(parseHTTPXJSONLines),
	}
}

func vulnTemplateScannerDescriptor() Descriptor {
	return Descriptor{
		Name:        "vuln_template_scanner",
		Description: "Runs template-based vulnerability checks against live hosts (CVEs, misconfigurations, exposures).",
		Binary:      "nuclei",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target", Type: FieldString, Required: true},
			{Name: "severity_filter", Type: FieldString, Default: "low,medium,high,critical"},
		}},
		ChainOutputs:     []ChainKind{ChainFinding},
		ChainInputs:      []ChainKind{ChainLiveHost},
		DefaultTimeout:   5 * time.Minute,
		MaxOutputBytes:   4 << 20,
		SuccessExitCodes: []int{1}, // nuclei exits 1 when findings are emitted
		SeverityMap: map[string]models.Severity{
			"info":     models.SeverityInfo,
			"low":      models.SeverityLow,
			"medium":   models.SeverityMedium,
			"high":     models.SeverityHigh,
			"critical": models.SeverityCritical,
		},
		BuildArgs: func(v map[string]any) []string {
			return []string{"-u", asString(v["target"]), "-severity", asString(v["severity_filter"]), "-jsonl"}
		},
		Parser: ParserFunc(parseNucleiJSONLines),
	}
}

func webTechFingerprinterDescriptor() Descriptor {
	return Descriptor{
		Name:        "web_tech_fingerprinter",
		Description: "Identifies the web technology stack (frameworks, CMS, server software) of a live host.",
		Binary:      "whatweb",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target", Type: FieldString, Required: true},
		}},
		ChainOutputs:   []ChainKind{ChainWebTech},
		ChainInputs:    []ChainKind{ChainLiveHost},
		DefaultTimeout: 60 * time.Second,
		MaxOutputBytes: 512 << 10,
		SeverityMap:    map[string]models.Severity{},
		BuildArgs: func(v map[string]any) []string {
			return []string{"--log-json=-", asString(v["target"])}
		},
		Parser: ParserFunc(parseLineListFindings("technology detected")),
	}
}

func tlsScannerDescriptor() Descriptor {
	return Descriptor{
		Name:        "tls_scanner",
		Description: "Audits TLS/SSL configuration of a host:port for weak ciphers, protocol versions, and certificate issues.",
		Binary:      "sslscan",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target", Type: FieldString, Required: true},
			{Name: "port", Type: FieldInt, Default: int64(443), HasBound: true, Min: 1, Max: 65535},
		}},
		ChainOutputs:   []ChainKind{ChainFinding},
		ChainInputs:    []ChainKind{ChainTLSEndpoint, ChainLiveHost},
		DefaultTimeout: 60 * time.Second,
		MaxOutputBytes: 512 << 10,
		SeverityMap: map[string]models.Severity{
			"weak_cipher":     models.SeverityMedium,
			"expired_cert":    models.SeverityHigh,
			"protocol_sslv3":  models.SeverityHigh,
			"self_signed":     models.SeverityLow,
		},
		BuildArgs: func(v map[string]any) []string {
			target := fmt.Sprintf("%s:%d", asString(v["target"]), asInt(v["port"]))
			return []string{"--no-colour", target}
		},
		Parser: ParserFunc(parseLineListFindings("tls observation")),
	}
}

func webFuzzerDescriptor() Descriptor {
	return Descriptor{
		Name:        "web_fuzzer",
		Description: "Fuzzes a web target's paths/parameters with a wordlist to discover hidden content.",
		Binary:      "ffuf",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target_url", Type: FieldString, Required: true},
			{Name: "wordlist", Type: FieldString, Default: "common.txt"},
			{Name: "match_codes", Type: FieldString, Default: "200,204,301,302,307,401,403"},
		}},
		ChainOutputs:   []ChainKind{ChainLiveHost},
		ChainInputs:    []ChainKind{ChainLiveHost},
		DefaultTimeout: 2 * time.Minute,
		MaxOutputBytes: 2 << 20,
		SeverityMap:    map[string]models.Severity{},
		BuildArgs: func(v map[string]any) []string {
			return []string{"-u", asString(v["target_url"]), "-w", asString(v["wordlist"]), "-mc", asString(v["match_codes"]), "-of", "json", "-o", "-"}
		},
		Parser: ParserFunc(parseFFUFJSON),
	}
}

func sqlInjectionProbeDescriptor() Descriptor {
	return Descriptor{
		Name:        "sql_injection_probe",
		Description: "Tests a URL's parameters for SQL injection vulnerabilities.",
		Binary:      "sqlmap",
		ArgumentSchema: ArgumentSchema{Fields: []FieldSchema{
			{Name: "target_url", Type: FieldString, Required: true},
			{Name: "risk", Type: FieldInt, Default: int64(1), HasBound: true, Min: 1, Max: 3},
			{Name: "level", Type: FieldInt, Default: int64(1), HasBound: true, Min: 1, Max: 5},
		}},
		ChainOutputs:   []ChainKind{ChainFinding},
		ChainInputs:    []ChainKind{ChainLiveHost},
		DefaultTimeout: 4 * time.Minute,
		MaxOutputBytes: 2 << 20,
		SeverityMap: map[string]models.Severity{
			"injectable": models.SeverityCritical,
		},
		BuildArgs: func(v map[string]any) []string {
			return []string{"-u", asString(v["target_url"]), "--batch", "--risk", fmt.Sprint(asInt(v["risk"])), "--level", fmt.Sprint(asInt(v["level"]))}
		},
		Parser: ParserFunc(parseSQLMapOutput),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	}
	return 0
}

// parsePortScanGrepable parses nmap's -oG greppable output format, lines
// of the form "Host: <ip> ()\tPorts: 80/open/tcp//http///, 443/open/tcp//https///".
func parsePortScanGrepable(raw string, exitCode int) ([]models.RawFinding, error) {
	var out []models.RawFinding
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Host:") {
			continue
		}
		hostField := strings.TrimPrefix(line, "Host:")
		host := strings.TrimSpace(strings.SplitN(hostField, "(", 2)[0])

		portsIdx := strings.Index(line, "Ports:")
		if portsIdx == -1 {
			continue
		}
		portsPart := line[portsIdx+len("Ports:"):]
		for _, entry := range strings.Split(portsPart, ",") {
			fields := strings.Split(strings.TrimSpace(entry), "/")
			if len(fields) < 5 || fields[1] != "open" {
				continue
			}
			out = append(out, models.RawFinding{
				Title:          fmt.Sprintf("open port %s/%s", fields[0], fields[2]),
				RawSeverity:    "",
				Description:    fmt.Sprintf("service %s detected on %s/%s", fields[4], fields[0], fields[2]),
				AffectedTarget: fmt.Sprintf("%s:%s", host, fields[0]),
			})
		}
	}
	return out, scanner.Err()
}

// parseLineListFindings returns a Parser that treats each non-empty stdout
// line as one observation, used by tools whose output is simple
// human-readable lines rather than structured records.
func parseLineListFindings(titlePrefix string) ParserFunc {
	return func(raw string, exitCode int) ([]models.RawFinding, error) {
		var out []models.RawFinding
		scanner := bufio.NewScanner(strings.NewReader(raw))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			out = append(out, models.RawFinding{
				Title:          titlePrefix,
				Description:    line,
				AffectedTarget: line,
			})
		}
		return out, scanner.Err()
	}
}

type httpxRecord struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	Title      string `json:"title"`
	Webserver  string `json:"webserver"`
}

func parseHTTPXJSONLines(raw string, exitCode int) ([]models.RawFinding, error) {
	var out []models.RawFinding
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec httpxRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // tolerate stray non-JSON lines (banners, warnings)
		}
		out = append(out, models.RawFinding{
			Title:          fmt.Sprintf("live host: %s (%d)", rec.URL, rec.StatusCode),
			Description:    fmt.Sprintf("title=%q server=%q", rec.Title, rec.Webserver),
			AffectedTarget: rec.URL,
		})
	}
	return out, scanner.Err()
}

type nucleiRecord struct {
	TemplateID string `json:"template-id"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
	Host    string `json:"host"`
	Matched string `json:"matched-at"`
}

func parseNucleiJSONLines(raw string, exitCode int) ([]models.RawFinding, error) {
	var out []models.RawFinding
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec nucleiRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		out = append(out, models.RawFinding{
			Title:          rec.Info.Name,
			RawSeverity:    strings.ToLower(rec.Info.Severity),
			Description:    fmt.Sprintf("template %s matched", rec.TemplateID),
			Evidence:       rec.Matched,
			AffectedTarget: rec.Host,
		})
	}
	return out, scanner.Err()
}

type ffufResult struct {
	Results []struct {
		URL    string `json:"url"`
		Status int    `json:"status"`
		Length int    `json:"length"`
	} `json:"results"`
}

func parseFFUFJSON(raw string, exitCode int) ([]models.RawFinding, error) {
	var doc ffufResult
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parsing ffuf output: %w", err)
	}
	out := make([]models.RawFinding, 0, len(doc.Results))
	for _, r := range doc.Results {
		out = append(out, models.RawFinding{
			Title:          fmt.Sprintf("discovered path (%d)", r.Status),
			Description:    fmt.Sprintf("length=%d", r.Length),
			AffectedTarget: r.URL,
		})
	}
	return out, nil
}

func parseSQLMapOutput(raw string, exitCode int) ([]models.RawFinding, error) {
	var out []models.RawFinding
	scanner := bufio.NewScanner(strings.NewReader(raw))
	var currentParam string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Parameter:"):
			currentParam = strings.TrimSpace(strings.TrimPrefix(line, "Parameter:"))
			// Drop the injection place suffix, e.g. "id (GET)" -> "id".
			if i := strings.Index(currentParam, " ("); i >= 0 {
				currentParam = currentParam[:i]
			}
		case strings.Contains(line, "is vulnerable"):
			out = append(out, models.RawFinding{
				Title:          fmt.Sprintf("SQL injection in parameter %s", currentParam),
				RawSeverity:    "injectable",
				Description:    line,
				AffectedTarget: currentParam,
			})
		}
	}
	return out, scanner.Err()
}
