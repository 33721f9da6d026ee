package validation

import "regexp"

// Threat names a family of malicious-input signatures.
type Threat string

const (
	ThreatNone          Threat = ""
	ThreatSQLInjection  Threat = "sql_injection"
	ThreatXSS           Threat = "xss"
	ThreatPathTraversal Threat = "path_traversal"
)

// The detectors are a rejecting filter only; storage access is parameterized.
var (
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(union(\s+all)?\s+select|insert\s+into|delete\s+from|truncate\s+table)\b`),
		regexp.MustCompile(`(?i)\b(drop|alter|create)\s+(table|database|schema|view|index)\b`),
		regexp.MustCompile(`(?i)\bselect\s+(\*|[\w.]+(\s*,\s*[\w.]+)+)\s*from\b`),
		regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
		regexp.MustCompile(`(?i)\b(exec|execute)\s*(\(|xp_|sp_)`),
		regexp.MustCompile(`(?i)\bdeclare\s+@`),
		regexp.MustCompile(`(?i)['"]\s*(or|and)\s+['"]?\w+['"]?\s*=\s*['"]?\w+`),
		regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b|\b1\s*=\s*1\s*(--|#|;)`),
		regexp.MustCompile(`(;|')\s*--|--\s*$|/\*|\*/`),
		regexp.MustCompile(`(?i)\b(xp|sp)_\w+|@@\w+`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*/?\s*script\b`),
		regexp.MustCompile(`(?i)<\s*/?\s*iframe\b`),
		regexp.MustCompile(`(?i)<\s*(embed|object)\b`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)(^|[\s"'/<])on[a-z]+\s*=`),
	}

	pathTraversalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./|\.\.\\`),
		regexp.MustCompile(`(?i)%2e%2e(%2f|%5c|/|\\)`),
		regexp.MustCompile(`(?i)\.\.(%2f|%5c)`),
	}
)

// DetectThreat returns the first matching threat family, checking SQL,
// then XSS, then path traversal.
func DetectThreat(input string) Threat {
	switch {
	case matchesAny(sqlInjectionPatterns, input):
		return ThreatSQLInjection
	case matchesAny(xssPatterns, input):
		return ThreatXSS
	case matchesAny(pathTraversalPatterns, input):
		return ThreatPathTraversal
	default:
		return ThreatNone
	}
}

// ContainsSQLInjection reports whether input carries SQL injection signatures.
func ContainsSQLInjection(input string) bool {
	return matchesAny(sqlInjectionPatterns, input)
}

// ContainsXSS reports whether input carries script/markup injection signatures.
func ContainsXSS(input string) bool {
	return matchesAny(xssPatterns, input)
}

// ContainsPathTraversal reports whether input carries directory traversal sequences.
func ContainsPathTraversal(input string) bool {
	return matchesAny(pathTraversalPatterns, input)
}

// IsLikelyMalicious reports whether any detector fires.
func IsLikelyMalicious(input string) bool {
	return DetectThreat(input) != ThreatNone
}

func matchesAny(patterns []*regexp.Regexp, input string) bool {
	for _, p := range patterns {
		if p.MatchString(input) {
			return true
		}
	}
	return false
}

func threatMessage(label string, threat Threat) string {
	switch threat {
	case ThreatSQLInjection:
		return label + " contains invalid characters. Please remove special SQL characters."
	case ThreatXSS:
		return label + " contains invalid HTML/script tags. Please use plain text only."
	case ThreatPathTraversal:
		return label + " contains invalid path characters. Please remove them."
	default:
		return ""
	}
}
