package logging

import (
	"regexp"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Parameter names whose values never reach the logs.
var sensitiveKeys = []string{"password", "passwd", "secret", "token", "session_id", "csrf", "cookie", "authorization", "api_key"}

var secretPatterns = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)(session_id=)[^;\s"]+`), "${1}" + RedactedValue},
	{regexp.MustCompile(`(?i)("(?:password|csrf_token|token)"\s*:\s*)"[^"]*"`), `${1}"` + RedactedValue + `"`},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`), RedactedValue},
}

// Redact masks session cookies, credentials and bearer tokens in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.repl)
	}
	return s
}

// RedactParams returns a copy of RPC params with sensitive values masked,
// descending into nested objects.
func RedactParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case map[string]any:
			out[k] = RedactParams(val)
		case string:
			if isSensitiveKey(k) {
				out[k] = RedactedValue
			} else {
				out[k] = Redact(val)
			}
		default:
			if isSensitiveKey(k) {
				out[k] = RedactedValue
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
