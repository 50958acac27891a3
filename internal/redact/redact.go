// Package redact scrubs credentials from strings before they are logged or
// persisted. Pricing API errors embed the full request URL, including the
// api_key query parameter, and broker/database errors can embed connection
// strings; both end up in task results that are served to API clients.
package redact

import "regexp"

const (
	credential = "[REDACTED_CREDENTIAL]"
	key        = "[REDACTED_KEY]"
	stack      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	re   *regexp.Regexp
	with string
}

// Applied in order. The userinfo rule runs first so a password inside a DSN
// is removed together with the user name.
var rules = []rule{
	{
		re:   regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|rediss?|db|database|connection)://[^@\s/]+@`),
		with: credential,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)[=:\s]?['"]?[^'"&\s]{3,}`),
		with: credential,
	},
	{
		re:   regexp.MustCompile(`(?i)\b(?:api[_-]?key|token|secret|key|access|auth)['"\s:=]+[\w\-.~+/]{8,}`),
		with: key,
	},
	{
		re:   regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(?:\n\t.*)+`),
		with: stack,
	},
}

// String returns s with every credential-like fragment replaced.
func String(s string) string {
	for _, r := range rules {
		if s == "" {
			break
		}
		s = r.re.ReplaceAllString(s, r.with)
	}
	return s
}

// Error is String applied to err.Error(); nil yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
