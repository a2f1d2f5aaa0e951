package plugin

import (
	"fmt"
	"strconv"
	"strings"
)

// Sec2DHMS formats a duration in seconds as days plus HH:MM:SS.ss,
// e.g. 1234567.8 -> "14 days 06:56:07.80".
func Sec2DHMS(seconds float64) string {
	whole := int64(seconds)
	days := whole / 86400
	hours := whole % 86400 / 3600
	minutes := whole % 3600 / 60
	secs := seconds - float64(days*86400+hours*3600+minutes*60)
	return fmt.Sprintf("%d days %02d:%02d:%05.2f", days, hours, minutes, secs)
}

// PerfValue is one metric parsed from a perfdata string.
type PerfValue struct {
	Value float64
	UOM   string
}

// ParsePerfdata parses a monitoring-plugin perfdata string
// ('label'=value[UOM];warn;crit;min;max, space-separated) into labeled
// values. Malformed tokens are skipped; previous perfdata is best-effort
// input, not configuration.
func ParsePerfdata(s string) map[string]PerfValue {
	out := make(map[string]PerfValue)
	for _, token := range splitPerfTokens(s) {
		label, rest, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		label = strings.Trim(label, "'")
		if label == "" {
			continue
		}
		// Only the value field matters; thresholds ride behind semicolons.
		value := rest
		if i := strings.IndexByte(value, ';'); i >= 0 {
			value = value[:i]
		}
		numEnd := len(value)
		for i, r := range value {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '+' || r == 'e' || r == 'E' {
				continue
			}
			numEnd = i
			break
		}
		n, err := strconv.ParseFloat(value[:numEnd], 64)
		if err != nil {
			continue
		}
		out[label] = PerfValue{Value: n, UOM: value[numEnd:]}
	}
	return out
}

// splitPerfTokens splits on whitespace outside single quotes, so quoted
// labels may contain spaces.
func splitPerfTokens(s string) []string {
	var tokens []string
	var b strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '\'':
			quoted = !quoted
			b.WriteRune(r)
		case !quoted && (r == ' ' || r == '\t'):
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
