// Package intent resolves which specialist persona answers a query: either a
// sticky choice the user made recently or an LLM classification.
package intent

import "strings"

type Intent string

const (
	Diet    Intent = "diet"
	Fitness Intent = "fitness"
	Medical Intent = "medical"
	Unknown Intent = "unknown"
)

// Parse maps s onto the closed intent set; anything else is Unknown.
func Parse(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".\"'` ")
	switch Intent(s) {
	case Diet, Fitness, Medical:
		return Intent(s)
	}
	return Unknown
}

func (i Intent) String() string { return string(i) }
