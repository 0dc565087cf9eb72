package research

import (
	"regexp"
	"strings"
)

// NoPlan is the plan recorded when the planner output has no plan section.
const NoPlan = "No plan generated."

var (
	planRe    = regexp.MustCompile(`(?s)Plan:\s*(.*?)\s*Queries:`)
	queriesRe = regexp.MustCompile(`(?s)Queries:\s*(.*)`)
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)])\s*`)
)

// ParsePlan extracts the plan paragraph and the bulleted queries from planner output.
func ParsePlan(text string) (plan string, queries []string) {
	plan = NoPlan
	if m := planRe.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		plan = strings.TrimSpace(m[1])
	}

	queries = []string{}
	m := queriesRe.FindStringSubmatch(text)
	if m == nil {
		return plan, queries
	}
	for _, line := range strings.Split(m[1], "\n") {
		q := strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if q != "" {
			queries = append(queries, q)
		}
	}
	return plan, queries
}
