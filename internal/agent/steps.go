package agent

import (
	"regexp"
	"strings"
)

// Leading list markers stripped from each line: "1." / "1)" / "Step 1:" /
// "-" / "*" / "•".
var stepMarker = regexp.MustCompile(`^\s*(?:(?i:step)\s+\d+[:.)]?|\d+[.)]|[-*•])\s*`)

// SplitSteps segments free prose into an ordered list of discrete steps,
// one per line or numbered item. Blank lines and bare markers are
// dropped. Text with no line structure comes back as a single step.
func SplitSteps(text string) []string {
	var steps []string
	for _, line := range strings.Split(text, "\n") {
		step := strings.TrimSpace(stepMarker.ReplaceAllString(line, ""))
		if step == "" {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}
