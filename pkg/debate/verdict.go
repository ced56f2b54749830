// Package debate implements the investment debate: alternating bull and
// bear researchers, the round judge with its structured verdict, the
// research manager synthesizer, and the trader node.
package debate

import (
	"strconv"
	"strings"
)

// defaultQualityScore is assumed when the judge's score line is missing or
// malformed.
const defaultQualityScore = 5

// Verdict is the judge's structured round evaluation.
type Verdict struct {
	ConsensusReached bool
	Unresolved       string
	NextFocus        string
	QualityScore     int
}

// ParseVerdict extracts the four verdict lines from a judge response:
//
//	CONSENSUS REACHED: yes|no
//	UNRESOLVED: <points>
//	NEXT FOCUS: <focus>
//	QUALITY SCORE: <1-10>
//
// A response missing the consensus line counts as no consensus; a missing or
// out-of-range score defaults to 5. The parser never fails: a free-form
// response degrades to {false, "", "", 5}.
func ParseVerdict(text string) Verdict {
	v := Verdict{QualityScore: defaultQualityScore}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "CONSENSUS REACHED:"):
			value := strings.TrimSpace(line[len("CONSENSUS REACHED:"):])
			v.ConsensusReached = strings.EqualFold(value, "yes")
		case strings.HasPrefix(upper, "UNRESOLVED:"):
			v.Unresolved = strings.TrimSpace(line[len("UNRESOLVED:"):])
		case strings.HasPrefix(upper, "NEXT FOCUS:"):
			v.NextFocus = strings.TrimSpace(line[len("NEXT FOCUS:"):])
		case strings.HasPrefix(upper, "QUALITY SCORE:"):
			value := strings.TrimSpace(line[len("QUALITY SCORE:"):])
			// Tolerate "8/10" style answers.
			if i := strings.IndexByte(value, '/'); i > 0 {
				value = value[:i]
			}
			if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 1 && n <= 10 {
				v.QualityScore = n
			}
		}
	}
	return v
}
