package mastering

import (
	"fmt"
	"sort"
	"strings"
)

// Stage records one processing step a branch applied to the audio, with
// the numeric parameters it ran at. The trace feeds the report and the
// debug log; nothing reads it back for control flow.
type Stage struct {
	Name   string
	Params map[string]float64
}

// String renders the stage as "name(key=value, ...)" with keys sorted so
// output is stable across runs.
func (s Stage) String() string {
	if len(s.Params) == 0 {
		return s.Name
	}
	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%.2f", k, s.Params[k])
	}
	b.WriteByte(')')
	return b.String()
}
