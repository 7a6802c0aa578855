package challenge

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold is a count comparison of the form ">N", ">=N", or "==N",
// used by assertions that count occurrences.
type Threshold struct {
	Op    string
	Value int
}

// ParseThreshold parses a threshold expression. The empty string means
// "at least one occurrence".
func ParseThreshold(expr string) (Threshold, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Threshold{Op: ">", Value: 0}, nil
	}

	var op string
	switch {
	case strings.HasPrefix(expr, ">="):
		op = ">="
	case strings.HasPrefix(expr, "=="):
		op = "=="
	case strings.HasPrefix(expr, ">"):
		op = ">"
	default:
		return Threshold{}, fmt.Errorf("threshold %q must start with >, >=, or ==", expr)
	}

	value, err := strconv.Atoi(strings.TrimSpace(expr[len(op):]))
	if err != nil {
		return Threshold{}, fmt.Errorf("threshold %q has a non-numeric bound: %w", expr, err)
	}
	if value < 0 {
		return Threshold{}, fmt.Errorf("threshold %q has a negative bound", expr)
	}

	return Threshold{Op: op, Value: value}, nil
}

// Met reports whether an observed count satisfies the threshold.
func (t Threshold) Met(observed int) bool {
	switch t.Op {
	case ">":
		return observed > t.Value
	case ">=":
		return observed >= t.Value
	case "==":
		return observed == t.Value
	default:
		return false
	}
}

func (t Threshold) String() string {
	return fmt.Sprintf("%s%d", t.Op, t.Value)
}
