package alerts

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is a parsed rule expression of the form "rate OP threshold".
//
// Supported operators: > >= < <= ==
//
//	rate > 10
//	rate <= 0.5
type Condition struct {
	Op        string
	Threshold float64
}

// ParseCondition parses expr. The only field is rate.
func ParseCondition(expr string) (Condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("alerts: condition %q: want \"rate <op> <number>\"", expr)
	}
	field, op, rhs := parts[0], parts[1], parts[2]
	if field != "rate" {
		return Condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", expr, field)
	}
	switch op {
	case ">", ">=", "<", "<=", "==":
	default:
		return Condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", expr, op)
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return Condition{}, fmt.Errorf("alerts: condition %q: %w", expr, err)
	}
	return Condition{Op: op, Threshold: threshold}, nil
}

// Holds reports whether v satisfies the condition.
func (c Condition) Holds(v float64) bool {
	switch c.Op {
	case ">":
		return v > c.Threshold
	case ">=":
		return v >= c.Threshold
	case "<":
		return v < c.Threshold
	case "<=":
		return v <= c.Threshold
	case "==":
		return v == c.Threshold
	default:
		return false
	}
}

func (c Condition) String() string {
	return "rate " + c.Op + " " + strconv.FormatFloat(c.Threshold, 'g', -1, 64)
}
