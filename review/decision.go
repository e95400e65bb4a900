package review

import (
	"fmt"
	"strings"
)

// Decision is the verdict a viewer returns in decision mode.
type Decision string

// The closed set of viewer decisions.
const (
	Accept     Decision = "ACCEPT"
	Merged     Decision = "MERGED"
	Reject     Decision = "REJECT"
	NoDecision Decision = "NODECISION"
)

// Commits reports whether the decision leads to a VCS commit.
func (d Decision) Commits() bool {
	return d == Accept || d == Merged
}

// DecisionError reports viewer output that is not a known decision.
type DecisionError struct {
	Token string
}

func (e *DecisionError) Error() string {
	return fmt.Sprintf("unexpected answer from viewer: %q", e.Token)
}

// ParseDecision maps viewer output to a Decision. Surrounding whitespace is
// ignored; anything else must match a token exactly.
func ParseDecision(s string) (Decision, error) {
	token := strings.TrimSpace(s)
	switch d := Decision(token); d {
	case Accept, Merged, Reject, NoDecision:
		return d, nil
	default:
		return "", &DecisionError{Token: token}
	}
}
