package activation

import (
	"fmt"
	"strings"

	"github.com/loreweave/loreweave/internal/domain"
)

// logicOutcome is the result of evaluating a rule's keyword logic.
type logicOutcome struct {
	Activated bool
	Matched   []string
	Reason    string
}

// evaluateLogic applies the rule's logic mode to the matched keyword
// lists. Always-active rules bypass keywords entirely; keyword-driven
// rules with no keywords configured never activate.
func evaluateLogic(rule *domain.Rule, matchedPrimary, matchedSecondary []string) logicOutcome {
	if rule.AlwaysActive {
		return logicOutcome{Activated: true, Reason: "always active"}
	}

	primaryCount := len(configuredKeywords(rule.PrimaryKeywords))
	secondaryCount := len(configuredKeywords(rule.SecondaryKeywords))
	if primaryCount == 0 && secondaryCount == 0 {
		return logicOutcome{Reason: "no keywords configured"}
	}

	switch rule.Logic {
	case domain.MatchAllOf:
		return evaluateAllOf(matchedPrimary, matchedSecondary, primaryCount, secondaryCount)
	case domain.MatchNotAll:
		return evaluateNotAll(matchedPrimary, matchedSecondary, primaryCount, secondaryCount)
	case domain.MatchNoneOf:
		return evaluateNoneOf(matchedPrimary, matchedSecondary)
	default:
		// MatchAnyOf is the default mode.
		return evaluateAnyOf(matchedPrimary, matchedSecondary)
	}
}

func evaluateAnyOf(matchedPrimary, matchedSecondary []string) logicOutcome {
	matched := union(matchedPrimary, matchedSecondary)
	if len(matched) == 0 {
		return logicOutcome{Reason: "anyOf: no keywords matched"}
	}
	return logicOutcome{
		Activated: true,
		Matched:   matched,
		Reason:    fmt.Sprintf("anyOf: %d keyword(s) matched", len(matched)),
	}
}

func evaluateAllOf(matchedPrimary, matchedSecondary []string, primaryCount, secondaryCount int) logicOutcome {
	if len(matchedPrimary) == primaryCount && len(matchedSecondary) == secondaryCount {
		matched := union(matchedPrimary, matchedSecondary)
		return logicOutcome{
			Activated: true,
			Matched:   matched,
			Reason:    fmt.Sprintf("allOf: all %d keyword(s) matched", len(matched)),
		}
	}
	return logicOutcome{
		Reason: fmt.Sprintf("allOf: %d/%d primary, %d/%d secondary matched",
			len(matchedPrimary), primaryCount, len(matchedSecondary), secondaryCount),
	}
}

func evaluateNotAll(matchedPrimary, matchedSecondary []string, primaryCount, secondaryCount int) logicOutcome {
	total := primaryCount + secondaryCount
	matched := union(matchedPrimary, matchedSecondary)

	if len(matched) > 0 && len(matched) < total {
		return logicOutcome{
			Activated: true,
			Matched:   matched,
			Reason:    fmt.Sprintf("notAll: partial match %d/%d", len(matched), total),
		}
	}
	return logicOutcome{
		Reason: fmt.Sprintf("notAll: matched %d/%d, need a strict partial match", len(matched), total),
	}
}

func evaluateNoneOf(matchedPrimary, matchedSecondary []string) logicOutcome {
	matched := len(matchedPrimary) + len(matchedSecondary)
	if matched == 0 {
		return logicOutcome{Activated: true, Reason: "noneOf: no keywords matched"}
	}
	return logicOutcome{Reason: fmt.Sprintf("noneOf: %d keyword(s) matched", matched)}
}

// configuredKeywords filters out empty and whitespace-only entries so
// logic counts line up with what the matcher actually considers.
func configuredKeywords(keywords []string) []string {
	out := keywords[:0:0]
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			out = append(out, kw)
		}
	}
	return out
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
