// Package quality scores how likely a click is genuine human traffic.
package quality

import "strings"

const (
	baseScore = 100

	// suspectAgentPenalty applies to an empty agent and to one that
	// identifies itself as automated.
	suspectAgentPenalty = 30
	botPenalty        = 50
	crawlerPenalty    = 50
	telegramBonus     = 10
	educationBonus    = 10

	minScore = 0
	maxScore = 100
)

// Scorer computes the quality score of a click from its user-agent and
// referer. The zero value matches substrings case-sensitively.
type Scorer struct {
	// FoldCase makes the substring checks case-insensitive.
	FoldCase bool
}

// Score returns a deterministic score in [0, 100].
// Every rule applies independently and the sum is clamped at the end.
func (s Scorer) Score(userAgent, referer string) int {
	contains := strings.Contains
	if s.FoldCase {
		contains = containsFold
	}

	isBot := contains(userAgent, "bot")
	isCrawler := contains(userAgent, "crawler")

	score := baseScore
	if userAgent == "" || isBot || isCrawler {
		score -= suspectAgentPenalty
	}
	if isBot {
		score -= botPenalty
	}
	if isCrawler {
		score -= crawlerPenalty
	}
	if contains(referer, "telegram") {
		score += telegramBonus
	}
	if contains(referer, "education") {
		score += educationBonus
	}

	return min(max(score, minScore), maxScore)
}

// Score uses the default case-sensitive Scorer.
func Score(userAgent, referer string) int {
	return Scorer{}.Score(userAgent, referer)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
