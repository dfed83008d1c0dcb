// Package suggest maintains a bounded in-memory index of commands and ranks
// them against a typed prefix for completion.
package suggest

import "strings"

// Scoring weights. Tuned for short command-line inputs: matching the start
// of the candidate or the start of a word outweighs matches buried mid-token.
const (
	scoreMatch       = 16
	bonusConsecutive = 8
	bonusBoundary    = 10
	bonusPrefix      = 12
	penaltyGapStart  = -5
	penaltyGapExtend = -1
)

// boundary bytes start a new word inside a command line.
func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '-', '_', '/', '.', ':':
		return true
	}
	return false
}

// isSubsequence reports whether every byte of pattern appears in candidate
// in order, case-insensitively. Used as a cheap cutoff before scoring.
func isSubsequence(pattern, candidate string) bool {
	pattern = strings.ToLower(pattern)
	candidate = strings.ToLower(candidate)
	i := 0
	for j := 0; i < len(pattern) && j < len(candidate); j++ {
		if pattern[i] == candidate[j] {
			i++
		}
	}
	return i == len(pattern)
}

// Score rates how well pattern matches candidate. Higher is better; a
// negative-infinity result (scoreNoMatch) means pattern is not a
// subsequence of candidate. An empty pattern matches everything with a
// neutral zero.
const scoreNoMatch = -1 << 30

func Score(pattern, candidate string) int {
	if pattern == "" {
		return 0
	}
	if !isSubsequence(pattern, candidate) {
		return scoreNoMatch
	}

	p := strings.ToLower(pattern)
	c := strings.ToLower(candidate)

	// Greedy left-to-right alignment with lookahead for boundary starts.
	// Candidates are short command lines, not documents, so a full dynamic
	// programming alignment is not worth its cost here.
	score := 0
	prevMatched := false
	pi := 0
	for ci := 0; ci < len(c) && pi < len(p); ci++ {
		if c[ci] != p[pi] {
			if pi > 0 {
				if prevMatched {
					score += penaltyGapStart
				} else {
					score += penaltyGapExtend
				}
			}
			prevMatched = false
			continue
		}

		// Prefer a later boundary-start occurrence of the same byte when
		// the current position is mid-word and not a run continuation.
		if !prevMatched && ci > 0 && !isBoundary(c[ci-1]) {
			if alt := nextBoundaryMatch(c, ci+1, p[pi]); alt >= 0 && remainderFits(p[pi:], c[alt:]) {
				score += penaltyGapExtend * (alt - ci)
				ci = alt
			}
		}

		score += scoreMatch
		switch {
		case ci == 0:
			score += bonusPrefix
		case isBoundary(c[ci-1]):
			score += bonusBoundary
		case prevMatched:
			score += bonusConsecutive
		}
		prevMatched = true
		pi++
	}
	return score
}

// nextBoundaryMatch returns the first index >= from where b occurs right
// after a boundary byte, or -1.
func nextBoundaryMatch(c string, from int, b byte) int {
	for i := from; i < len(c); i++ {
		if c[i] == b && isBoundary(c[i-1]) {
			return i
		}
	}
	return -1
}

func remainderFits(pattern, candidate string) bool {
	return isSubsequence(pattern, candidate)
}
