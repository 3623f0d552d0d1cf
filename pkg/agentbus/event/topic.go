package event

import "strings"

// Topic pattern syntax.
const (
	// Separator splits a topic into hierarchical segments.
	Separator = "."

	// Wildcard matches every topic when used as a whole pattern, and
	// everything beneath a prefix when used as "<prefix>.*".
	Wildcard = "*"
)

// MatchingPatterns returns the subscription patterns that match topic,
// most specific first: the topic itself, then "<prefix>.*" for each proper
// prefix from longest to shortest, then "*".
//
// Example: "a.b.c" -> ["a.b.c", "a.b.*", "a.*", "*"]
func MatchingPatterns(topic string) []string {
	if topic == "" {
		return nil
	}
	segments := strings.Split(topic, Separator)
	patterns := make([]string, 0, len(segments)+1)
	patterns = append(patterns, topic)
	for n := len(segments) - 1; n >= 1; n-- {
		patterns = append(patterns, strings.Join(segments[:n], Separator)+Separator+Wildcard)
	}
	if topic != Wildcard {
		patterns = append(patterns, Wildcard)
	}
	return patterns
}

// Matches reports whether pattern would route topic.
func Matches(pattern, topic string) bool {
	for _, p := range MatchingPatterns(topic) {
		if p == pattern {
			return true
		}
	}
	return false
}
