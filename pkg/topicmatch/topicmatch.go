// Package topicmatch implements MQTT topic filter matching ('+' and '#'
// wildcards) and user-property name filtering against a configured exclusion
// set.
package topicmatch

import "strings"

// Match reports whether topic is matched by the MQTT filter pattern.
//
//   - '+' matches exactly one topic level (characters between '/'
//     separators, possibly empty).
//   - '#' matches zero or more trailing levels and must be the last
//     character of pattern.
//   - any other character matches literally.
//
// An empty pattern matches nothing. A pattern without wildcards degenerates
// to a level-wise equality test.
func Match(pattern, topic string) bool {
	if pattern == "" {
		return false
	}

	// MQTT-4.7.2-1: filters starting with a wildcard must not match topics
	// starting with '$'.
	if len(topic) > 0 && topic[0] == '$' && (pattern[0] == '+' || pattern[0] == '#') {
		return false
	}

	pLevels := strings.Split(pattern, "/")
	tLevels := strings.Split(topic, "/")

	for i, pLevel := range pLevels {
		if pLevel == "#" {
			return true
		}
		if i >= len(tLevels) {
			return false
		}
		if pLevel != "+" && pLevel != tLevels[i] {
			return false
		}
	}
	return len(pLevels) == len(tLevels)
}

// ExcludesTopic reports whether topic matches any of the configured
// exclusion patterns.
func ExcludesTopic(patterns []string, topic string) bool {
	for _, p := range patterns {
		if Match(p, topic) {
			return true
		}
	}
	return false
}

// FilterHeaders returns the subset of names whose entries should survive
// after dropping anything present in excluded.
func FilterHeaders(names []string, excluded map[string]struct{}) []string {
	if len(excluded) == 0 {
		return names
	}
	out := names[:0:0]
	for _, n := range names {
		if _, skip := excluded[n]; !skip {
			out = append(out, n)
		}
	}
	return out
}
