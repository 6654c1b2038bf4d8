package topicmatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, topic string
		want           bool
	}{
		{"", "a", false},
		{"a/b/c", "a/b/c", true},
		{"a/b/c", "a/b", false},
		{"a/b", "a/b/c", false},
		{"a/+/c", "a/b/c", true},
		{"a/+/c", "a/x/y/c", false},
		{"+", "a", true},
		{"+", "a/b", false},
		{"+/+", "a/b", true},
		{"sport/#", "sport", true},
		{"sport/#", "sport/tennis/player1", true},
		{"sport/#", "sport/tennis/player1/ranking", true},
		{"#", "sport/tennis", true},
		{"#", "$SYS/stats", false},
		{"+/monitor", "$SYS/monitor", false},
		{"$SYS/#", "$SYS/stats", true},
		{"a/b/", "a/b/", true},
		{"a/+", "a/", true},
		{"cmd/#", "cmd/reboot", true},
		{"data/sensor/1", "data/sensor/1", true},
		{"data/sensor/1", "data/sensor/2", false},
	}

	for _, c := range cases {
		require.Equal(t, c.want, Match(c.pattern, c.topic), "Match(%q, %q)", c.pattern, c.topic)
	}
}

func TestExcludesTopic(t *testing.T) {
	patterns := []string{"cmd/#", "internal/+/debug"}

	require.True(t, ExcludesTopic(patterns, "cmd/reboot"))
	require.True(t, ExcludesTopic(patterns, "internal/foo/debug"))
	require.False(t, ExcludesTopic(patterns, "data/sensor/1"))
	require.False(t, ExcludesTopic(nil, "anything"))
}

func TestFilterHeaders(t *testing.T) {
	names := []string{"tag", "secret", "other"}
	excluded := map[string]struct{}{"secret": {}}

	require.Equal(t, []string{"tag", "other"}, FilterHeaders(names, excluded))
	require.Equal(t, names, FilterHeaders(names, nil))
}
