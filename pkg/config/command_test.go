package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		line string
		want []string
	}{
		{"ls -la /", []string{"ls", "-la", "/"}},
		{"  bash   -c  true ", []string{"bash", "-c", "true"}},
		{`bash -c 'echo hello world'`, []string{"bash", "-c", "echo hello world"}},
		{`sh -c "ls /tmp"`, []string{"sh", "-c", "ls /tmp"}},
		{`grep "a b"c`, []string{"grep", "a bc"}},
		{"", nil},
	}

	for _, tc := range cases {
		argv, err := SplitCommand(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, argv, tc.line)
	}
}

func TestSplitCommand_UnbalancedQuote(t *testing.T) {
	_, err := SplitCommand(`bash -c 'oops`)
	assert.Error(t, err)
}
