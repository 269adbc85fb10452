package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSet_SeedsDefaults(t *testing.T) {
	s, err := NewSet(nil, nil, true)
	require.NoError(t, err)

	for _, path := range []string{"/sys/kernel", "/tmp/x", "/dev/null", "/proc/1/maps"} {
		_, excluded := s.Excluded(path)
		assert.True(t, excluded, path)
	}

	_, excluded := s.Excluded("/usr/bin/ls")
	assert.False(t, excluded)
}

func TestNewSet_NoCommonExcludes(t *testing.T) {
	s, err := NewSet(nil, nil, false)
	require.NoError(t, err)

	_, excluded := s.Excluded("/tmp/x")
	assert.False(t, excluded)
}

func TestNewSet_UserPatterns(t *testing.T) {
	s, err := NewSet([]string{"/usr/share"}, nil, true)
	require.NoError(t, err)

	pattern, excluded := s.Excluded("/usr/share/doc/bash/README")
	require.True(t, excluded)
	assert.Equal(t, "/usr/share", pattern)

	_, excluded = s.Excluded("/usr/bin/bash")
	assert.False(t, excluded)
}

func TestNewSet_InvalidPattern(t *testing.T) {
	_, err := NewSet([]string{"("}, nil, true)
	assert.Error(t, err)
}

func TestIsProtected(t *testing.T) {
	protected := []string{"/", "/proc", "/proc/1", "/dev/null", "/sys/block"}
	for _, path := range protected {
		assert.True(t, IsProtected(path), path)
	}

	open := []string{"/etc", "/usr/bin/ls", "/procfs", "/device"}
	for _, path := range open {
		assert.False(t, IsProtected(path), path)
	}
}

func TestIsStock(t *testing.T) {
	stock := []string{"/", "/usr", "/usr/", "/bin", "/lib64", "/usr/lib", "/usr/bin", "/etc", "/var"}
	for _, dir := range stock {
		assert.True(t, IsStock(dir), dir)
	}

	notStock := []string{"/opt/app", "/usr/lib/python3.11", "/srv", "/usr/share"}
	for _, dir := range notStock {
		assert.False(t, IsStock(dir), dir)
	}
}

func TestIncluded_PreservesOrder(t *testing.T) {
	s, err := NewSet(nil, []string{"/etc/ssl", "/opt/app"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/ssl", "/opt/app"}, s.Included())
}
