package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PlainPath(t *testing.T) {
	src := t.TempDir()
	file := filepath.Join(src, "usr", "bin", "ls")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("elf"), 0755))

	r := New(t.TempDir(), false)
	assert.Equal(t, file, r.Resolve(file))
}

func TestResolve_DotAndDotDot(t *testing.T) {
	r := New(t.TempDir(), false)
	assert.Equal(t, ".", r.Resolve("."))
	assert.Equal(t, "..", r.Resolve(".."))
}

func TestResolve_RelativeLinkAncestor(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	file := filepath.Join(src, "usr", "bin", "ls")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("elf"), 0755))
	// the classic merged-usr layout: bin -> usr/bin
	require.NoError(t, os.Symlink("usr/bin", filepath.Join(src, "bin")))

	r := New(out, false)
	resolved := r.Resolve(filepath.Join(src, "bin", "ls"))
	assert.Equal(t, file, resolved)

	// the link topology is mirrored into the output tree, relatively
	mirrored := filepath.Join(out, src, "bin")
	target, err := os.Readlink(mirrored)
	require.NoError(t, err)
	assert.Equal(t, "usr/bin", target)
}

func TestResolve_AbsoluteLinkTarget(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	real := filepath.Join(src, "usr", "lib", "app")
	require.NoError(t, os.MkdirAll(real, 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "opt"), 0755))
	require.NoError(t, os.Symlink(real, filepath.Join(src, "opt", "app")))

	r := New(out, false)
	resolved := r.Resolve(filepath.Join(src, "opt", "app", "run.sh"))
	assert.Equal(t, filepath.Join(real, "run.sh"), resolved)

	target, err := os.Readlink(filepath.Join(out, src, "opt", "app"))
	require.NoError(t, err)
	assert.Equal(t, "../usr/lib/app", target)
}

func TestResolve_ChainedLinks(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	real := filepath.Join(src, "c")
	require.NoError(t, os.WriteFile(real, []byte("x"), 0644))
	require.NoError(t, os.Symlink("b", filepath.Join(src, "a")))
	require.NoError(t, os.Symlink("c", filepath.Join(src, "b")))

	r := New(out, false)
	assert.Equal(t, real, r.Resolve(filepath.Join(src, "a")))

	for _, link := range []string{"a", "b"} {
		_, err := os.Readlink(filepath.Join(out, src, link))
		assert.NoError(t, err, link)
	}
}

func TestResolve_BrokenLinkReturnsSubstitution(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	require.NoError(t, os.Symlink("missing", filepath.Join(src, "broken")))

	r := New(out, false)
	resolved := r.Resolve(filepath.Join(src, "broken"))
	assert.Equal(t, filepath.Join(src, "missing"), resolved)
}

func TestResolve_CycleTerminates(t *testing.T) {
	src := t.TempDir()

	require.NoError(t, os.Symlink("b", filepath.Join(src, "a")))
	require.NoError(t, os.Symlink("a", filepath.Join(src, "b")))

	r := New(t.TempDir(), false)
	// no assertion on the value; the walk just has to come back
	r.Resolve(filepath.Join(src, "a"))
}

func TestResolve_DryRunWritesNothing(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	file := filepath.Join(src, "usr", "bin", "ls")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("elf"), 0755))
	require.NoError(t, os.Symlink("usr/bin", filepath.Join(src, "bin")))

	r := New(out, true)
	assert.Equal(t, file, r.Resolve(filepath.Join(src, "bin", "ls")))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestResolve_IdempotentMaterialization(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()

	file := filepath.Join(src, "usr", "bin", "ls")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(t, os.WriteFile(file, []byte("elf"), 0755))
	require.NoError(t, os.Symlink("usr/bin", filepath.Join(src, "bin")))

	r := New(out, false)
	r.Resolve(filepath.Join(src, "bin", "ls"))
	// second resolution hits EEXIST on the mirrored link and ignores it
	r.Resolve(filepath.Join(src, "bin", "ls"))

	target, err := os.Readlink(filepath.Join(out, src, "bin"))
	require.NoError(t, err)
	assert.Equal(t, "usr/bin", target)
}
