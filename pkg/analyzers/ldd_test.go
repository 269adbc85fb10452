package analyzers

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdala/minicon/pkg/system"
)

const lddFixture = `	linux-vdso.so.1 (0x00007ffd4d5f2000)
	libtinfo.so.6 => /lib/x86_64-linux-gnu/libtinfo.so.6 (0x00007f18aa879000)
	libc.so.6 => /lib/x86_64-linux-gnu/libc.so.6 (0x00007f18aa658000)
	/lib64/ld-linux-x86-64.so.2 (0x00007f18aaa36000)
	libmissing.so => not found
`

func TestParseLddOutput(t *testing.T) {
	libs := parseLddOutput(lddFixture)
	assert.Equal(t, []string{
		"/lib/x86_64-linux-gnu/libtinfo.so.6",
		"/lib/x86_64-linux-gnu/libc.so.6",
		"/lib64/ld-linux-x86-64.so.2",
	}, libs)
}

func TestParseLddOutput_StaticBinary(t *testing.T) {
	assert.Empty(t, parseLddOutput("	statically linked\n"))
	assert.Empty(t, parseLddOutput("	not a dynamic executable\n"))
}

func TestLddAnalyzer_EnqueuesLibrariesAndCopies(t *testing.T) {
	runner := &fakeRunner{handler: func(name string, args []string) ([]byte, error) {
		return []byte(lddFixture), nil
	}}
	tools := system.NewTools(map[string]string{system.ToolLdd: "/usr/bin/ldd"})
	ctx := newTestContext(t, tools, runner)

	binary := filepath.Join(t.TempDir(), "bash")
	writeExecutable(t, binary, "elf")

	verdict, err := (&LddAnalyzer{}).Run(ctx, binary)
	require.NoError(t, err)
	assert.Equal(t, Continue, verdict)

	assert.Equal(t, []string{
		"/lib/x86_64-linux-gnu/libtinfo.so.6",
		"/lib/x86_64-linux-gnu/libc.so.6",
		"/lib64/ld-linux-x86-64.so.2",
	}, ctx.Queue.History())

	// library directories land in the loader config, deduplicated in order
	assert.Equal(t, []string{"/lib/x86_64-linux-gnu", "/lib64"}, ctx.Loader.Dirs())

	assert.FileExists(t, filepath.Join(ctx.OutputRoot, binary))
}

func TestLddAnalyzer_StaticBinaryStillCopied(t *testing.T) {
	runner := &fakeRunner{handler: func(name string, args []string) ([]byte, error) {
		return []byte("	statically linked\n"), nil
	}}
	tools := system.NewTools(map[string]string{system.ToolLdd: "/usr/bin/ldd"})
	ctx := newTestContext(t, tools, runner)

	binary := filepath.Join(t.TempDir(), "busybox")
	writeExecutable(t, binary, "elf")

	verdict, err := (&LddAnalyzer{}).Run(ctx, binary)
	require.NoError(t, err)
	assert.Equal(t, Continue, verdict)
	assert.Empty(t, ctx.Queue.History())
	assert.FileExists(t, filepath.Join(ctx.OutputRoot, binary))
}

func TestLddAnalyzer_NoToolContinues(t *testing.T) {
	ctx := newTestContext(t, system.NewTools(nil), &fakeRunner{})

	verdict, err := (&LddAnalyzer{}).Run(ctx, "/bin/ls")
	require.NoError(t, err)
	assert.Equal(t, Continue, verdict)
}
