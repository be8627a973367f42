package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, p, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestFindRedirects(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, "kernel/fatal/report.go", `package fatal

// Panic halts.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {}

//go:redirect-from runtime.throw
func panicString(msg string) {}

func unrelated() {}
`)
	writeFile(t, "kernel/fatal/report_test.go", `package fatal

//go:redirect-from runtime.ignored
func testOnly() {}
`)

	goFiles, err := collectGoFiles("kernel")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("kernel", "fatal", "report.go")}, goFiles)

	redirects, err := findRedirects("irqos", goFiles)
	require.NoError(t, err)
	require.Len(t, redirects, 2)

	require.Equal(t, "runtime.gopanic", redirects[0].src)
	require.Equal(t, "irqos/kernel/fatal.Panic", redirects[0].dst)
	require.Equal(t, "runtime.throw", redirects[1].src)
	require.Equal(t, "irqos/kernel/fatal.panicString", redirects[1].dst)
}

func TestFindRedirectsMalformed(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, "kernel/bad.go", `package kernel

//go:redirect-from
func Bad() {}
`)

	_, err := findRedirects("irqos", []string{filepath.Join("kernel", "bad.go")})
	require.Error(t, err)
	require.Equal(t, ErrMalformedDirective, errors.Cause(err))
}

func TestEncodeTable(t *testing.T) {
	var buf bytes.Buffer
	err := encodeTable(&buf, []*redirect{
		{srcVMA: 0x1000, dstVMA: 0x2000},
		{srcVMA: 0x3000, dstVMA: 0x4000},
	})
	require.NoError(t, err)

	var got [4]uint64
	require.NoError(t, binary.Read(&buf, binary.LittleEndian, &got))
	require.Equal(t, [4]uint64{0x1000, 0x2000, 0x3000, 0x4000}, got)
}

func TestResolveSymbolsMissingImage(t *testing.T) {
	err := resolveSymbols(nil, filepath.Join(t.TempDir(), "kernel.bin"))
	require.Error(t, err)
}

func TestRunUnknownCommand(t *testing.T) {
	require.Error(t, run(nil))
	require.Error(t, run([]string{"frobnicate"}))
	require.Error(t, run([]string{"populate-table"}))
}
