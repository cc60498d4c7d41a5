package orphan

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScan_ReportsFilesNotInExpectedSet(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "FooGame", "installer.exe")
	stray := filepath.Join(root, "FooGame", "extras", "Readme_old.pdf")
	writeFile(t, keep)
	writeFile(t, stray)

	expected := ExpectedSet([]string{keep})
	orphans, err := Scan(root, expected, nil)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, stray, orphans[0].Path)
}

func TestScan_EmptyDifferenceWhenTreeFullyInSync(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "FooGame", "installer.exe")
	writeFile(t, keep)

	orphans, err := Scan(root, ExpectedSet([]string{keep}), nil)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestScan_FiltersByRegex(t *testing.T) {
	root := t.TempDir()
	pdf := filepath.Join(root, "FooGame", "extras", "Readme_old.pdf")
	txt := filepath.Join(root, "FooGame", "extras", "notes.txt")
	writeFile(t, pdf)
	writeFile(t, txt)

	re := regexp.MustCompile(`\.(pdf|zip)$`)
	orphans, err := Scan(root, nil, re)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, pdf, orphans[0].Path)
}

func TestDelete_RemovesAllListedFilesAndReportsFirstError(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.bin")
	writeFile(t, a)

	missing := filepath.Join(root, "missing.bin")

	err := Delete([]Orphan{{Path: a}, {Path: missing}})
	assert.Error(t, err)

	_, statErr := os.Stat(a)
	assert.True(t, os.IsNotExist(statErr), "existing orphan should still be removed despite the later failure")
}
