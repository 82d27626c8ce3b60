package outpath

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp", "Acme_Corp"},
		{`  a<b>c:d"e/f\g|h?i*j  `, "abcdefghij"},
		{"Tax   Invoice\t2024", "Tax_Invoice_2024"},
		{"", "Unknown"},
		{" ?* ", "Unknown"},
		{"2024-25", "2024-25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestEnsureUniquePath_NoCollision(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	p, err := EnsureUniquePath(dir, "report.docx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.docx"), p)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err), "allocator must not create the file")
}

func TestEnsureUniquePath_Collisions(t *testing.T) {
	dir := t.TempDir()
	const n = 5

	seen := map[string]bool{}
	var last string
	for i := 0; i < n; i++ {
		p, err := EnsureUniquePath(dir, "report.docx")
		require.NoError(t, err)
		require.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		last = p
	}
	assert.Equal(t, filepath.Join(dir, "report(4).docx"), last)
	assert.True(t, seen[filepath.Join(dir, "report.docx")])
	assert.True(t, seen[filepath.Join(dir, "report(1).docx")])
}

func TestCandidate_NoExtension(t *testing.T) {
	assert.Equal(t, "README(2)", Candidate("README", 2))
	assert.Equal(t, "a.tar(1).gz", Candidate("a.tar.gz", 1))
}

func TestCreateExclusive_Concurrent(t *testing.T) {
	dir := t.TempDir()
	const writers = 8

	var wg sync.WaitGroup
	paths := make([]string, writers)
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = CreateExclusive(dir, "out.txt", []byte("data"))
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range paths {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]])
		seen[paths[i]] = true
		b, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, "data", string(b))
	}
}
