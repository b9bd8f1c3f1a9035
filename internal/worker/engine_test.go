package worker

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minesim/minesim/pkg/errors"
)

func TestNewSubprocessEngine(t *testing.T) {
	eng, err := NewSubprocessEngine("poetry run discover --verbose")
	assert.Nil(t, err)
	assert.Equal(t, "poetry", eng.cmd)
	assert.Equal(t, []string{"run", "discover", "--verbose"}, eng.args)

	_, err = NewSubprocessEngine("   ")
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestSubprocessEngineDiscover(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	assert.Nil(t, os.Mkdir(outDir, 0750))
	assert.Nil(t, os.WriteFile(filepath.Join(outDir, "model.bpmn"), []byte("<bpmn/>"), 0640))

	// `true` exits 0 ignoring its args; the results come from outDir
	eng, err := NewSubprocessEngine("true")
	assert.Nil(t, err)

	archive, err := eng.Discover(context.Background(), "log.csv", "", outDir)
	assert.Nil(t, err)
	assert.Equal(t, filepath.Join(dir, "results.tar.gz"), archive)

	assert.Equal(t, map[string]string{"model.bpmn": "<bpmn/>"}, untar(t, archive))
}

func TestSubprocessEngineFailure(t *testing.T) {
	dir := t.TempDir()

	eng, err := NewSubprocessEngine("false")
	assert.Nil(t, err)

	_, err = eng.Discover(context.Background(), "log.csv", "", dir)
	assert.ErrorIs(t, err, errors.ErrEngine)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail([]byte("  short \n"), 100))
	assert.Equal(t, "cdef", tail([]byte("abcdef"), 4))
}

func untar(t *testing.T, archive string) map[string]string {
	t.Helper()

	f, err := os.Open(archive)
	assert.Nil(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	assert.Nil(t, err)
	tr := tar.NewReader(gz)

	out := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return out
		}
		assert.Nil(t, err)
		b, err := io.ReadAll(tr)
		assert.Nil(t, err)
		out[hdr.Name] = string(b)
	}
}
