package worker

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/minesim/minesim/pkg/errors"
)

// Engine runs a single process discovery over inputs already staged on the
// local filesystem and returns the path of the produced result archive.
// Implementations must be safe to call from multiple goroutines.
type Engine interface {
	Discover(ctx context.Context, logPath, configPath, outDir string) (string, error)
}

const resultArchiveName = "results.tar.gz"

// SubprocessEngine shells out to an external discovery binary. The command
// is invoked as:
//
//	<cmd> [args...] <log path> <config path> <output dir>
//
// with an empty string for the config path when none was submitted. Anything
// the command leaves in the output dir is bundled into a tar.gz archive.
type SubprocessEngine struct {
	cmd  string
	args []string
}

// NewSubprocessEngine builds an engine from a shell-ish command line, eg.
// "poetry run discover". The first word is the binary, the rest fixed args.
func NewSubprocessEngine(cmdline string) (*SubprocessEngine, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w engine command is empty", errors.ErrInvalidArg)
	}
	return &SubprocessEngine{cmd: fields[0], args: fields[1:]}, nil
}

func (e *SubprocessEngine) Discover(ctx context.Context, logPath, configPath, outDir string) (string, error) {
	args := append(append([]string{}, e.args...), logPath, configPath, outDir)

	cmd := exec.CommandContext(ctx, e.cmd, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w %v: %s", errors.ErrEngine, err, tail(out, 2048))
	}

	archive := filepath.Join(filepath.Dir(outDir), resultArchiveName)
	err = tarDir(outDir, archive)
	if err != nil {
		return "", fmt.Errorf("%w failed to archive results: %v", errors.ErrEngine, err)
	}
	return archive, nil
}

// tail returns the last n bytes of subprocess output, for error detail.
func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

// tarDir bundles the contents of dir into a gzipped tarball at dst.
func tarDir(dir, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		err = tw.WriteHeader(hdr)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if err != nil {
		return err
	}
	err = tw.Close()
	if err != nil {
		return err
	}
	return gz.Close()
}
