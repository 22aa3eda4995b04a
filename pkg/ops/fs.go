package ops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrSameFile = errors.New("ops: source and destination are the same file")

func (l *Local) ListFiles(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "*")
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	return files, nil
}

func (l *Local) DeleteFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("delete %s: is a directory", path)
	}
	return os.Remove(path)
}

// CopyFile copies src to dst, keeping the source permissions. A directory dst
// receives a file with the source's base name.
func (l *Local) CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return err
	}
	if srcInfo.IsDir() {
		return fmt.Errorf("copy %s: is a directory", src)
	}

	if dstInfo, err := os.Stat(dst); err == nil {
		if dstInfo.IsDir() {
			dst = filepath.Join(dst, filepath.Base(src))
			dstInfo, err = os.Stat(dst)
		}
		if err == nil && os.SameFile(srcInfo, dstInfo) {
			return ErrSameFile
		}
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}
