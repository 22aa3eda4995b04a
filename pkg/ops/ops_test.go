package ops

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestListFilesDirectoryExpandsToEntries(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.txt"), "a")
	touch(t, filepath.Join(dir, "b.txt"), "b")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	files, err := NewLocal("").ListFiles(dir)
	require.NoError(t, err)
	sort.Strings(files)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, files)
}

func TestListFilesPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.txt"), "a")
	touch(t, filepath.Join(dir, "c.log"), "c")

	files, err := NewLocal("").ListFiles(filepath.Join(dir, "*.log"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "c.log")}, files)

	files, err = NewLocal("").ListFiles(filepath.Join(dir, "missing", "*"))
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = NewLocal("").ListFiles("[")
	assert.ErrorIs(t, err, filepath.ErrBadPattern)
}

func TestDeleteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	touch(t, path, "x")

	l := NewLocal("")
	require.NoError(t, l.DeleteFile(path))
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, l.DeleteFile(path), os.ErrNotExist)
	assert.Error(t, l.DeleteFile(dir))
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	touch(t, src, "payload")

	l := NewLocal("")
	dst := filepath.Join(dir, "b.txt")
	require.NoError(t, l.CopyFile(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	sub := filepath.Join(dir, "backup")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, l.CopyFile(src, sub))
	assert.FileExists(t, filepath.Join(sub, "a.txt"))

	assert.ErrorIs(t, l.CopyFile(src, src), ErrSameFile)
	assert.ErrorIs(t, l.CopyFile(filepath.Join(dir, "nope"), dst), os.ErrNotExist)
	assert.Error(t, l.CopyFile(sub, dst))
}

func TestRunProgram(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX utilities")
	}
	l := NewLocal("")
	if truePath, err := exec.LookPath("true"); err == nil {
		assert.NoError(t, l.RunProgram(truePath))
	}
	if falsePath, err := exec.LookPath("false"); err == nil {
		assert.NoError(t, l.RunProgram(falsePath), "non-zero exit still ran")
	}
	assert.Error(t, l.RunProgram(filepath.Join(t.TempDir(), "no-such-program")))
}

func TestCaptureAndReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	l := NewLocal(path, WithCapturer(func() (image.Image, error) { return img, nil }))

	_, err := l.ReadCapturedImage()
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, l.CaptureScreen())
	data, err := l.ReadCapturedImage()
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestCaptureFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.jpg")
	l := NewLocal(path, WithCapturer(func() (image.Image, error) { return nil, ErrNoDisplay }))

	assert.ErrorIs(t, l.CaptureScreen(), ErrNoDisplay)
	assert.NoFileExists(t, path)
	_, err := l.ReadCapturedImage()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
