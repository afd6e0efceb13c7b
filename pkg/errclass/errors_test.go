package errclass_test

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/rip-project/rip/pkg/errclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRipError_Error(t *testing.T) {
	err := errclass.ErrDestinationOccupied.WithMessage("/home/user/notes.txt exists")
	assert.Equal(t, "E_DESTINATION_OCCUPIED: /home/user/notes.txt exists", err.Error())
	assert.Equal(t, "E_NOT_FOUND", errclass.ErrNotFound.Error())
}

func TestRipError_Is(t *testing.T) {
	err := errclass.ErrNotFound.WithMessage("specific message")
	require.True(t, errors.Is(err, errclass.ErrNotFound))
	require.False(t, errors.Is(err, errclass.ErrPermissionDenied))

	wrapped := fmt.Errorf("bury: %w", err)
	assert.True(t, errors.Is(wrapped, errclass.ErrNotFound))
}

func TestRipError_WrapKeepsCause(t *testing.T) {
	cause := fs.ErrPermission
	err := errclass.ErrPermissionDenied.Wrap(cause, "open grave")
	assert.True(t, errors.Is(err, fs.ErrPermission))
	assert.True(t, errors.Is(err, errclass.ErrPermissionDenied))
	assert.Equal(t, "E_PERMISSION_DENIED: open grave: permission denied", err.Error())
}

func TestRipError_WithMessagef(t *testing.T) {
	err := errclass.ErrIO.WithMessagef("copy %d files", 3)
	assert.Equal(t, "E_IO: copy 3 files", err.Error())
}

func TestClassify_NotExist(t *testing.T) {
	_, err := os.Lstat(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	classified := errclass.Classify(err)
	assert.True(t, errors.Is(classified, errclass.ErrNotFound))
	assert.True(t, errors.Is(classified, fs.ErrNotExist))
}

func TestClassify_Permission(t *testing.T) {
	err := &fs.PathError{Op: "rename", Path: "/x", Err: fs.ErrPermission}
	assert.True(t, errors.Is(errclass.Classify(err), errclass.ErrPermissionDenied))
}

func TestClassify_KeepsExistingClass(t *testing.T) {
	orig := errclass.ErrDestinationOccupied.WithMessage("taken")
	wrapped := fmt.Errorf("restore: %w", orig)
	assert.Same(t, orig, errclass.Classify(wrapped))
}

func TestClassify_FallsBackToIO(t *testing.T) {
	err := errors.New("something odd")
	classified := errclass.Classify(err)
	assert.Equal(t, "E_IO", classified.Code)
	assert.True(t, errors.Is(classified, errclass.ErrIO))
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, errclass.Classify(nil))
	assert.Equal(t, "", errclass.Code(nil))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "E_RECORD_CORRUPT", errclass.Code(errclass.ErrRecordCorrupt.WithMessage("line 3")))
	assert.Equal(t, "E_NOT_FOUND", errclass.Code(fmt.Errorf("x: %w", fs.ErrNotExist)))
}

func TestClassifyMsg(t *testing.T) {
	err := errclass.ClassifyMsg(fs.ErrNotExist, "lstat target")
	assert.Equal(t, "E_NOT_FOUND: lstat target: file does not exist", err.Error())
}
