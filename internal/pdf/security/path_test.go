package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("  ")
	assert.Error(t, err)

	v, err := NewPathValidator("/does/not/exist/yet")
	require.NoError(t, err)
	assert.Equal(t, "/does/not/exist/yet", v.GetConfiguredDirectory())
}

func TestPathValidator_Resolve(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sf86.pdf"), []byte("%PDF-1.7"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "other.pdf"), []byte("%PDF-1.7"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "other.pdf"), filepath.Join(dir, "escape.pdf")))

	v, err := NewPathValidator(dir)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "absolute inside", path: filepath.Join(dir, "sf86.pdf"), want: filepath.Join(dir, "sf86.pdf")},
		{name: "relative joins directory", path: "sf86.pdf", want: filepath.Join(dir, "sf86.pdf")},
		{name: "not yet written is fine", path: "out/report.json", want: filepath.Join(dir, "out", "report.json")},
		{name: "dot dot escape", path: "../" + filepath.Base(outside) + "/other.pdf", wantErr: true},
		{name: "absolute outside", path: filepath.Join(outside, "other.pdf"), wantErr: true},
		{name: "symlink out of directory", path: "escape.pdf", wantErr: true},
		{name: "empty", path: "", wantErr: true},
		{name: "only nul bytes", path: "\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, v.ValidatePath(tt.path))
		})
	}
}

func TestPathValidator_MissingDirectoryAllowsAnyPath(t *testing.T) {
	v, err := NewPathValidator(filepath.Join(t.TempDir(), "later"))
	require.NoError(t, err)

	got, err := v.Resolve("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "/etc/hosts", got)
}

func TestPathValidator_OutsideErrorIsTyped(t *testing.T) {
	v, err := NewPathValidator(t.TempDir())
	require.NoError(t, err)

	_, err = v.Resolve("/")
	assert.ErrorIs(t, err, ErrOutsideDirectory)
}
