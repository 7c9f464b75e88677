package browser

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func crx3(payload []byte, header []byte) []byte {
	out := append([]byte{}, crxMagic...)
	out = binary.LittleEndian.AppendUint32(out, 3)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	return append(out, payload...)
}

func crx2(payload, key, sig []byte) []byte {
	out := append([]byte{}, crxMagic...)
	out = binary.LittleEndian.AppendUint32(out, 2)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(key)))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(sig)))
	out = append(out, key...)
	out = append(out, sig...)
	return append(out, payload...)
}

func writePackage(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ext.crx")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestUnpackCRX_Formats(t *testing.T) {
	payload := buildZip(t, map[string]string{
		"manifest.json":   `{"manifest_version": 3}`,
		"js/background.js": "console.log('bg')",
	})

	tests := []struct {
		name string
		data []byte
	}{
		{"crx3", crx3(payload, []byte("proto-header-bytes"))},
		{"crx2", crx2(payload, []byte("public-key"), []byte("signature"))},
		{"bare zip", payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			require.NoError(t, UnpackCRX(writePackage(t, tt.data), dest))

			manifest, err := os.ReadFile(filepath.Join(dest, "manifest.json"))
			require.NoError(t, err)
			assert.Equal(t, `{"manifest_version": 3}`, string(manifest))

			bg, err := os.ReadFile(filepath.Join(dest, "js", "background.js"))
			require.NoError(t, err)
			assert.Equal(t, "console.log('bg')", string(bg))
		})
	}
}

func TestUnpackCRX_Missing(t *testing.T) {
	err := UnpackCRX(filepath.Join(t.TempDir(), "absent.crx"), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnpackCRX_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("definitely not an extension")},
		{"unknown version", append(append([]byte{}, crxMagic...), 9, 0, 0, 0, 0, 0, 0, 0)},
		{"header overrun", crx3(nil, nil)[:8]},
		{"oversized header", append(append(append([]byte{}, crxMagic...), 3, 0, 0, 0), 0xff, 0xff, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, UnpackCRX(writePackage(t, tt.data), t.TempDir()))
		})
	}
}

func TestUnpackCRX_RejectsPathTraversal(t *testing.T) {
	payload := buildZip(t, map[string]string{"../escape.txt": "nope"})
	dest := t.TempDir()

	err := UnpackCRX(writePackage(t, crx3(payload, nil)), dest)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
