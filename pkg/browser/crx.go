package browser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	crxMagic = []byte("Cr24")
	zipMagic = []byte("PK\x03\x04")
)

// zipOffset returns where the zip payload of a packed extension starts.
// CRX2 and CRX3 headers are skipped; a bare zip starts at 0.
func zipOffset(data []byte) (int, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return 0, nil
	}
	if len(data) < 12 || !bytes.HasPrefix(data, crxMagic) {
		return 0, fmt.Errorf("not a crx package")
	}

	var offset uint64
	switch version := binary.LittleEndian.Uint32(data[4:8]); version {
	case 2:
		if len(data) < 16 {
			return 0, fmt.Errorf("truncated crx2 header")
		}
		keyLen := binary.LittleEndian.Uint32(data[8:12])
		sigLen := binary.LittleEndian.Uint32(data[12:16])
		offset = 16 + uint64(keyLen) + uint64(sigLen)
	case 3:
		headerLen := binary.LittleEndian.Uint32(data[8:12])
		offset = 12 + uint64(headerLen)
	default:
		return 0, fmt.Errorf("unsupported crx version %d", version)
	}

	if offset > uint64(len(data)) {
		return 0, fmt.Errorf("crx header overruns file")
	}
	return int(offset), nil
}

// UnpackCRX extracts the packed extension at path into dest.
func UnpackCRX(path, dest string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read extension package: %w", err)
	}

	offset, err := zipOffset(data)
	if err != nil {
		return fmt.Errorf("invalid extension package %s: %w", path, err)
	}
	payload := data[offset:]

	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("invalid extension archive %s: %w", path, err)
	}

	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dest, err)
	}

	for _, f := range zr.File {
		if err := extractFile(f, root); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, root string) error {
	target := filepath.Join(root, filepath.FromSlash(f.Name))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return fmt.Errorf("archive entry %q escapes extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}
