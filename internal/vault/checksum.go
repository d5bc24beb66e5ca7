package vault

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"lukechampine.com/blake3"

	"vfm-go/internal/vfm"
)

// Checksum returns the hex blake3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readContent reads r to the end and checks that it held exactly size
// bytes. It returns the bytes and their checksum.
func readContent(r io.Reader, size int64) ([]byte, string, error) {
	var buf bytes.Buffer
	h := blake3.New(32, nil)
	n, err := io.Copy(io.MultiWriter(&buf, h), r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read content: %w", err)
	}
	if n != size {
		return nil, "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}
	return buf.Bytes(), hex.EncodeToString(h.Sum(nil)), nil
}

// verify checks data against the size and checksum recorded in meta. A
// blob stored without a checksum is accepted on size alone.
func verify(meta vfm.BlobMeta, data []byte) error {
	if int64(len(data)) != meta.Size {
		return fmt.Errorf("blob %s is corrupt: size %d, recorded %d", meta.ID, len(data), meta.Size)
	}
	if meta.Checksum != "" && Checksum(data) != meta.Checksum {
		return fmt.Errorf("blob %s is corrupt: checksum mismatch", meta.ID)
	}
	return nil
}

// checkID rejects blob ids that could escape a key prefix or directory.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid blob id %q", id)
	}
	return nil
}
