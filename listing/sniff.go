package listing

import (
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit is the number of leading bytes inspected when classifying a
// file's content type.
const sniffLimit = 512

// SniffFile classifies f's content type by inspecting its leading bytes,
// grounded on the teacher's use of mimetype.Detect in
// backend/compress/compress.go. The file is left seeked back to the start
// so the caller can stream its full contents afterwards.
func SniffFile(f *os.File) (string, error) {
	buf := make([]byte, sniffLimit)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mimetype.Detect(buf[:n]).String(), nil
}
