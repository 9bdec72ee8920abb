package upload

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// sniffLen is how many leading bytes type detection reads, matching
// what http.DetectContentType consumes.
const sniffLen = 512

// mimeOctetStream is the detector's "unknown" answer. It is treated as
// an explicit detection failure, never as a usable type.
const mimeOctetStream = "application/octet-stream"

const (
	mimeDoc  = "application/msword"
	mimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// OLE compound files cover legacy .doc; OOXML documents are zip
// containers holding a word/ entry. Neither is in the stdlib sniffing
// table.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}

// DetectMIMEType determines a file's content type from its leading
// bytes, independent of filename or any client-declared type. An
// unrecognizable signature is an explicit ErrUndetectableType, never a
// silent default.
func DetectMIMEType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndetectableType, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: %v", ErrUndetectableType, err)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrUndetectableType)
	}
	buf = buf[:n]

	if bytes.HasPrefix(buf, oleSignature) {
		return mimeDoc, nil
	}
	if bytes.HasPrefix(buf, zipSignature) {
		if mime, ok := sniffZip(path); ok {
			return mime, nil
		}
	}

	mime := normalizeMIME(http.DetectContentType(buf))
	if mime == mimeOctetStream {
		return "", fmt.Errorf("%w: unrecognized signature", ErrUndetectableType)
	}
	return mime, nil
}

// sniffZip identifies OOXML word documents by the entry names in the
// zip directory. Entry order inside the container is not fixed, so the
// whole archive is consulted rather than its leading bytes.
func sniffZip(path string) (string, bool) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", false
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "word/") {
			return mimeDocx, true
		}
	}
	return "", false
}

// normalizeMIME strips parameters such as charset and lower-cases the type.
func normalizeMIME(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	return strings.TrimSpace(strings.ToLower(mime))
}
