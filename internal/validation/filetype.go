// Package validation checks extractor output and caller-supplied names
// before they are returned to a client.
package validation

import (
	"errors"
	"io"
	"net/http"
)

// ErrDisallowedFileType is returned when output is not MPEG audio.
var ErrDisallowedFileType = errors.New("file type not allowed")

var allowedMIMETypes = map[string]bool{
	"audio/mpeg": true,
}

// magicBytesBufferSize is the number of bytes read for content type detection.
const magicBytesBufferSize = 512

// ValidateMagicBytes sniffs the first bytes of reader and reports whether
// they look like MPEG audio. The reader is rewound before returning.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := io.ReadFull(reader, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", false, err
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}
	buf = buf[:n]

	mime = detectMPEGAudio(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}

	return mime, allowedMIMETypes[mime], nil
}

// detectMPEGAudio recognizes an ID3v2 tag or a bare MPEG layer III frame
// sync. http.DetectContentType only knows the ID3 form.
func detectMPEGAudio(buf []byte) string {
	if len(buf) >= 3 && buf[0] == 'I' && buf[1] == 'D' && buf[2] == '3' {
		return "audio/mpeg"
	}

	// 11 sync bits, then version bits != 01 (reserved), then layer bits == 01.
	if len(buf) >= 2 && buf[0] == 0xFF && buf[1]&0xE0 == 0xE0 {
		version := (buf[1] >> 3) & 0x03
		layer := (buf[1] >> 1) & 0x03
		if version != 0x01 && layer == 0x01 {
			return "audio/mpeg"
		}
	}

	return ""
}
