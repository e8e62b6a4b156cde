package extractor

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"io"
	"strings"

	reportstack_errors "github.com/dmarcwatch/reportstack/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte{0x50, 0x4b, 0x03, 0x04}
)

// ExtractXML normalizes raw attachment bytes into decompressed XML.
// Container type is decided by magic bytes with the filename extension
// as a fallback; anything that is neither gzip nor zip is assumed to be
// raw XML. The result is checked for XML well-formedness only — DMARC
// schema validation is the parser's job.
func ExtractXML(filename string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, reportstack_errors.NewCorruptArchive("attachment is empty", nil)
	}

	var xmlBytes []byte
	var err error

	switch {
	case bytes.HasPrefix(data, gzipMagic):
		xmlBytes, err = unGzip(data)
	case bytes.HasPrefix(data, zipMagic):
		xmlBytes, err = unZip(data)
	case strings.HasSuffix(strings.ToLower(filename), ".gz"):
		xmlBytes, err = unGzip(data)
	case strings.HasSuffix(strings.ToLower(filename), ".zip"):
		xmlBytes, err = unZip(data)
	default:
		xmlBytes = data
	}
	if err != nil {
		return nil, err
	}

	if err := checkWellFormed(xmlBytes); err != nil {
		return nil, reportstack_errors.NewCorruptArchive("payload is not well-formed XML", err)
	}

	return xmlBytes, nil
}

func unGzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, reportstack_errors.NewCorruptArchive("gzip open failed", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, reportstack_errors.NewCorruptArchive("gzip decompress failed", err)
	}
	return out, nil
}

// unZip extracts the first entry with an .xml extension. Reporters
// occasionally pack extra files into the archive; anything without an
// .xml entry is rejected.
func unZip(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, reportstack_errors.NewCorruptArchive("zip open failed", err)
	}

	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, reportstack_errors.NewCorruptArchive("zip entry open failed", err)
		}
		out, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, reportstack_errors.NewCorruptArchive("zip entry read failed", err)
		}
		return out, nil
	}

	return nil, reportstack_errors.NewCorruptArchive("zip contains no .xml entry", nil)
}

func checkWellFormed(data []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
