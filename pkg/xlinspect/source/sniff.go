package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/richardlehane/mscfb"
)

type container int

const (
	containerUnknown container = iota
	containerXLSB
	containerOOXML
	containerEncrypted
	containerLegacyXLS
)

func (c container) String() string {
	switch c {
	case containerXLSB:
		return "xlsb"
	case containerOOXML:
		return "ooxml"
	case containerEncrypted:
		return "encrypted-ooxml"
	case containerLegacyXLS:
		return "xls"
	}
	return "unknown"
}

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// sniff classifies the file at path by its signature and, for ZIP and
// compound files, by the parts or streams they contain.
func sniff(path string) (container, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return containerUnknown, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return containerUnknown, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, len(cfbMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return containerUnknown, fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return sniffZip(path)
	case bytes.Equal(head, cfbMagic):
		return sniffCompound(f)
	}
	return containerUnknown, fmt.Errorf("%w: %s", ErrInvalidFormat, path)
}

func sniffZip(path string) (container, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return containerUnknown, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, path, err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		switch f.Name {
		case "xl/workbook.bin":
			return containerXLSB, nil
		case "xl/workbook.xml":
			return containerOOXML, nil
		}
	}
	return containerUnknown, fmt.Errorf("%w: %s has no workbook part", ErrInvalidFormat, path)
}

// sniffCompound inspects an OLE compound file. Encrypted OOXML packages
// carry EncryptionInfo and EncryptedPackage streams; BIFF8 workbooks carry
// a Workbook (or BIFF5 Book) stream.
func sniffCompound(r io.ReaderAt) (container, error) {
	doc, err := mscfb.New(r)
	if err != nil {
		return containerUnknown, fmt.Errorf("%w: compound file: %v", ErrInvalidFormat, err)
	}
	legacy := false
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		switch entry.Name {
		case "EncryptionInfo", "EncryptedPackage":
			return containerEncrypted, nil
		case "Workbook", "Book":
			legacy = true
		}
	}
	if legacy {
		return containerLegacyXLS, nil
	}
	return containerUnknown, fmt.Errorf("%w: compound file holds no workbook", ErrInvalidFormat)
}
