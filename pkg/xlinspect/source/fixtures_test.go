package source

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// biffRec encodes one BIFF12 record with a raw id.
func biffRec(id int, parts ...[]byte) []byte {
	var buf bytes.Buffer
	for {
		b := id & 0xFF
		id >>= 8
		if id > 0 {
			buf.WriteByte(byte(b) | 0x80)
			continue
		}
		buf.WriteByte(byte(b) &^ 0x80)
		break
	}
	payload := bytes.Join(parts, nil)
	n := len(payload)
	for {
		b := n & 0x7F
		n >>= 7
		if n > 0 {
			buf.WriteByte(byte(b) | 0x80)
			continue
		}
		buf.WriteByte(byte(b))
		break
	}
	buf.Write(payload)
	return buf.Bytes()
}

func u32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

func u16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }

func float(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func wide(s string) []byte {
	u := utf16.Encode([]rune(s))
	out := u32(uint32(len(u)))
	for _, c := range u {
		out = binary.LittleEndian.AppendUint16(out, c)
	}
	return out
}

// buildXLSB writes a one-sheet workbook named "Data":
//
//	A1 "Label"   B1 45000 (date format)   C1 =B1+1 cached 45001
//	row 2 missing
//	A3 true
func buildXLSB(t *testing.T) string {
	t.Helper()
	return buildXLSBWithState(t, 0)
}

// buildXLSBWithState is buildXLSB with the Data sheet's hsState set.
func buildXLSBWithState(t *testing.T, hsState uint32) string {
	t.Helper()
	workbook := bytes.Join([][]byte{
		biffRec(0x0199, u32(0), u32(0), wide("")),
		biffRec(0x019C, u32(hsState), u32(1), wide("rId1"), wide("Data")),
		biffRec(0x0184),
	}, nil)
	rels := []byte(`<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.bin"/></Relationships>`)
	styles := bytes.Join([][]byte{
		biffRec(0x04E9, u32(2)),
		biffRec(0x002F, u16(0), u16(0), make([]byte, 12)),
		biffRec(0x002F, u16(0), u16(14), make([]byte, 12)),
		biffRec(0x04EA),
	}, nil)
	// B1 (row 0, col 1) relative, int 1, add.
	rgce := bytes.Join([][]byte{{0x24}, u32(0), u16(1 | 0xC000), {0x1E}, u16(1), {0x03}}, nil)
	rowHdr := func(r uint32) []byte { return biffRec(0x0000, u32(r), u32(0), make([]byte, 5)) }
	sheet := bytes.Join([][]byte{
		biffRec(0x0194, u32(0), u32(2), u32(0), u32(2)),
		biffRec(0x0191),
		rowHdr(0),
		biffRec(0x0006, u32(0), u32(0), wide("Label")),
		biffRec(0x0005, u32(1), u32(1), float(45000)),
		biffRec(0x0009, u32(2), u32(0), float(45001), u16(0), u32(uint32(len(rgce))), rgce, u32(0)),
		rowHdr(2),
		biffRec(0x0004, u32(0), u32(0), []byte{1}),
		biffRec(0x0192),
	}, nil)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range map[string][]byte{
		"xl/workbook.bin":            workbook,
		"xl/_rels/workbook.bin.rels": rels,
		"xl/styles.bin":              styles,
		"xl/worksheets/sheet1.bin":   sheet,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return writeTemp(t, "book.xlsb", buf.Bytes())
}

// buildCompound writes a minimal version 3 compound file whose root
// storage holds one empty stream with the given name.
func buildCompound(t *testing.T, stream string) string {
	t.Helper()
	const (
		sectorSize = 512
		endOfChain = 0xFFFFFFFE
		freeSect   = 0xFFFFFFFF
		fatSect    = 0xFFFFFFFD
		noStream   = 0xFFFFFFFF
	)
	file := make([]byte, 3*sectorSize)

	hdr := file[:sectorSize]
	copy(hdr, cfbMagic)
	binary.LittleEndian.PutUint16(hdr[0x18:], 0x003E)
	binary.LittleEndian.PutUint16(hdr[0x1A:], 0x0003)
	binary.LittleEndian.PutUint16(hdr[0x1C:], 0xFFFE)
	binary.LittleEndian.PutUint16(hdr[0x1E:], 9)
	binary.LittleEndian.PutUint16(hdr[0x20:], 6)
	binary.LittleEndian.PutUint32(hdr[0x2C:], 1)          // FAT sectors
	binary.LittleEndian.PutUint32(hdr[0x30:], 1)          // first directory sector
	binary.LittleEndian.PutUint32(hdr[0x38:], 0x1000)     // mini stream cutoff
	binary.LittleEndian.PutUint32(hdr[0x3C:], endOfChain) // mini FAT
	binary.LittleEndian.PutUint32(hdr[0x44:], endOfChain) // DIFAT
	binary.LittleEndian.PutUint32(hdr[0x4C:], 0)          // DIFAT[0] = sector 0
	for i := 1; i < 109; i++ {
		binary.LittleEndian.PutUint32(hdr[0x4C+4*i:], freeSect)
	}

	fat := file[sectorSize : 2*sectorSize]
	for i := 0; i < sectorSize/4; i++ {
		binary.LittleEndian.PutUint32(fat[4*i:], freeSect)
	}
	binary.LittleEndian.PutUint32(fat[0:], fatSect)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain)

	dir := file[2*sectorSize:]
	entry := func(i int, name string, typ byte, child uint32) {
		e := dir[i*128 : (i+1)*128]
		u := utf16.Encode([]rune(name))
		for j, c := range u {
			binary.LittleEndian.PutUint16(e[2*j:], c)
		}
		binary.LittleEndian.PutUint16(e[64:], uint16(2*(len(u)+1)))
		e[66] = typ
		e[67] = 1 // black
		binary.LittleEndian.PutUint32(e[68:], noStream)
		binary.LittleEndian.PutUint32(e[72:], noStream)
		binary.LittleEndian.PutUint32(e[76:], child)
		binary.LittleEndian.PutUint32(e[116:], endOfChain)
	}
	entry(0, "Root Entry", 5, 1)
	entry(1, stream, 2, noStream)
	for i := 2; i < 4; i++ {
		e := dir[i*128 : (i+1)*128]
		binary.LittleEndian.PutUint32(e[68:], noStream)
		binary.LittleEndian.PutUint32(e[72:], noStream)
		binary.LittleEndian.PutUint32(e[76:], noStream)
	}
	return writeTemp(t, "book.bin", file)
}
