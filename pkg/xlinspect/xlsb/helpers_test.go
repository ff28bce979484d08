package xlsb

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"testing"
	"unicode/utf16"
)

// writeID writes a raw record id: low byte first, every byte but the last
// with its MSB set, matching recordStream.readID.
func writeID(buf *bytes.Buffer, id int) {
	for {
		b := id & 0xFF
		id >>= 8
		if id > 0 {
			buf.WriteByte(byte(b) | 0x80)
			continue
		}
		buf.WriteByte(byte(b) &^ 0x80)
		return
	}
}

// writeLen writes a LEB128 record length.
func writeLen(buf *bytes.Buffer, n int) {
	for {
		b := n & 0x7F
		n >>= 7
		if n > 0 {
			buf.WriteByte(byte(b) | 0x80)
			continue
		}
		buf.WriteByte(byte(b))
		return
	}
}

// rec encodes one record whose payload is the concatenation of parts.
func rec(id int, parts ...[]byte) []byte {
	var payload, buf bytes.Buffer
	for _, p := range parts {
		payload.Write(p)
	}
	writeID(&buf, id)
	writeLen(&buf, payload.Len())
	buf.Write(payload.Bytes())
	return buf.Bytes()
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func le16(v uint16) []byte {
	return binary.LittleEndian.AppendUint16(nil, v)
}

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func i32(v int32) []byte {
	return le32(uint32(v))
}

func f64(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

// wstr encodes an XLWideString.
func wstr(s string) []byte {
	u := utf16.Encode([]rune(s))
	out := le32(uint32(len(u)))
	for _, c := range u {
		out = binary.LittleEndian.AppendUint16(out, c)
	}
	return out
}

// sstr encodes a string with a 16-bit character count (PtgStr, SerStr).
func sstr(s string) []byte {
	u := utf16.Encode([]rune(s))
	out := le16(uint16(len(u)))
	for _, c := range u {
		out = binary.LittleEndian.AppendUint16(out, c)
	}
	return out
}

// cell encodes the common column + style prefix of a cell record.
func cell(col, style uint32) []byte {
	return join(le32(col), le32(style))
}

func rowHdr(r uint32) []byte {
	return rec(recRow, le32(r), le32(0), le16(0x0F), le16(0), []byte{0, 0})
}

func dim(r1, r2, c1, c2 uint32) []byte {
	return rec(recDimension, le32(r1), le32(r2), le32(c1), le32(c2))
}

// formula encodes grbitFlags + CellParsedFormula with an optional rgcb.
func formula(rgce, rgcb []byte) []byte {
	return join(le16(0), le32(uint32(len(rgce))), rgce, le32(uint32(len(rgcb))), rgcb)
}

// sheetData wraps cell and row records in BrtBeginSheetData/BrtEndSheetData.
func sheetData(records ...[]byte) []byte {
	return join(rec(recSheetData), join(records...), rec(recSheetDataEnd))
}

type fixtureSheet struct {
	name  string
	state uint32
	body  []byte
}

type fixture struct {
	sheets   []fixtureSheet
	strings  []string
	numFmts  map[uint16]string
	xfFmts   []uint16
	date1904 bool
	names    []string
	externs  [][3]int32
}

func (f *fixture) workbookBin() []byte {
	var buf bytes.Buffer
	var flags uint32
	if f.date1904 {
		flags = 0x01
	}
	buf.Write(rec(recWorkbookPr, le32(flags), le32(0), wstr("")))
	for i, s := range f.sheets {
		buf.Write(rec(recSheet, le32(s.state), le32(uint32(i+1)), wstr(fmt.Sprintf("rId%d", i+1)), wstr(s.name)))
	}
	if len(f.externs) > 0 {
		buf.Write(rec(recSupSelf))
		parts := [][]byte{le32(uint32(len(f.externs)))}
		for _, x := range f.externs {
			parts = append(parts, i32(x[0]), i32(x[1]), i32(x[2]))
		}
		buf.Write(rec(recExternSheet, parts...))
	}
	for _, n := range f.names {
		buf.Write(rec(recName, le32(0), []byte{0}, le32(0xFFFFFFFF), wstr(n)))
	}
	buf.Write(rec(recWorkbookEnd))
	return buf.Bytes()
}

func (f *fixture) relsXML() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	buf.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for i := range f.sheets {
		fmt.Fprintf(&buf, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet%d.bin"/>`, i+1, i+1)
	}
	buf.WriteString(`</Relationships>`)
	return buf.Bytes()
}

func (f *fixture) sharedStringsBin() []byte {
	var buf bytes.Buffer
	for _, s := range f.strings {
		buf.Write(rec(recSI, []byte{0}, wstr(s)))
	}
	buf.Write(rec(recSSTEnd))
	return buf.Bytes()
}

func (f *fixture) stylesBin() []byte {
	var buf bytes.Buffer
	for id, s := range f.numFmts {
		buf.Write(rec(recNumFmt, le16(id), wstr(s)))
	}
	// A style XF outside CellXFs must not shift the cell XF indices.
	buf.Write(rec(recXF, le16(0xFFFF), le16(49), make([]byte, 12)))
	buf.Write(rec(recCellXFs, le32(uint32(len(f.xfFmts)))))
	for _, id := range f.xfFmts {
		buf.Write(rec(recXF, le16(0), le16(id), make([]byte, 12)))
	}
	buf.Write(rec(recCellXFsEnd))
	return buf.Bytes()
}

// build assembles the fixture into .xlsb bytes.
func (f *fixture) build(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	add := func(name string, data []byte) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	add("xl/workbook.bin", f.workbookBin())
	add("xl/_rels/workbook.bin.rels", f.relsXML())
	if f.strings != nil {
		add("xl/sharedStrings.bin", f.sharedStringsBin())
	}
	if f.xfFmts != nil {
		add("xl/styles.bin", f.stylesBin())
	}
	for i, s := range f.sheets {
		add(fmt.Sprintf("xl/worksheets/sheet%d.bin", i+1), s.body)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// open builds the fixture and opens it.
func (f *fixture) open(t *testing.T) *Workbook {
	t.Helper()
	data := f.build(t)
	wb, err := OpenReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

// collectRows drains a sheet, failing the test on any iteration error.
func collectRows(t *testing.T, ws *Worksheet) []Row {
	t.Helper()
	var rows []Row
	for row, err := range ws.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		rows = append(rows, row)
	}
	return rows
}
