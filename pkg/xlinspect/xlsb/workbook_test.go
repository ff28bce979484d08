package xlsb

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestOpenReaderWorkbookMetadata(t *testing.T) {
	f := &fixture{
		sheets: []fixtureSheet{
			{name: "Data", body: sheetData()},
			{name: "Hidden One", state: 1, body: sheetData()},
			{name: "Secret", state: 2, body: sheetData()},
		},
		date1904: true,
		names:    []string{"Total", "_xlnm.Print_Area"},
	}
	wb := f.open(t)

	if got, want := wb.SheetNames(), []string{"Data", "Hidden One", "Secret"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SheetNames() = %v, want %v", got, want)
	}
	sheets := wb.Sheets()
	wantVis := []Visibility{Visible, Hidden, VeryHidden}
	for i, s := range sheets {
		if s.Visibility != wantVis[i] {
			t.Errorf("sheet %q visibility = %d, want %d", s.Name, s.Visibility, wantVis[i])
		}
	}
	if sheets[1].Part != "xl/worksheets/sheet2.bin" {
		t.Errorf("sheet part = %q, want xl/worksheets/sheet2.bin", sheets[1].Part)
	}
	if !wb.Date1904 {
		t.Error("Date1904 = false, want true")
	}
	if got, want := wb.names, []string{"Total", "Print_Area"}; !reflect.DeepEqual(got, want) {
		t.Errorf("defined names = %v, want %v", got, want)
	}
}

func TestOpenReaderMissingWorkbookPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("xl/styles.bin"); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := OpenReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if !errors.Is(err, ErrPartNotFound) {
		t.Errorf("OpenReader error = %v, want ErrPartNotFound", err)
	}
}

func TestSheetLookup(t *testing.T) {
	wb := (&fixture{sheets: []fixtureSheet{{name: "Sales", body: sheetData()}}}).open(t)

	ws, err := wb.Sheet("sales")
	if err != nil {
		t.Fatalf("Sheet(sales): %v", err)
	}
	if ws.Name != "Sales" {
		t.Errorf("Name = %q, want Sales", ws.Name)
	}
	if _, err := wb.Sheet("Missing"); !errors.Is(err, ErrSheetNotFound) {
		t.Errorf("Sheet(Missing) error = %v, want ErrSheetNotFound", err)
	}
}

func TestRowsValues(t *testing.T) {
	body := join(
		dim(0, 2, 0, 6),
		sheetData(
			rowHdr(0),
			rec(recInlineString, cell(0, 0), wstr("Name")),
			rec(recRK, cell(1, 0), i32(5<<2|0x02)),
			rec(recReal, cell(2, 0), f64(3.5)),
			rec(recBool, cell(3, 0), []byte{1}),
			rec(recError, cell(4, 0), []byte{0x07}),
			rec(recSharedString, cell(5, 0), le32(0)),
			rec(recSharedString, cell(6, 0), le32(99)),
			rowHdr(2),
			rec(recBlank, cell(0, 3)),
			rec(recRichString, cell(1, 0), []byte{0}, wstr("rich")),
			rec(recError, cell(2, 0), []byte{0x63}),
		),
	)
	wb := (&fixture{
		sheets:  []fixtureSheet{{name: "S", body: body}},
		strings: []string{"shared"},
	}).open(t)
	ws, err := wb.Sheet("S")
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	if ws.Dimension == nil || ws.Dimension.H != 3 || ws.Dimension.W != 7 {
		t.Fatalf("Dimension = %+v, want 3 rows x 7 cols", ws.Dimension)
	}

	rows := collectRows(t, ws)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for i, r := range rows {
		if r.Index != i {
			t.Errorf("rows[%d].Index = %d", i, r.Index)
		}
		if len(r.Cells) != 7 {
			t.Errorf("rows[%d] has %d cells, want 7", i, len(r.Cells))
		}
	}

	want := []any{"Name", 5.0, 3.5, true, "#DIV/0!", "shared", "<99>"}
	for i, w := range want {
		if got := rows[0].Cells[i].Value; got != w {
			t.Errorf("row 0 col %d = %#v, want %#v", i, got, w)
		}
	}
	for i, c := range rows[1].Cells {
		if c.Value != nil || c.Col != i {
			t.Errorf("gap row cell %d = %+v, want blank", i, c)
		}
	}
	if rows[2].Cells[0].Value != nil || rows[2].Cells[0].Style != 3 {
		t.Errorf("blank cell = %+v, want nil value with style 3", rows[2].Cells[0])
	}
	if rows[2].Cells[1].Value != "rich" {
		t.Errorf("rich string = %#v", rows[2].Cells[1].Value)
	}
	if rows[2].Cells[2].Value != "0x63" {
		t.Errorf("unknown error code = %#v, want 0x63", rows[2].Cells[2].Value)
	}
}

func TestRowsWidensPastDimension(t *testing.T) {
	body := join(dim(0, 0, 0, 0), sheetData(
		rowHdr(0),
		rec(recReal, cell(3, 0), f64(1)),
	))
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: body}}}).open(t)
	ws, _ := wb.Sheet("S")
	rows := collectRows(t, ws)
	if len(rows) != 1 || len(rows[0].Cells) != 4 {
		t.Fatalf("rows = %+v, want one row of 4 cells", rows)
	}
	if rows[0].Cells[3].Value != 1.0 {
		t.Errorf("cell D1 = %#v", rows[0].Cells[3].Value)
	}
}

func TestRowsSkipsMalformedCell(t *testing.T) {
	body := sheetData(
		rowHdr(0),
		rec(recReal, cell(0, 0), []byte{1, 2}),
		rec(recReal, cell(1, 0), f64(2)),
	)
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: body}}}).open(t)
	ws, _ := wb.Sheet("S")
	var skipped []int
	ws.OnSkip = func(row int, err error) { skipped = append(skipped, row) }
	rows := collectRows(t, ws)
	if len(skipped) != 1 || skipped[0] != 0 {
		t.Errorf("OnSkip rows = %v, want [0]", skipped)
	}
	if rows[0].Cells[0].Value != nil {
		t.Errorf("malformed cell = %#v, want nil", rows[0].Cells[0].Value)
	}
	if rows[0].Cells[1].Value != 2.0 {
		t.Errorf("next cell = %#v, want 2", rows[0].Cells[1].Value)
	}
}

func TestRowsOutOfOrderHeader(t *testing.T) {
	body := sheetData(
		rowHdr(0),
		rec(recReal, cell(0, 0), f64(1)),
		rowHdr(2),
		rec(recReal, cell(0, 0), f64(3)),
		rowHdr(1),
		rec(recReal, cell(1, 0), f64(2)),
		rowHdr(2),
		rec(recReal, cell(2, 0), f64(4)),
	)
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: body}}}).open(t)
	ws, _ := wb.Sheet("S")
	var skipped []int
	ws.OnSkip = func(row int, err error) { skipped = append(skipped, row) }
	rows := collectRows(t, ws)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if len(skipped) != 1 || skipped[0] != 1 {
		t.Errorf("OnSkip rows = %v, want [1]", skipped)
	}
	for _, c := range rows[1].Cells {
		if c.Value != nil {
			t.Errorf("row 1 cell %d = %#v, want blank", c.Col, c.Value)
		}
	}
	last := rows[2]
	if last.Index != 2 || last.Cells[0].Value != 3.0 || len(last.Cells) < 3 || last.Cells[2].Value != 4.0 {
		t.Errorf("row 2 = %+v, want 3 at A and 4 at C", last)
	}
	if len(last.Cells) > 1 && last.Cells[1].Value != nil {
		t.Errorf("row 2 col B = %#v, want blank", last.Cells[1].Value)
	}
}

func TestRowsCorruptStream(t *testing.T) {
	good := sheetData(rowHdr(0), rec(recReal, cell(0, 0), f64(1)))
	// Drop BrtEndSheetData (3 bytes) and append a record that overruns the part.
	body := append(good[:len(good)-3:len(good)-3], 0x05, 0x7F, 0x00)
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: body}}}).open(t)
	ws, err := wb.Sheet("S")
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	var rows []Row
	var gotErr error
	for row, err := range ws.Rows() {
		if err != nil {
			gotErr = err
			break
		}
		rows = append(rows, row)
	}
	if !errors.Is(gotErr, io.ErrUnexpectedEOF) {
		t.Errorf("error = %v, want io.ErrUnexpectedEOF", gotErr)
	}
	if len(rows) != 1 || rows[0].Cells[0].Value != 1.0 {
		t.Errorf("rows before corruption = %+v", rows)
	}
}

func TestRowsNoSheetData(t *testing.T) {
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: dim(0, 0, 0, 0)}}}).open(t)
	ws, _ := wb.Sheet("S")
	if rows := collectRows(t, ws); len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestRowsStopsEarly(t *testing.T) {
	body := sheetData(rowHdr(0), rowHdr(5))
	wb := (&fixture{sheets: []fixtureSheet{{name: "S", body: body}}}).open(t)
	ws, _ := wb.Sheet("S")
	n := 0
	for range ws.Rows() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d rows, want 2", n)
	}
}

func TestStylesIsDate(t *testing.T) {
	wb := (&fixture{
		sheets:  []fixtureSheet{{name: "S", body: sheetData()}},
		numFmts: map[uint16]string{164: "yyyy-mm-dd", 165: "#,##0.00", 166: "[h]:mm"},
		xfFmts:  []uint16{0, 14, 164, 165, 166, 22},
	}).open(t)

	want := []bool{false, true, true, false, true, true}
	for i, w := range want {
		if got := wb.Styles.IsDate(i); got != w {
			t.Errorf("IsDate(%d) = %v, want %v (fmt %d)", i, got, w, wb.Styles[i].NumFmtID)
		}
	}
	if wb.Styles.IsDate(-1) || wb.Styles.IsDate(100) {
		t.Error("out-of-range style reported as date")
	}
}

func TestVisibilityString(t *testing.T) {
	for v, want := range map[Visibility]string{Visible: "visible", Hidden: "hidden", VeryHidden: "very-hidden", 7: "Visibility(7)"} {
		if got := v.String(); got != want {
			t.Errorf("Visibility(%d).String() = %q, want %q", int(v), got, want)
		}
	}
}

func TestIsDateFormat(t *testing.T) {
	tests := []struct {
		id     int
		format string
		want   bool
	}{
		{0, "", false},
		{14, "", true},
		{47, "", true},
		{49, "", false},
		{164, "yyyy-mm-dd", true},
		{164, "hh:mm:ss", true},
		{164, "[h]:mm", true},
		{164, "#,##0.00", false},
		{164, "0.0%;[Red]-0.0%", false},
		{164, `0.00;"due "d-mmm`, true},
	}
	for _, tt := range tests {
		if got := IsDateFormat(tt.id, tt.format); got != tt.want {
			t.Errorf("IsDateFormat(%d, %q) = %v, want %v", tt.id, tt.format, got, tt.want)
		}
	}
}

func TestOpenByName(t *testing.T) {
	data := (&fixture{sheets: []fixtureSheet{{name: "S", body: sheetData()}}}).build(t)
	path := filepath.Join(t.TempDir(), "book.xlsb")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	wb, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if names := wb.SheetNames(); len(names) != 1 || names[0] != "S" {
		t.Errorf("SheetNames() = %v", names)
	}
	if err := wb.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if _, err := Open(filepath.Join(t.TempDir(), "missing.xlsb")); err == nil {
		t.Error("Open of a missing file succeeded")
	}
}

func TestRecordStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(rec(recSheet, []byte{1, 2, 3}))
	buf.Write(rec(recRow, make([]byte, 200)))

	rs := newRecordStream(buf.Bytes())
	id, payload, err := rs.next()
	if err != nil || id != recSheet || !bytes.Equal(payload, []byte{1, 2, 3}) {
		t.Fatalf("first record = %#x %v %v", id, payload, err)
	}
	id, payload, err = rs.next()
	if err != nil || id != recRow || len(payload) != 200 {
		t.Fatalf("second record = %#x len %d %v", id, len(payload), err)
	}
	if _, _, err := rs.next(); !isEOF(err) {
		t.Errorf("third next() = %v, want EOF", err)
	}

	if _, _, err := newRecordStream([]byte{0x9C}).next(); err == nil || isEOF(err) {
		t.Errorf("truncated id error = %v, want corruption", err)
	}
}

func TestFieldReaderRK(t *testing.T) {
	tests := []struct {
		raw  int32
		want float64
	}{
		{5<<2 | 0x02, 5},
		{-3<<2 | 0x02, -3},
		{12345<<2 | 0x03, 123.45},
		{int32(math.Float64bits(1.0) >> 32), 1.0},
		{int32(math.Float64bits(2.5)>>32) | 0x01, 0.025},
	}
	for _, tt := range tests {
		got, err := newFieldReader(i32(tt.raw)).rk()
		if err != nil {
			t.Fatalf("rk(%#x): %v", tt.raw, err)
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("rk(%#x) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestQuoteSheetName(t *testing.T) {
	tests := map[string]string{
		"Sheet1":   "Sheet1",
		"My Sheet": "'My Sheet'",
		"O'Brien":  "'O''Brien'",
		"2024":     "'2024'",
		"":         "''",
	}
	for in, want := range tests {
		if got := quoteSheetName(in); got != want {
			t.Errorf("quoteSheetName(%q) = %q, want %q", in, got, want)
		}
	}
}
