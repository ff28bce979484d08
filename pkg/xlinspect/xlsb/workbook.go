package xlsb

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

var (
	// ErrPartNotFound is returned when a required archive member is missing.
	ErrPartNotFound = errors.New("xlsb: part not found")
	// ErrSheetNotFound is returned by Workbook.Sheet for an unknown name.
	ErrSheetNotFound = errors.New("xlsb: sheet not found")
)

// Visibility is the hsState of a sheet.
type Visibility int

const (
	Visible Visibility = iota
	Hidden
	VeryHidden
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case VeryHidden:
		return "very-hidden"
	}
	return fmt.Sprintf("Visibility(%d)", int(v))
}

// SheetInfo describes one entry of the workbook's sheet list.
type SheetInfo struct {
	Name       string
	Part       string // archive path, e.g. "xl/worksheets/sheet1.bin"
	Visibility Visibility
}

type supBookKind int

const (
	supBookSelf supBookKind = iota
	supBookSame
	supBookExternal
	supBookAddin
)

// xti is one extern-sheet entry: a supporting book and a sheet-tab range.
type xti struct {
	supBook  int
	firstTab int
	lastTab  int
}

// Workbook is an open .xlsb workbook.
type Workbook struct {
	file io.Closer
	zf   *zip.Reader

	sheets   []SheetInfo
	strings  []string
	names    []string
	supBooks []supBookKind
	externs  []xti

	// Styles is the cell format table; a cell's Style indexes into it.
	Styles Styles
	// Date1904 is set when serials count from 1904-01-01.
	Date1904 bool
}

// Open opens the named .xlsb file. Close releases the file handle.
func Open(name string) (*Workbook, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("xlsb: open %q: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsb: open %q: %w", name, err)
	}
	wb, err := OpenReader(f, st.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	wb.file = f
	return wb, nil
}

// OpenReader reads a workbook from r, which holds size bytes of ZIP data.
func OpenReader(r io.ReaderAt, size int64) (*Workbook, error) {
	zf, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("xlsb: open reader: %w", err)
	}
	wb := &Workbook{zf: zf}
	if err := wb.parse(); err != nil {
		return nil, err
	}
	return wb, nil
}

// Close releases the underlying file when the workbook was opened by name.
func (wb *Workbook) Close() error {
	if wb.file != nil {
		return wb.file.Close()
	}
	return nil
}

// Sheets returns the sheet list in workbook order.
func (wb *Workbook) Sheets() []SheetInfo {
	out := make([]SheetInfo, len(wb.sheets))
	copy(out, wb.sheets)
	return out
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.sheets))
	for i, s := range wb.sheets {
		names[i] = s.Name
	}
	return names
}

// Sheet opens the worksheet with the given name (case-insensitive).
func (wb *Workbook) Sheet(name string) (*Worksheet, error) {
	for _, s := range wb.sheets {
		if strings.EqualFold(s.Name, name) {
			data, err := readZipFile(wb.zf, s.Part)
			if err != nil {
				return nil, fmt.Errorf("xlsb: open sheet %q: %w", s.Name, err)
			}
			return newWorksheet(s.Name, data, wb), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
}

func (wb *Workbook) parse() error {
	if err := wb.parseWorkbook(); err != nil {
		return err
	}
	if data, err := readZipFile(wb.zf, "xl/sharedStrings.bin"); err == nil {
		if wb.strings, err = parseSharedStrings(data); err != nil {
			return err
		}
	}
	// styles.bin is optional and a damaged one only costs date detection.
	if data, err := readZipFile(wb.zf, "xl/styles.bin"); err == nil {
		if st, err := parseStyles(data); err == nil {
			wb.Styles = st
		}
	}
	return nil
}

// parseWorkbook reads the sheet list, date system, defined names and the
// extern-sheet table from xl/workbook.bin.
func (wb *Workbook) parseWorkbook() error {
	const part = "xl/workbook.bin"
	relsData, err := readZipFile(wb.zf, relsPathFor(part))
	if err != nil {
		return fmt.Errorf("xlsb: workbook rels: %w", err)
	}
	rels, err := parseRels(relsData)
	if err != nil {
		return err
	}
	data, err := readZipFile(wb.zf, part)
	if err != nil {
		return fmt.Errorf("xlsb: %w", err)
	}

	rs := newRecordStream(data)
	for {
		id, rec, err := rs.next()
		if err != nil {
			if isEOF(err) {
				return nil
			}
			return fmt.Errorf("xlsb: workbook: %w", err)
		}
		switch id {
		case recWorkbookPr:
			if len(rec) >= 4 {
				wb.Date1904 = binary.LittleEndian.Uint32(rec)&0x01 != 0
			}
		case recSheet:
			info, err := parseSheetRecord(rec, rels, path.Dir(part))
			if err != nil {
				return fmt.Errorf("xlsb: sheet record: %w", err)
			}
			wb.sheets = append(wb.sheets, info)
		case recName:
			wb.names = append(wb.names, parseNameRecord(rec))
		case recSupSelf:
			wb.supBooks = append(wb.supBooks, supBookSelf)
		case recSupSame:
			wb.supBooks = append(wb.supBooks, supBookSame)
		case recSupBookSrc:
			wb.supBooks = append(wb.supBooks, supBookExternal)
		case recSupAddin:
			wb.supBooks = append(wb.supBooks, supBookAddin)
		case recExternSheet:
			wb.externs = parseExternSheet(rec)
		case recWorkbookEnd:
			return nil
		}
	}
}

// parseSheetRecord decodes BrtBundleSh: hsState, iTabID, strRelID, strName.
func parseSheetRecord(rec []byte, rels map[string]string, baseDir string) (SheetInfo, error) {
	fr := newFieldReader(rec)
	state, err := fr.uint32()
	if err != nil {
		return SheetInfo{}, err
	}
	if err := fr.skip(4); err != nil {
		return SheetInfo{}, err
	}
	relID, err := fr.wideString()
	if err != nil {
		return SheetInfo{}, err
	}
	name, err := fr.wideString()
	if err != nil {
		return SheetInfo{}, err
	}
	target, ok := rels[relID]
	if !ok {
		return SheetInfo{}, fmt.Errorf("no relationship for %q (sheet %q)", relID, name)
	}
	return SheetInfo{
		Name:       name,
		Part:       resolvePartPath(target, baseDir),
		Visibility: Visibility(state & 0x03),
	}, nil
}

// parseNameRecord returns the name of a BrtName record, or "" when the
// record is too short. The entry is kept either way so PtgName indices stay
// aligned with record order.
func parseNameRecord(rec []byte) string {
	fr := newFieldReader(rec)
	if err := fr.skip(4 + 1 + 4); err != nil {
		return ""
	}
	name, err := fr.wideString()
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(name, "_xlnm.")
}

// parseExternSheet decodes BrtExternSheet: cXti followed by cXti XTIs.
func parseExternSheet(rec []byte) []xti {
	fr := newFieldReader(rec)
	n, err := fr.uint32()
	if err != nil {
		return nil
	}
	var out []xti
	for range n {
		sb, err1 := fr.int32()
		first, err2 := fr.int32()
		last, err3 := fr.int32()
		if err1 != nil || err2 != nil || err3 != nil {
			break
		}
		out = append(out, xti{supBook: int(sb), firstTab: int(first), lastTab: int(last)})
	}
	return out
}

// parseSharedStrings reads the SST. A malformed SI becomes "" so that the
// indices of the following strings stay correct.
func parseSharedStrings(data []byte) ([]string, error) {
	var out []string
	rs := newRecordStream(data)
	for {
		id, rec, err := rs.next()
		if err != nil {
			if isEOF(err) {
				return out, nil
			}
			return nil, fmt.Errorf("xlsb: shared strings: %w", err)
		}
		switch id {
		case recSI:
			fr := newFieldReader(rec)
			s := ""
			if fr.skip(1) == nil {
				s, _ = fr.wideString()
			}
			out = append(out, s)
		case recSSTEnd:
			return out, nil
		}
	}
}

// sharedString returns SST entry idx, or "<idx>" when it is out of range.
func (wb *Workbook) sharedString(idx uint32) string {
	if uint64(idx) < uint64(len(wb.strings)) {
		return wb.strings[idx]
	}
	return fmt.Sprintf("<%d>", idx)
}

// definedName returns the 1-based defined name used by PtgName.
func (wb *Workbook) definedName(idx int) string {
	if idx >= 1 && idx <= len(wb.names) && wb.names[idx-1] != "" {
		return wb.names[idx-1]
	}
	return fmt.Sprintf("NAME_%d", idx)
}

// sheetPrefix returns the "Sheet1!" style prefix of a 3D reference.
func (wb *Workbook) sheetPrefix(ixti int) string {
	if ixti < 0 || ixti >= len(wb.externs) {
		return "#REF!"
	}
	x := wb.externs[ixti]
	kind := supBookSelf
	if x.supBook >= 0 && x.supBook < len(wb.supBooks) {
		kind = wb.supBooks[x.supBook]
	}
	if kind == supBookExternal || kind == supBookAddin {
		return fmt.Sprintf("[%d]!", x.supBook)
	}
	if x.firstTab < 0 {
		// -1 deleted sheet, -2 workbook scope.
		if x.firstTab == -2 {
			return ""
		}
		return "#REF!"
	}
	first := wb.tabName(x.firstTab)
	if x.lastTab != x.firstTab && x.lastTab >= 0 {
		return quoteSheetName(first+":"+wb.tabName(x.lastTab)) + "!"
	}
	return quoteSheetName(first) + "!"
}

func (wb *Workbook) tabName(tab int) string {
	if tab >= 0 && tab < len(wb.sheets) {
		return wb.sheets[tab].Name
	}
	return fmt.Sprintf("Sheet%d", tab+1)
}

// quoteSheetName wraps a sheet name in single quotes when formula syntax
// requires it.
func quoteSheetName(name string) string {
	plain := name != ""
	for i, r := range name {
		isLetter := r == '_' || r == '.' || r == ':' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r > 0x7F
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(isDigit && i > 0) {
			plain = false
			break
		}
	}
	if plain {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
