package xlsb

import (
	"fmt"

	"github.com/xuri/nfp"
)

// XF is the number-format part of one cell format record.
type XF struct {
	NumFmtID  int
	FormatStr string
}

// Styles is the cell XF table of xl/styles.bin, indexed by a cell's style.
type Styles []XF

// IsDate reports whether the XF at index s formats numbers as a date or time.
func (st Styles) IsDate(s int) bool {
	if s < 0 || s >= len(st) {
		return false
	}
	return IsDateFormat(st[s].NumFmtID, st[s].FormatStr)
}

// IsDateFormat reports whether a number format renders dates or times.
// Built-in ids follow ECMA-376 §18.8.30; custom formats are tokenized with
// nfp and count as dates when any section holds a date/time token.
func IsDateFormat(id int, formatStr string) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	if formatStr == "" {
		return false
	}
	ps := nfp.NumberFormatParser()
	for _, sec := range ps.Parse(formatStr) {
		for _, tok := range sec.Items {
			if tok.TType == nfp.TokenTypeDateTimes || tok.TType == nfp.TokenTypeElapsedDateTimes {
				return true
			}
		}
	}
	return false
}

// parseStyles reads the CellXFs table. Custom formats (BrtFmt) are resolved
// by id; XFs inside CellStyleXFs are not cell formats and are skipped.
func parseStyles(data []byte) (Styles, error) {
	fmts := make(map[int]string)
	var table Styles
	inCellXFs := false

	rs := newRecordStream(data)
	for {
		id, rec, err := rs.next()
		if err != nil {
			if isEOF(err) {
				return table, nil
			}
			return nil, fmt.Errorf("xlsb: styles: %w", err)
		}
		switch id {
		case recNumFmt:
			fr := newFieldReader(rec)
			fmtID, err := fr.uint16()
			if err != nil {
				continue
			}
			s, _ := fr.wideString()
			fmts[int(fmtID)] = s
		case recCellXFs:
			inCellXFs = true
		case recCellXFsEnd:
			inCellXFs = false
		case recXF:
			if !inCellXFs {
				continue
			}
			fr := newFieldReader(rec)
			if err := fr.skip(2); err != nil {
				table = append(table, XF{})
				continue
			}
			fmtID, err := fr.uint16()
			if err != nil {
				table = append(table, XF{})
				continue
			}
			table = append(table, XF{NumFmtID: int(fmtID), FormatStr: fmts[int(fmtID)]})
		}
	}
}
