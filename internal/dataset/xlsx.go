package dataset

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrSheetNotFound is wrapped by LoadXLSX when the requested sheet is missing.
var ErrSheetNotFound = errors.New("sheet not found")

// LoadXLSX reads one worksheet of an Office Open XML workbook. The sheet is
// chosen by Options.SheetName, then Options.SheetIndex (1-based), then the
// first sheet. Only cell values are read; formulas contribute their cached result.
func LoadXLSX(p string, opt Options) (*Table, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer zr.Close()

	wb, err := readWorkbook(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	target, err := wb.resolve(opt.SheetName, opt.SheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	f := findZipFile(&zr.Reader, target)
	if f == nil {
		return nil, fmt.Errorf("%s: worksheet part %s is missing", filepath.Base(p), target)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open worksheet: %w", err)
	}
	defer rc.Close()

	rows := &sheetRows{dec: xml.NewDecoder(rc), shared: wb.shared}
	header, err := rows.next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: sheet of %s is empty", filepath.Base(p))
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := newTable(filepath.Base(p), header, opt)
	for {
		row, err := rows.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		if !t.appendRow(row) {
			break
		}
	}
	return t, nil
}

type workbook struct {
	sheets []sheetRef
	rels   map[string]string // relationship id -> zip path
	shared []string
}

type sheetRef struct {
	Name string `xml:"name,attr"`
	ID   int    `xml:"sheetId,attr"`
	RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

func readWorkbook(zr *zip.Reader) (*workbook, error) {
	var doc struct {
		Sheets []sheetRef `xml:"sheets>sheet"`
	}
	if err := unmarshalPart(zr, "xl/workbook.xml", &doc); err != nil {
		return nil, err
	}
	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := unmarshalPart(zr, "xl/_rels/workbook.xml.rels", &rels); err != nil && !errors.Is(err, errPartMissing) {
		return nil, err
	}
	var sst struct {
		Items []struct {
			T string `xml:"t"`
			R []struct {
				T string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if err := unmarshalPart(zr, "xl/sharedStrings.xml", &sst); err != nil && !errors.Is(err, errPartMissing) {
		return nil, err
	}

	wb := &workbook{sheets: doc.Sheets, rels: map[string]string{}}
	for _, r := range rels.Items {
		wb.rels[r.ID] = relPath(r.Target)
	}
	for _, si := range sst.Items {
		if len(si.R) == 0 {
			wb.shared = append(wb.shared, si.T)
			continue
		}
		var b strings.Builder
		for _, run := range si.R {
			b.WriteString(run.T)
		}
		wb.shared = append(wb.shared, b.String())
	}
	return wb, nil
}

// resolve maps a sheet name or 1-based index to its worksheet part.
func (wb *workbook) resolve(name string, index int) (string, error) {
	if name != "" {
		for _, s := range wb.sheets {
			if strings.EqualFold(s.Name, name) {
				return wb.partFor(s, 0), nil
			}
		}
		names := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			names[i] = s.Name
		}
		return "", fmt.Errorf("%w: %q (available sheets: %s)", ErrSheetNotFound, name, strings.Join(names, ", "))
	}
	if index <= 0 {
		index = 1
	}
	if index > len(wb.sheets) && len(wb.sheets) > 0 {
		return "", fmt.Errorf("%w: index %d (workbook has %d sheets)", ErrSheetNotFound, index, len(wb.sheets))
	}
	if len(wb.sheets) == 0 {
		return fmt.Sprintf("xl/worksheets/sheet%d.xml", index), nil
	}
	return wb.partFor(wb.sheets[index-1], index), nil
}

func (wb *workbook) partFor(s sheetRef, fallback int) string {
	if p, ok := wb.rels[s.RID]; ok {
		return p
	}
	if fallback <= 0 {
		fallback = s.ID
	}
	return fmt.Sprintf("xl/worksheets/sheet%d.xml", fallback)
}

// relPath converts a relationship target into a zip entry name. Targets are
// relative to xl/ unless they start with a slash.
func relPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	if strings.HasPrefix(target, "xl/") {
		return path.Clean(target)
	}
	return path.Join("xl", target)
}

var errPartMissing = errors.New("part missing")

func unmarshalPart(zr *zip.Reader, name string, v any) error {
	f := findZipFile(zr, name)
	if f == nil {
		return fmt.Errorf("%s: %w", name, errPartMissing)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func findZipFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// sheetRows streams <row> elements of a worksheet. Cells are placed by their
// A1 reference so gaps left by empty cells are preserved.
type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

type xmlCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline struct {
		T string `xml:"t"`
	} `xml:"is"`
}

func (s *sheetRows) next() ([]string, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}
		var row struct {
			Cells []xmlCell `xml:"c"`
		}
		if err := s.dec.DecodeElement(&row, &se); err != nil {
			return nil, err
		}
		var out []string
		for i, c := range row.Cells {
			col := i
			if c.Ref != "" {
				col = columnIndex(c.Ref)
			}
			if col < 0 {
				continue
			}
			for len(out) <= col {
				out = append(out, "")
			}
			out[col] = s.cellText(c)
		}
		return out, nil
	}
}

func (s *sheetRows) cellText(c xmlCell) string {
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || i < 0 || i >= len(s.shared) {
			return ""
		}
		return s.shared[i]
	case "inlineStr":
		return c.Inline.T
	case "b":
		if c.Value == "1" {
			return "TRUE"
		}
		return "FALSE"
	}
	return c.Value
}

// columnIndex converts the letters of an A1 reference to a 0-based column,
// e.g. "C12" -> 2, "AA1" -> 26.
func columnIndex(ref string) int {
	idx := 0
	n := 0
	for _, r := range strings.ToUpper(ref) {
		if r < 'A' || r > 'Z' {
			break
		}
		idx = idx*26 + int(r-'A'+1)
		n++
	}
	if n == 0 {
		return -1
	}
	return idx - 1
}
