package ingestion

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// UnsupportedFormatError reports a file extension without a registered
// extractor.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file type: %s. Supported: %s",
		e.Ext, strings.Join(SupportedExtensions(), ", "))
}

type loaderFunc func(path string) ([]string, error)

// File type -> extractor mapping. Legacy Office extensions share the
// OOXML extractors; genuinely binary legacy files surface a load error.
var loaders = map[string]loaderFunc{
	".pdf":  loadPDF,
	".docx": loadDocx,
	".doc":  loadDocx,
	".pptx": loadPptx,
	".ppt":  loadPptx,
	".xlsx": loadXlsx,
	".xls":  loadXlsx,
	".txt":  loadText,
	".md":   loadText,
}

// SupportedExtensions lists the registered extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(loaders))
	for ext := range loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadDocument extracts text from a local file, one block per logical
// page/section. Blank blocks are dropped. Missing files and unknown
// extensions are reported as errors; an empty result is not.
func LoadDocument(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	load, ok := loaders[ext]
	if !ok {
		return nil, &UnsupportedFormatError{Ext: ext}
	}

	blocks, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	out := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			out = append(out, b)
		}
	}
	return out, nil
}

func loadText(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

// loadPDF extracts plain text page by page.
func loadPDF(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var blocks []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		blocks = append(blocks, text)
	}
	return blocks, nil
}

// loadDocx pulls paragraph text out of word/document.xml. The whole
// document is one block; paragraphs are separated by blank lines.
func loadDocx(path string) ([]string, error) {
	paras, err := extractOOXML(path, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if len(paras) == 0 {
		return nil, nil
	}
	return []string{strings.Join(paras, "\n\n")}, nil
}

// loadPptx produces one block per slide, in slide order.
func loadPptx(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	var blocks []string
	for _, name := range names {
		paras, err := extractZipEntry(&zr.Reader, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		blocks = append(blocks, strings.Join(paras, "\n"))
	}
	return blocks, nil
}

// loadXlsx produces one block per sheet; rows become lines, cells are
// tab-separated.
func loadXlsx(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return blocks, nil
}

func extractOOXML(path, entry string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	return extractZipEntry(&zr.Reader, entry)
}

func extractZipEntry(zr *zip.Reader, entry string) ([]string, error) {
	f, err := zr.Open(entry)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", entry, err)
	}
	defer f.Close()

	return extractParagraphs(f)
}

// extractParagraphs walks OOXML markup collecting run text (<w:t> /
// <a:t>) and flushing a paragraph at each closing <w:p> / <a:p>. Both
// WordprocessingML and DrawingML use the same local names.
func extractParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var paras []string
	var current strings.Builder

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			paras = append(paras, text)
		}
		current.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return nil, fmt.Errorf("decode text run: %w", err)
				}
				current.WriteString(text)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				flush()
			}
		}
	}
	flush()

	return paras, nil
}
