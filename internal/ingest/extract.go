// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Page is the extracted text of one page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Extractor turns a file on disk into page text.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// Kind classifies a file by its final extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindPDF
	KindText
)

// KindOf returns the kind for filename. Only the final suffix counts, so
// "resume.pdf.exe" is unsupported.
func KindOf(filename string) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF
	case ".txt", ".md":
		return KindText
	default:
		return KindUnsupported
	}
}

// SupportedExtensions lists every extension KindOf recognizes.
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".md"}
}

// TextExtractor reads a UTF-8 file as a single page.
type TextExtractor struct{}

var _ Extractor = TextExtractor{}

func (TextExtractor) Extract(_ context.Context, path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "reading text file")
	}
	if !utf8.Valid(data) {
		return nil, aegiserr.New(aegiserr.CodeIngestExtractFailure, "text file is not valid UTF-8")
	}
	return []Page{{Number: 1, Text: string(data)}}, nil
}

// PDFExtractor extracts text with pdfcpu. pdfcpu dumps each page's content
// stream to disk; the text-showing operators are then decoded from those
// streams. Fonts with custom encodings decode to whatever bytes they carry.
type PDFExtractor struct {
	TempDir string // scratch space for content streams; empty uses os.TempDir
}

var _ Extractor = PDFExtractor{}

func (e PDFExtractor) Extract(ctx context.Context, path string) ([]Page, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "reading pdf")
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(e.TempDir, "aegis-pages-*")
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestTempFileFailure, "creating page scratch dir")
	}
	defer func() { _ = os.RemoveAll(outDir) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := api.ExtractContentFile(path, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "extracting pdf content")
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "reading page content")
	}

	// A page may carry several content streams; they are concatenated in
	// file name order.
	streams := make(map[int][]string)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, ok := pageNumber(entry.Name())
		if !ok {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeIngestExtractFailure, "reading page content")
		}
		streams[n] = append(streams[n], decodeContentStream(raw))
	}

	pages := make([]Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, Page{Number: n, Text: strings.Join(streams[n], "\n")})
	}
	return pages, nil
}

// pageNumber parses pdfcpu's "<name>_Content_page_<n>[_<i>].txt" output names.
func pageNumber(name string) (int, bool) {
	i := strings.LastIndex(name, "_page_")
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimSuffix(name[i+len("_page_"):], filepath.Ext(name))
	if j := strings.IndexByte(rest, '_'); j >= 0 {
		rest = rest[:j]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// decodeContentStream pulls the string operands of the text-showing
// operators (Tj, TJ, ', ") out of a PDF content stream. Line-positioning
// operators become newlines and large TJ kerning gaps become spaces.
func decodeContentStream(raw []byte) string {
	var (
		out      strings.Builder
		operands []string
		inArray  bool
		array    strings.Builder
	)

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == '%':
			for i < len(raw) && raw[i] != '\n' && raw[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteral(raw, i)
			if inArray {
				array.WriteString(s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '<' && i+1 < len(raw) && raw[i+1] == '<':
			i += 2
		case c == '<':
			s, next := readHex(raw, i)
			if inArray {
				array.WriteString(s)
			} else {
				operands = append(operands, s)
			}
			i = next
		case c == '[':
			inArray = true
			array.Reset()
			i++
		case c == ']':
			inArray = false
			operands = append(operands, array.String())
			i++
		case inArray && (c == '-' || c == '.' || (c >= '0' && c <= '9')):
			start := i
			for i < len(raw) && (raw[i] == '-' || raw[i] == '.' || (raw[i] >= '0' && raw[i] <= '9')) {
				i++
			}
			// Kerning adjustments are in thousandths of an em; a large
			// negative one is a word gap.
			if v, err := strconv.ParseFloat(string(raw[start:i]), 64); err == nil && v < -200 {
				array.WriteByte(' ')
			}
		case isRegular(c):
			start := i
			for i < len(raw) && isRegular(raw[i]) {
				i++
			}
			switch op := string(raw[start:i]); op {
			case "Tj", "TJ":
				if len(operands) > 0 {
					out.WriteString(operands[len(operands)-1])
				}
				operands = operands[:0]
			case "'", `"`:
				newline()
				if len(operands) > 0 {
					out.WriteString(operands[len(operands)-1])
				}
				operands = operands[:0]
			case "Td", "TD", "T*", "ET":
				newline()
				operands = operands[:0]
			default:
				if !inArray && !isNumber(op) {
					operands = operands[:0]
				}
			}
		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

func readLiteral(raw []byte, i int) (string, int) {
	var b strings.Builder
	depth := 0
	for i < len(raw) {
		c := raw[i]
		switch c {
		case '\\':
			i++
			if i >= len(raw) {
				return b.String(), i
			}
			switch e := raw[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			default:
				if e >= '0' && e <= '7' {
					v := 0
					for k := 0; k < 3 && i < len(raw) && raw[i] >= '0' && raw[i] <= '7'; k++ {
						v = v*8 + int(raw[i]-'0')
						i++
					}
					b.WriteRune(rune(v))
					continue
				}
				b.WriteByte(e)
			}
			i++
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		default:
			if c < utf8.RuneSelf {
				b.WriteByte(c)
			} else {
				b.WriteRune(rune(c))
			}
			i++
		}
	}
	return b.String(), i
}

func readHex(raw []byte, i int) (string, int) {
	i++ // '<'
	var digits []byte
	for i < len(raw) && raw[i] != '>' {
		if isHexDigit(raw[i]) {
			digits = append(digits, raw[i])
		}
		i++
	}
	if i < len(raw) {
		i++ // '>'
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var b strings.Builder
	for k := 0; k+1 < len(digits); k += 2 {
		v, _ := strconv.ParseUint(string(digits[k:k+2]), 16, 8)
		if v >= 0x20 || v == '\n' || v == '\t' {
			b.WriteRune(rune(v))
		}
	}
	return b.String(), i
}

func isRegular(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// joinPages concatenates page text with blank lines between pages.
func joinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("unsupported(%d)", int(k))
	}
}
