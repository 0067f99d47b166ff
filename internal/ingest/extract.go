package ingest

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractPages runs pdftotext -layout on the given PDF and returns one string
// per page. pdftotext separates pages with form feeds.
func (p *PdfToText) ExtractPages(ctx context.Context, pdfPath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ingest: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return strings.Split(stdout.String(), "\f"), nil
}

// Piece is a unit of extracted text before embedding. PageLabel is the
// 1-based PDF page, or -1 for non-paginated sources.
type Piece struct {
	Text      string
	PageLabel int
}

// supportedExtensions lists the file types the ingestor handles.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".xlsx": true,
	".txt":  true,
	".md":   true,
	".csv":  true,
}

// Supported reports whether the file extension is a known document type.
func Supported(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ExtractFile converts a single document into text pieces. PDFs produce one
// piece per page; other formats are chunked with overlap.
func (ing *Ingestor) ExtractFile(ctx context.Context, path string) ([]Piece, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err := ing.pdf.ExtractPages(ctx, path)
		if err != nil {
			return nil, err
		}
		var pieces []Piece
		for i, page := range pages {
			page = strings.TrimSpace(page)
			if page == "" {
				continue
			}
			pieces = append(pieces, Piece{Text: page, PageLabel: i + 1})
		}
		return pieces, nil
	case ".xlsx":
		text, err := extractXLSX(path)
		if err != nil {
			return nil, err
		}
		return chunkPieces(text, ing.opts.ChunkSize, ing.opts.ChunkOverlap), nil
	case ".txt", ".md", ".csv":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		return chunkPieces(string(b), ing.opts.ChunkSize, ing.opts.ChunkOverlap), nil
	default:
		return nil, eris.Errorf("ingest: unsupported file type %s", path)
	}
}

func chunkPieces(text string, size, overlap int) []Piece {
	chunks := ChunkText(text, size, overlap)
	pieces := make([]Piece, len(chunks))
	for i, c := range chunks {
		pieces[i] = Piece{Text: c, PageLabel: -1}
	}
	return pieces
}

// extractXLSX flattens every sheet into tab-separated rows so tables from fund
// fact sheets remain searchable as text.
func extractXLSX(path string) (string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: open xlsx %s", path)
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(sheet.Name)
		sb.WriteString("\n")
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
