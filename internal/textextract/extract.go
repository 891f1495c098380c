package textextract

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/hirelens/hirelens/internal/utils"
)

// Metadata describes the source document.
type Metadata struct {
	PageCount int `json:"page_count"`
	ByteSize  int `json:"byte_size"`
}

const pdfMagic = "%PDF-"

// Extractor converts resume documents into normalized plain text.
// Only PDF is supported.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// ExtractFile reads the document at path and returns normalized text plus
// metadata. The transform is pure over the file bytes.
func (e *Extractor) ExtractFile(path string) (string, *Metadata, error) {
	const op = "Extractor.ExtractFile"

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return "", nil, utils.E(utils.CodeInvalidArgument, op, "unsupported format: "+ext, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, utils.E(utils.CodeNotFound, op, "resume file not found", err)
		}
		return "", nil, utils.E(utils.CodeInternal, op, "failed to read resume file", err)
	}

	return e.ExtractBytes(data)
}

// ExtractBytes extracts and normalizes text from an in-memory PDF.
func (e *Extractor) ExtractBytes(data []byte) (string, *Metadata, error) {
	const op = "Extractor.ExtractBytes"

	if !bytes.HasPrefix(data, []byte(pdfMagic)) {
		return "", nil, utils.E(utils.CodeInvalidArgument, op, "unsupported format: missing PDF signature", nil)
	}

	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to parse PDF", err)
	}

	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to read PDF page count", err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", nil, utils.E(utils.CodeInternal, op, "failed to read PDF page", err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", nil, utils.E(utils.CodeInternal, op, "failed to open PDF page extractor", err)
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			return "", nil, utils.E(utils.CodeInternal, op, "failed to extract PDF text", err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}

	meta := &Metadata{PageCount: numPages, ByteSize: len(data)}
	return Normalize(sb.String()), meta, nil
}
