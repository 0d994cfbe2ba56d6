package instructions

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ImportFile reads instruction content from a file. PDFs have their text
// extracted; anything else is read as plain text.
func ImportFile(path string) (string, error) {
	var (
		content string
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		content, err = readPDF(path)
	} else {
		var data []byte
		data, err = os.ReadFile(path)
		content = string(data)
	}
	if err != nil {
		return "", fmt.Errorf("importing %s: %w", path, err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("importing %s: %w", path, ErrEmpty)
	}
	return content, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", err
	}
	return buf.String(), nil
}
