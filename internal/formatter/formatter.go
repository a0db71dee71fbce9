package formatter

import (
	"fmt"
	"strings"
)

// Content is anything that can render itself in the supported formats.
type Content interface {
	ToCSV() (string, error)
	ToJSON() ([]byte, error)
	ToMarkdown() (string, error)
}

// Formats lists the accepted format names.
var Formats = []string{"csv", "json", "markdown"}

func Format(content Content, format string) (string, error) {
	switch strings.ToLower(format) {
	case "csv":
		return content.ToCSV()
	case "markdown", "md":
		return content.ToMarkdown()
	case "json":
		b, err := content.ToJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}
