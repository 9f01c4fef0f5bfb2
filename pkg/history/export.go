package history

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format selects an export encoding.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
)

// FormatForPath picks YAML for .yaml/.yml files and text otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatText
}

// exportDocument is the YAML layout of an export.
type exportDocument struct {
	Count   int     `yaml:"count"`
	Entries []Entry `yaml:"entries"`
}

// Export writes entries to w in the given format.
func Export(w io.Writer, entries []Entry, format Format) error {
	switch format {
	case FormatText:
		return exportText(w, entries)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(exportDocument{Count: len(entries), Entries: entries}); err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown export format %q", format)
}

// exportText writes one "[n] expression = result [timestamp]" line per entry,
// numbered the way !N references count (0 = most recent).
func exportText(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Calculation History Export")
	fmt.Fprintln(bw, "==========================")
	fmt.Fprintln(bw)

	for i, e := range entries {
		fmt.Fprintf(bw, "[%d] %s", i, e)
		if !e.Timestamp.IsZero() {
			fmt.Fprintf(bw, " [%s]", e.Timestamp.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(bw)
	}

	fmt.Fprintf(bw, "\nTotal entries: %d\n", len(entries))
	return bw.Flush()
}

// ReadYAML decodes an export produced with FormatYAML.
func ReadYAML(r io.Reader) ([]Entry, error) {
	var doc exportDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return doc.Entries, nil
}
