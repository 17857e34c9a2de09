package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// OutputFormat represents different output format options
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat validates a format flag value
func ParseOutputFormat(value string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(value)) {
	case FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (expected table, json, or yaml)", value)
	}
}

// Service renders status lines, headers, tables, and structured output
type Service struct {
	writer io.Writer
	colors *ColorSystem
	theme  ColorTheme
}

// NewService creates a display service writing to stdout
func NewService() *Service {
	theme := DefaultColorTheme()
	return &Service{
		writer: os.Stdout,
		colors: NewColorSystem(theme),
		theme:  theme,
	}
}

// SetOutput redirects all output, mainly for tests
func (s *Service) SetOutput(writer io.Writer) {
	s.writer = writer
}

// PrintHeader prints an underlined section title
func (s *Service) PrintHeader(title string) {
	fmt.Fprintln(s.writer)
	fmt.Fprintln(s.writer, s.colors.Colorize(title, s.theme.Primary))
	fmt.Fprintln(s.writer, s.colors.Colorize(strings.Repeat("=", len(title)), s.theme.Primary))
}

// Success prints a success status line
func (s *Service) Success(message string) {
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize("✓", s.theme.Success), message)
}

// Warning prints a warning status line
func (s *Service) Warning(message string) {
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize("!", s.theme.Warning), message)
}

// Error prints an error status line
func (s *Service) Error(message string) {
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize("✗", s.theme.Error), message)
}

// Info prints an informational status line
func (s *Service) Info(message string) {
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize("•", s.theme.Info), message)
}

// PrintTable renders headers and rows as a bordered table
func (s *Service) PrintTable(headers []string, rows [][]string) {
	table := NewTable(s.colors)
	table.SetHeaders(headers)
	for _, row := range rows {
		table.AddRow(row)
	}
	fmt.Fprint(s.writer, table.Render())
}

// PrintStructured renders v as JSON or YAML
func (s *Service) PrintStructured(format OutputFormat, v interface{}) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(s.writer)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("format %q is not a structured format", format)
	}
}
