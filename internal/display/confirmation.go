package display

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConfirmationDialog asks the user to approve a destructive action
type ConfirmationDialog struct {
	service *Service
	reader  io.Reader
	message string
	details []string
}

// NewConfirmationDialog creates a dialog reading from stdin
func (s *Service) NewConfirmationDialog(message string) *ConfirmationDialog {
	return &ConfirmationDialog{
		service: s,
		reader:  os.Stdin,
		message: message,
	}
}

// SetInput overrides the answer source, mainly for tests
func (cd *ConfirmationDialog) SetInput(reader io.Reader) *ConfirmationDialog {
	cd.reader = reader
	return cd
}

// AddDetail appends a context line shown above the prompt
func (cd *ConfirmationDialog) AddDetail(detail string) *ConfirmationDialog {
	cd.details = append(cd.details, detail)
	return cd
}

// Show prompts and returns true only on an explicit yes
func (cd *ConfirmationDialog) Show() (bool, error) {
	s := cd.service

	s.Warning(cd.message)
	for _, detail := range cd.details {
		fmt.Fprintf(s.writer, "  %s\n", s.colors.Colorize(detail, s.theme.Muted))
	}
	fmt.Fprintf(s.writer, "%s ", s.colors.Colorize("Continue? [y/N]:", s.theme.Warning))

	scanner := bufio.NewScanner(cd.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}
