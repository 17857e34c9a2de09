package backup

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxTags              = 50
	maxTagKeyLength      = 128
	maxTagValueLength    = 256
	maxDescriptionLength = 500
)

var tagKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateTags validates tag key-value pairs. Tag keys end up in manifest
// JSON and offsite object metadata, so they are restricted to a safe
// character set.
func ValidateTags(tags map[string]string) error {
	if len(tags) > maxTags {
		return fmt.Errorf("too many tags (max %d, got %d)", maxTags, len(tags))
	}

	for key, value := range tags {
		if len(key) == 0 {
			return fmt.Errorf("tag key cannot be empty")
		}
		if len(key) > maxTagKeyLength {
			return fmt.Errorf("tag key too long (max %d characters): %s", maxTagKeyLength, key)
		}
		if !tagKeyPattern.MatchString(key) {
			return fmt.Errorf("invalid tag key format (only alphanumeric, underscore, and hyphen allowed): %s", key)
		}
		if len(value) > maxTagValueLength {
			return fmt.Errorf("tag value too long (max %d characters) for key %s", maxTagValueLength, key)
		}
	}

	return nil
}

// ValidateDescription checks the backup description length
func ValidateDescription(description string) error {
	if len(description) > maxDescriptionLength {
		return fmt.Errorf("description too long (max %d characters, got %d)", maxDescriptionLength, len(description))
	}
	return nil
}

// IsValidBackupID checks if a backup ID has valid format
func IsValidBackupID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, id)
	return matched
}

// SanitizeDescription trims and collapses whitespace, truncating overlong
// descriptions instead of rejecting them
func SanitizeDescription(description string) string {
	description = strings.TrimSpace(description)

	spaceRegex := regexp.MustCompile(`\s+`)
	description = spaceRegex.ReplaceAllString(description, " ")

	if len(description) > maxDescriptionLength {
		description = description[:maxDescriptionLength-3] + "..."
	}

	return description
}
