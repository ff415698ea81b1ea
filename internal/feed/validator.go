package feed

import (
	"fmt"
	"net/url"
)

// ValidateSources validates a registry's source descriptors before any of
// them are eligible for polling. An empty registry is valid.
func ValidateSources(sources []SourceDescriptor) error {
	seenIDs := make(map[string]bool)

	for i, src := range sources {
		if err := validateRequiredFields(src); err != nil {
			return fmt.Errorf("source at position %d: %w", i+1, err)
		}

		if seenIDs[src.ID] {
			return fmt.Errorf("duplicate source id found: %s", src.ID)
		}
		seenIDs[src.ID] = true

		if !KnownCategories[src.Category] {
			return fmt.Errorf("source %q: unknown category %q", src.ID, src.Category)
		}
		if !KnownJurisdictions[src.Jurisdiction] {
			return fmt.Errorf("source %q: unknown jurisdiction %q", src.ID, src.Jurisdiction)
		}
		if !KnownFormats[src.Format] {
			return fmt.Errorf("source %q: unknown stream format %q", src.ID, src.Format)
		}

		switch src.Access {
		case AccessOpen, AccessPartial, AccessInternal:
		default:
			return fmt.Errorf("source %q: unknown access level %q", src.ID, src.Access)
		}

		if err := validateURL(src.URL); err != nil {
			return fmt.Errorf("source %q: %w", src.ID, err)
		}
	}

	return nil
}

func validateRequiredFields(src SourceDescriptor) error {
	if src.ID == "" {
		return fmt.Errorf("missing required field 'id'")
	}
	if src.Name == "" {
		return fmt.Errorf("missing required field 'name'")
	}
	if src.Category == "" {
		return fmt.Errorf("missing required field 'category'")
	}
	if src.Jurisdiction == "" {
		return fmt.Errorf("missing required field 'jurisdiction'")
	}
	if src.URL == "" {
		return fmt.Errorf("missing required field 'url'")
	}
	if src.Format == "" {
		return fmt.Errorf("missing required field 'format'")
	}
	return nil
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url format: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use HTTP or HTTPS (got %q)", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("url must include a hostname")
	}

	return nil
}
