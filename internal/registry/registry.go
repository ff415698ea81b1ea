// Package registry supplies the source descriptors the pipeline polls.
// The registry store itself is an external collaborator; this package holds
// its contract plus a YAML-file-backed implementation for deployments that
// ship their source list as configuration.
package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/aussiewaska-coder/TACMAP2-sub001/internal/feed"
)

// Filter narrows the descriptor set a provider returns. Zero values match
// everything; Tags require every listed tag to be present.
type Filter struct {
	Category        feed.Category
	Jurisdiction    feed.Jurisdiction
	MachineReadable *bool
	Tags            []string
}

// Matches reports whether a descriptor passes the filter.
func (f Filter) Matches(src feed.SourceDescriptor) bool {
	if f.Category != "" && src.Category != f.Category {
		return false
	}
	if f.Jurisdiction != "" && src.Jurisdiction != f.Jurisdiction {
		return false
	}
	if f.MachineReadable != nil && src.MachineReadable != *f.MachineReadable {
		return false
	}
	for _, tag := range f.Tags {
		if !src.HasTag(tag) {
			return false
		}
	}
	return true
}

// FormatSupport answers whether the pipeline can normalize a stream format.
// Satisfied by the normalizer dispatch table.
type FormatSupport interface {
	Supports(format feed.StreamFormat) bool
}

// Provider returns the ordered set of enabled descriptors to poll. It must
// only return descriptors that are safe to auto-poll; anything it cannot
// guarantee is excluded here, never passed through to fail mid-fetch.
type Provider interface {
	ListSources(ctx context.Context, filter Filter) ([]feed.SourceDescriptor, error)
}

type registryFile struct {
	Sources []feed.SourceDescriptor `yaml:"sources"`
}

// FileProvider serves descriptors from a YAML file loaded and validated
// once at construction.
type FileProvider struct {
	sources []feed.SourceDescriptor
	formats FormatSupport
}

// NewFileProvider loads and validates the registry file.
func NewFileProvider(path string, formats FormatSupport) (*FileProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read registry file %s", path)
	}

	var parsed registryFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrapf(err, "failed to parse registry file %s", path)
	}

	if err := feed.ValidateSources(parsed.Sources); err != nil {
		return nil, errors.Wrap(err, "invalid source registry")
	}

	return &FileProvider{sources: parsed.Sources, formats: formats}, nil
}

// NewStaticProvider wraps an in-memory descriptor list. Used by tests and
// embedded deployments.
func NewStaticProvider(sources []feed.SourceDescriptor, formats FormatSupport) (*FileProvider, error) {
	if err := feed.ValidateSources(sources); err != nil {
		return nil, errors.Wrap(err, "invalid source registry")
	}
	return &FileProvider{sources: sources, formats: formats}, nil
}

// ListSources returns the descriptors matching the filter that are safe to
// auto-poll: open or partial access, machine readable, and a stream format
// the pipeline has a normalizer for.
func (p *FileProvider) ListSources(_ context.Context, filter Filter) ([]feed.SourceDescriptor, error) {
	out := make([]feed.SourceDescriptor, 0, len(p.sources))
	for _, src := range p.sources {
		if !p.pollable(src) {
			continue
		}
		if !filter.Matches(src) {
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

func (p *FileProvider) pollable(src feed.SourceDescriptor) bool {
	if src.Access == feed.AccessInternal {
		return false
	}
	if !src.MachineReadable {
		return false
	}
	return p.formats.Supports(src.Format)
}

// Count returns the number of descriptors the provider holds, pollable or
// not.
func (p *FileProvider) Count() int {
	return len(p.sources)
}

var _ Provider = (*FileProvider)(nil)

// ErrUnavailable marks a cycle-fatal registry failure: the whole request
// fails rather than returning an empty, misleadingly complete result.
var ErrUnavailable = fmt.Errorf("source registry unavailable")
