package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllowListEntry pairs a permitted extension with its canonical MIME
// type. Several extensions may share one MIME type; each extension maps
// to exactly one MIME type.
type AllowListEntry struct {
	Extension string `yaml:"extension"`
	MIMEType  string `yaml:"mime_type"`
}

// Policy is the table-driven extension/MIME cross-check. It keeps one
// canonical table read in both directions, so the extension→MIME and
// MIME→extensions views can never drift apart.
type Policy struct {
	extToMIME  map[string]string
	mimeToExts map[string][]string
}

// NewPolicy builds a policy from allow-list entries. Extensions are
// normalized to lower case with a leading dot; MIME types to lower case.
// Duplicate extensions and empty fields are rejected.
func NewPolicy(entries ...AllowListEntry) (*Policy, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: allow-list is empty", ErrInvalidPolicy)
	}

	p := &Policy{
		extToMIME:  make(map[string]string, len(entries)),
		mimeToExts: make(map[string][]string),
	}

	for _, e := range entries {
		ext := normalizeExt(e.Extension)
		mime := normalizeMIME(e.MIMEType)
		if ext == "." || ext == "" || mime == "" {
			return nil, fmt.Errorf("%w: entry %q/%q", ErrInvalidPolicy, e.Extension, e.MIMEType)
		}
		if _, dup := p.extToMIME[ext]; dup {
			return nil, fmt.Errorf("%w: duplicate extension %q", ErrInvalidPolicy, ext)
		}
		p.extToMIME[ext] = mime
		p.mimeToExts[mime] = append(p.mimeToExts[mime], ext)
	}

	return p, nil
}

// DefaultPolicy returns the built-in allow-list: common document and
// image formats.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(
		AllowListEntry{".pdf", "application/pdf"},
		AllowListEntry{".doc", "application/msword"},
		AllowListEntry{".docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		AllowListEntry{".txt", "text/plain"},
		AllowListEntry{".jpg", "image/jpeg"},
		AllowListEntry{".jpeg", "image/jpeg"},
		AllowListEntry{".png", "image/png"},
		AllowListEntry{".gif", "image/gif"},
	)
	if err != nil {
		panic(err) // static table, cannot fail
	}
	return p
}

// policyFile is the YAML shape of an external allow-list definition.
type policyFile struct {
	AllowList []AllowListEntry `yaml:"allow_list"`
}

// LoadPolicy reads an allow-list definition from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	return NewPolicy(pf.AllowList...)
}

// CheckExtension verifies the filename's extension is in the allow-list.
// This is the cheap pre-write gate; full validation happens after the
// bytes are on disk.
func (p *Policy) CheckExtension(filename string) error {
	ext := normalizeExt(filepath.Ext(filename))
	if _, ok := p.extToMIME[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}
	return nil
}

// Validate runs the three ordered checks against the original filename
// and the sniffed MIME type, short-circuiting on the first failure:
// extension allowed, MIME type allowed, extension registered for that
// MIME type. The last check catches payloads renamed across formats.
func (p *Policy) Validate(filename, sniffedMIME string) error {
	ext := normalizeExt(filepath.Ext(filename))
	mime := normalizeMIME(sniffedMIME)

	if _, ok := p.extToMIME[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
	}

	exts, ok := p.mimeToExts[mime]
	if !ok {
		return fmt.Errorf("%w: %q", ErrMIMETypeNotAllowed, mime)
	}

	if !slices.Contains(exts, ext) {
		return fmt.Errorf("%w: %q is not registered for %q", ErrExtensionMismatch, ext, mime)
	}

	return nil
}

// AllowedExtensions returns the sorted list of permitted extensions.
func (p *Policy) AllowedExtensions() []string {
	exts := make([]string, 0, len(p.extToMIME))
	for ext := range p.extToMIME {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// AllowedMIMETypes returns the sorted list of permitted MIME types.
func (p *Policy) AllowedMIMETypes() []string {
	mimes := make([]string, 0, len(p.mimeToExts))
	for mime := range p.mimeToExts {
		mimes = append(mimes, mime)
	}
	slices.Sort(mimes)
	return mimes
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(strings.ToLower(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
