package report

import (
	"fmt"
	"strings"
)

// Builder provides a fluent interface for plain-text reports, used when
// output is not a terminal or is captured by scripts.
type Builder struct {
	lines     []string
	separator string
	width     int
}

// NewBuilder creates a new report builder
func NewBuilder() *Builder {
	return &Builder{
		separator: "=",
		width:     40,
	}
}

// WithSeparator sets the separator character
func (rb *Builder) WithSeparator(sep string) *Builder {
	rb.separator = sep
	return rb
}

// WithWidth sets the separator width
func (rb *Builder) WithWidth(width int) *Builder {
	rb.width = width
	return rb
}

// Header adds a header with separator
func (rb *Builder) Header(text string) *Builder {
	rb.lines = append(rb.lines, text, strings.Repeat(rb.separator, rb.width))
	return rb
}

// Section adds a section header
func (rb *Builder) Section(title string) *Builder {
	rb.lines = append(rb.lines, "", title)
	return rb
}

// AddLine adds a single line
func (rb *Builder) AddLine(text string) *Builder {
	rb.lines = append(rb.lines, text)
	return rb
}

// AddKeyValue adds a key-value pair
func (rb *Builder) AddKeyValue(key, value string) *Builder {
	rb.lines = append(rb.lines, fmt.Sprintf("  %s: %s", key, value))
	return rb
}

// AddBullet adds a bulleted line
func (rb *Builder) AddBullet(text string) *Builder {
	rb.lines = append(rb.lines, fmt.Sprintf("  • %s", text))
	return rb
}

// Build returns the built report as a string
func (rb *Builder) Build() string {
	return strings.Join(rb.lines, "\n")
}
