// File: sessionbuf/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sessionbuf

// DefaultBufferSize is used when a non-positive size is requested.
const DefaultBufferSize = 8 * 1024

// Option configures a session buffer.
type Option func(*codecConfig)

type codecConfig struct {
	charset    Charset
	malformed  CodingErrorAction
	unmappable CodingErrorAction
	maxLine    int
	minChunk   int
}

func newCodecConfig(opts []Option) codecConfig {
	c := codecConfig{
		charset:    USASCII,
		malformed:  Report,
		unmappable: Report,
		minChunk:   512,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.charset == nil {
		c.charset = USASCII
	}
	return c
}

// WithCharset selects the line charset (US-ASCII by default).
func WithCharset(cs Charset) Option {
	return func(c *codecConfig) { c.charset = cs }
}

// WithMalformedInputAction sets the policy for invalid byte sequences.
func WithMalformedInputAction(a CodingErrorAction) Option {
	return func(c *codecConfig) { c.malformed = a }
}

// WithUnmappableInputAction sets the policy for input without a mapping.
func WithUnmappableInputAction(a CodingErrorAction) Option {
	return func(c *codecConfig) { c.unmappable = a }
}

// WithCodingErrorAction sets both policies at once.
func WithCodingErrorAction(a CodingErrorAction) Option {
	return func(c *codecConfig) {
		c.malformed = a
		c.unmappable = a
	}
}

// WithMaxLineLength limits decoded line length in bytes. Zero disables
// the limit.
func WithMaxLineLength(n int) Option {
	return func(c *codecConfig) {
		if n >= 0 {
			c.maxLine = n
		}
	}
}

// WithMinChunk sets the minimum free space reserved before each Fill.
func WithMinChunk(n int) Option {
	return func(c *codecConfig) {
		if n > 0 {
			c.minChunk = n
		}
	}
}
