// File: sessionbuf/charset.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Charset codecs with configurable malformed/unmappable input handling.
// Only charsets where '\n' is the single byte 0x0A are supported, so line
// boundaries can be located before decoding.

package sessionbuf

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/momentics/hioload-nio/api"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// CodingErrorAction selects how invalid input is treated.
type CodingErrorAction int

const (
	// Report fails the operation with an error.
	Report CodingErrorAction = iota
	// Ignore drops the offending input.
	Ignore
	// Replace substitutes a placeholder.
	Replace
)

func (a CodingErrorAction) String() string {
	switch a {
	case Report:
		return "REPORT"
	case Ignore:
		return "IGNORE"
	case Replace:
		return "REPLACE"
	default:
		return "UNKNOWN"
	}
}

// ParseCodingErrorAction parses "report", "ignore" or "replace".
func ParseCodingErrorAction(s string) (CodingErrorAction, error) {
	switch strings.ToLower(s) {
	case "report":
		return Report, nil
	case "ignore":
		return Ignore, nil
	case "replace":
		return Replace, nil
	}
	return Report, fmt.Errorf("%w: coding error action %q", api.ErrInvalidArgument, s)
}

const (
	decodeReplacement = utf8.RuneError
	encodeReplacement = '?'
)

// Charset converts between bytes and strings. Decode reports invalid byte
// sequences as api.ErrMalformedInput and bytes without a mapping as
// api.ErrUnmappableInput; Encode reports runes without a mapping as
// api.ErrUnmappableInput.
type Charset interface {
	Name() string
	Decode(dst *strings.Builder, src []byte, malformed, unmappable CodingErrorAction) error
	Encode(dst []byte, s string, malformed, unmappable CodingErrorAction) ([]byte, error)
}

// USASCII is the default charset.
var USASCII Charset = asciiCharset{}

// UTF8 decodes and encodes UTF-8.
var UTF8 Charset = utf8Charset{}

// ISO88591 is Latin-1.
var ISO88591 Charset = charmapCharset{name: "ISO-8859-1", cm: charmap.ISO8859_1}

// CharsetByName looks a charset up by its IANA name or alias.
func CharsetByName(name string) (Charset, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "US-ASCII", "ASCII", "ANSI_X3.4-1968", "US":
		return USASCII, nil
	case "UTF-8", "UTF8":
		return UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrUnsupportedCharset, name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	switch e := enc.(type) {
	case *charmap.Charmap:
		return charmapCharset{name: canonical, cm: e}, nil
	}
	if enc == unicode.UTF8 {
		return UTF8, nil
	}
	if !asciiCompatible(enc) {
		return nil, fmt.Errorf("%w: %s is not line compatible", api.ErrUnsupportedCharset, name)
	}
	return encodingCharset{name: canonical, enc: enc}, nil
}

func asciiCompatible(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().Bytes([]byte("\r\n"))
	return err == nil && string(out) == "\r\n"
}

func codingError(kind error, offset int) error {
	return fmt.Errorf("%w at offset %d", kind, offset)
}

// applyDecode resolves one invalid input unit per action.
func applyDecode(dst *strings.Builder, action CodingErrorAction, kind error, offset int) error {
	switch action {
	case Ignore:
		return nil
	case Replace:
		dst.WriteRune(decodeReplacement)
		return nil
	default:
		return codingError(kind, offset)
	}
}

func applyEncode(dst []byte, action CodingErrorAction, kind error, offset int) ([]byte, error) {
	switch action {
	case Ignore:
		return dst, nil
	case Replace:
		return append(dst, encodeReplacement), nil
	default:
		return dst, codingError(kind, offset)
	}
}

type asciiCharset struct{}

func (asciiCharset) Name() string { return "US-ASCII" }

func (asciiCharset) Decode(dst *strings.Builder, src []byte, malformed, _ CodingErrorAction) error {
	dst.Grow(len(src))
	for i, c := range src {
		if c < utf8.RuneSelf {
			dst.WriteByte(c)
			continue
		}
		if err := applyDecode(dst, malformed, api.ErrMalformedInput, i); err != nil {
			return err
		}
	}
	return nil
}

func (asciiCharset) Encode(dst []byte, s string, malformed, unmappable CodingErrorAction) ([]byte, error) {
	var err error
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			dst, err = applyEncode(dst, malformed, api.ErrMalformedInput, i)
		case r >= utf8.RuneSelf:
			dst, err = applyEncode(dst, unmappable, api.ErrUnmappableInput, i)
		default:
			dst = append(dst, byte(r))
		}
		if err != nil {
			return dst, err
		}
		i += size
	}
	return dst, nil
}

type utf8Charset struct{}

func (utf8Charset) Name() string { return "UTF-8" }

func (utf8Charset) Decode(dst *strings.Builder, src []byte, malformed, _ CodingErrorAction) error {
	dst.Grow(len(src))
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size <= 1 {
			if err := applyDecode(dst, malformed, api.ErrMalformedInput, i); err != nil {
				return err
			}
			i++
			continue
		}
		dst.WriteRune(r)
		i += size
	}
	return nil
}

func (utf8Charset) Encode(dst []byte, s string, malformed, _ CodingErrorAction) ([]byte, error) {
	if utf8.ValidString(s) {
		return append(dst, s...), nil
	}
	var err error
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			if dst, err = applyEncode(dst, malformed, api.ErrMalformedInput, i); err != nil {
				return dst, err
			}
		} else {
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return dst, nil
}

// charmapCharset covers the single-byte charsets of x/text/encoding/charmap.
type charmapCharset struct {
	name string
	cm   *charmap.Charmap
}

func (c charmapCharset) Name() string { return c.name }

func (c charmapCharset) Decode(dst *strings.Builder, src []byte, _, unmappable CodingErrorAction) error {
	dst.Grow(len(src))
	for i, b := range src {
		r := c.cm.DecodeByte(b)
		if r == utf8.RuneError {
			if err := applyDecode(dst, unmappable, api.ErrUnmappableInput, i); err != nil {
				return err
			}
			continue
		}
		dst.WriteRune(r)
	}
	return nil
}

func (c charmapCharset) Encode(dst []byte, s string, malformed, unmappable CodingErrorAction) ([]byte, error) {
	var err error
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst, err = applyEncode(dst, malformed, api.ErrMalformedInput, i)
		} else if b, ok := c.cm.EncodeRune(r); ok {
			dst = append(dst, b)
		} else {
			dst, err = applyEncode(dst, unmappable, api.ErrUnmappableInput, i)
		}
		if err != nil {
			return dst, err
		}
		i += size
	}
	return dst, nil
}

// encodingCharset adapts any other ASCII compatible x/text encoding. The
// x/text decoders substitute U+FFFD for invalid input; since the source is
// not UTF-8 every substitution marks malformed input.
type encodingCharset struct {
	name string
	enc  encoding.Encoding
}

func (c encodingCharset) Name() string { return c.name }

func (c encodingCharset) Decode(dst *strings.Builder, src []byte, malformed, _ CodingErrorAction) error {
	out, err := c.enc.NewDecoder().Bytes(src)
	if err != nil {
		return codingError(api.ErrMalformedInput, 0)
	}
	dst.Grow(len(out))
	for i := 0; i < len(out); {
		r, size := utf8.DecodeRune(out[i:])
		if r == utf8.RuneError {
			if err := applyDecode(dst, malformed, api.ErrMalformedInput, i); err != nil {
				return err
			}
		} else {
			dst.WriteRune(r)
		}
		i += size
	}
	return nil
}

func (c encodingCharset) Encode(dst []byte, s string, malformed, unmappable CodingErrorAction) ([]byte, error) {
	enc := c.enc.NewEncoder()
	var err error
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst, err = applyEncode(dst, malformed, api.ErrMalformedInput, i)
		} else if b, encErr := enc.Bytes([]byte(s[i : i+size])); encErr == nil {
			dst = append(dst, b...)
		} else {
			enc.Reset()
			dst, err = applyEncode(dst, unmappable, api.ErrUnmappableInput, i)
		}
		if err != nil {
			return dst, err
		}
		i += size
	}
	return dst, nil
}
