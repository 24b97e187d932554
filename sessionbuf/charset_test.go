package sessionbuf

import (
	"errors"
	"strings"
	"testing"

	"github.com/momentics/hioload-nio/api"
)

func TestCharsetByName(t *testing.T) {
	for name, want := range map[string]string{
		"":         "US-ASCII",
		"us-ascii": "US-ASCII",
		"utf-8":    "UTF-8",
	} {
		cs, err := CharsetByName(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if cs.Name() != want {
			t.Errorf("%q resolved to %s", name, cs.Name())
		}
	}
	for _, name := range []string{"ISO-8859-1", "windows-1252", "KOI8-R"} {
		cs, err := CharsetByName(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if _, ok := cs.(charmapCharset); !ok {
			t.Errorf("%s: expected a single-byte charset, got %T", name, cs)
		}
	}
	if _, err := CharsetByName("x-no-such-charset"); !errors.Is(err, api.ErrUnsupportedCharset) {
		t.Errorf("unknown charset: %v", err)
	}
	if _, err := CharsetByName("UTF-16"); !errors.Is(err, api.ErrUnsupportedCharset) {
		t.Errorf("UTF-16 must be rejected, got %v", err)
	}
}

func TestUnmappableOutputPolicies(t *testing.T) {
	out := NewOutputBuffer(0)
	if err := out.WriteLine("café"); !errors.Is(err, api.ErrUnmappableInput) {
		t.Fatalf("REPORT: %v", err)
	}
	if out.HasData() {
		t.Fatal("rejected line must not be buffered")
	}

	out = NewOutputBuffer(0, WithUnmappableInputAction(Replace))
	out.WriteLine("café")
	if got := string(out.bytes()); got != "caf?\r\n" {
		t.Errorf("REPLACE = %q", got)
	}

	out = NewOutputBuffer(0, WithUnmappableInputAction(Ignore))
	out.WriteLine("café")
	if got := string(out.bytes()); got != "caf\r\n" {
		t.Errorf("IGNORE = %q", got)
	}

	out = NewOutputBuffer(0, WithCharset(ISO88591))
	out.WriteLine("café")
	if got := out.bytes(); string(got) != "caf\xe9\r\n" {
		t.Errorf("Latin-1 = %q", got)
	}
}

func TestLatin1Decode(t *testing.T) {
	var sb strings.Builder
	if err := ISO88591.Decode(&sb, []byte("caf\xe9"), Report, Report); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "café" {
		t.Errorf("got %q", sb.String())
	}
}

func TestMultiByteCharset(t *testing.T) {
	cs, err := CharsetByName("Shift_JIS")
	if err != nil {
		t.Fatalf("Shift_JIS: %v", err)
	}
	var sb strings.Builder
	if err := cs.Decode(&sb, []byte{0x82, 0xa0}, Report, Report); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "あ" {
		t.Errorf("decoded %q", sb.String())
	}
	enc, err := cs.Encode(nil, "あ", Report, Report)
	if err != nil || string(enc) != "\x82\xa0" {
		t.Errorf("encoded %x %v", enc, err)
	}
}

func TestParseCodingErrorAction(t *testing.T) {
	if a, err := ParseCodingErrorAction("Replace"); err != nil || a != Replace {
		t.Errorf("got %v %v", a, err)
	}
	if _, err := ParseCodingErrorAction("drop"); !errors.Is(err, api.ErrInvalidArgument) {
		t.Errorf("got %v", err)
	}
}
