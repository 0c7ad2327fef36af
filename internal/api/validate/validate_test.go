package validate

import (
	"strings"
	"testing"
)

func TestTitle(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"Weekly Sync", true},
		{"  ", false},
		{"", false},
		{strings.Repeat("x", 201), false},
		{strings.Repeat("x", 200), true},
	}
	for _, c := range cases {
		err := Title(c.in)
		if c.ok && err != nil {
			t.Errorf("Title(%q) unexpected error: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("Title(%q) expected error", c.in)
		}
	}
}

func TestLanguage(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"en", true},
		{"en-US", true},
		{"ja", true},
		{"zh-Hant-TW", true},
		{"", false},
		{"english language", false},
		{"e", false},
	}
	for _, c := range cases {
		err := Language(c.in)
		if c.ok && err != nil {
			t.Errorf("Language(%q) unexpected error: %v", c.in, err)
		}
		if !c.ok && err == nil {
			t.Errorf("Language(%q) expected error", c.in)
		}
	}
}

func TestSegmentText(t *testing.T) {
	if err := SegmentText("hello"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := SegmentText("   "); err == nil {
		t.Error("expected error for blank text")
	}
	if err := SegmentText(strings.Repeat("a", 9001)); err == nil {
		t.Error("expected error for oversized text")
	}
}

func TestProfile(t *testing.T) {
	if err := Profile("u1", "a@b.co", "Alice"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Profile("", "a@b.co", "Alice"); err == nil {
		t.Error("expected error for empty userId")
	}
	if err := Profile("u1", "not-an-email", "Alice"); err == nil {
		t.Error("expected error for bad email")
	}
	if err := Profile("u1", "a@b.co", ""); err == nil {
		t.Error("expected error for empty displayName")
	}
}
