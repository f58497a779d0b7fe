package commands

import (
	"testing"

	"github.com/spuro/spuro/entity"
)

func TestParseAttrsTypesByInference(t *testing.T) {
	attrs, err := parseAttrs([]string{
		"name=widget",
		"count=42",
		"active=true",
		"id=str:42",
	})
	if err != nil {
		t.Fatalf("parseAttrs() error: %v", err)
	}

	if s, _ := attrs["name"].Str(); s != "widget" {
		t.Errorf("name = %v, want string widget", attrs["name"])
	}
	if i, ok := attrs["count"].Int(); !ok || i != 42 {
		t.Errorf("count = %v, want int 42", attrs["count"])
	}
	if b, ok := attrs["active"].Bool(); !ok || !b {
		t.Errorf("active = %v, want bool true", attrs["active"])
	}
	if s, ok := attrs["id"].Str(); !ok || s != "42" {
		t.Errorf("id = %v, want forced string \"42\"", attrs["id"])
	}
}

func TestParseAttrsRejectsMalformedPairs(t *testing.T) {
	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseAttrs([]string{bad}); err == nil {
			t.Errorf("parseAttrs(%q) accepted malformed pair", bad)
		}
	}
}

func TestParseAttrsEmptyIsNil(t *testing.T) {
	attrs, err := parseAttrs(nil)
	if err != nil || attrs != nil {
		t.Errorf("parseAttrs(nil) = %v, %v; want nil, nil", attrs, err)
	}
}

func TestShortKeyTruncatesLongKeys(t *testing.T) {
	key, err := entity.MintKey()
	if err != nil {
		t.Fatal(err)
	}
	short := shortKey(string(key))
	if len([]rune(short)) != 15 {
		t.Errorf("shortKey(%q) = %q (%d runes), want 15", key, short, len([]rune(short)))
	}
	if shortKey("0xabc") != "0xabc" {
		t.Errorf("short keys should pass through unchanged")
	}
}

func TestCoerceConfigValue(t *testing.T) {
	if v := coerceConfigValue("9000"); v != int64(9000) {
		t.Errorf("coerceConfigValue(9000) = %v (%T), want int64", v, v)
	}
	if v := coerceConfigValue("true"); v != true {
		t.Errorf("coerceConfigValue(true) = %v, want bool", v)
	}
	if v := coerceConfigValue("hello"); v != "hello" {
		t.Errorf("coerceConfigValue(hello) = %v, want string", v)
	}
}
