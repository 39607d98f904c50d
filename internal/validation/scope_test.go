package validation

import (
	"reflect"
	"strings"
	"testing"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"read",
		"patients:read",
		"dose.calc_v2-beta",
		"a" + strings.Repeat("b", 62) + "c", // 64
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",
		":lead",
		"trail:",
		"bad space",
		"UPPER",
		"semicolon;hack",
		strings.Repeat("a", 65),
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestParseScope(t *testing.T) {
	cases := map[string][]string{
		"":                nil,
		"   ":             nil,
		"read":            {"read"},
		" read  write ":   {"read", "write"},
		"read write read": {"read", "write"},
	}
	for in, want := range cases {
		if got := ParseScope(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseScope(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsSubset(t *testing.T) {
	allowed := []string{"read", "write"}
	if !IsSubset(nil, allowed) {
		t.Fatal("empty must be subset")
	}
	if !IsSubset([]string{"write", "read"}, allowed) {
		t.Fatal("expected subset")
	}
	if IsSubset([]string{"read", "admin"}, allowed) {
		t.Fatal("admin not allowed")
	}
	if IsSubset([]string{"read"}, nil) {
		t.Fatal("nothing is allowed")
	}
}
