package util

import (
	"regexp"
	"strings"
	"testing"
)

var v4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestGenerateUUID_Format(t *testing.T) {
	u := GenerateUUID()
	if !v4.MatchString(u) {
		t.Fatalf("UUID %s does not match v4 format", u)
	}
	if u == GenerateUUID() {
		t.Fatal("expected distinct UUIDs")
	}
}

func TestNewReference(t *testing.T) {
	ref := NewReference("order")
	if !strings.HasPrefix(ref, "order-") || !v4.MatchString(strings.TrimPrefix(ref, "order-")) {
		t.Fatalf("unexpected reference %q", ref)
	}
	if !v4.MatchString(NewReference("")) {
		t.Fatal("empty prefix should yield a bare UUID")
	}
}
