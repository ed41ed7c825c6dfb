package version

import (
	"regexp"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if !regexp.MustCompile(`^\d+\.\d+\.\d+$`).MatchString(v) {
		t.Errorf("Get() = %q, want a semantic version", v)
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "quoteflow "+Get()+" (go") {
		t.Errorf("String() = %q", s)
	}
}
