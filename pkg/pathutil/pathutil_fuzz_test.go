package pathutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rip-project/rip/pkg/pathutil"
)

func FuzzNormalizeSelector(f *testing.F) {
	f.Add("")
	f.Add("/home/u/./x/../y")
	f.Add("cafe\u0301")
	f.Add("//a//b/")

	f.Fuzz(func(t *testing.T, s string) {
		if !utf8.ValidString(s) {
			t.Skip()
		}
		once := pathutil.NormalizeSelector(s)
		if twice := pathutil.NormalizeSelector(once); twice != once {
			t.Fatalf("not idempotent: %q -> %q -> %q", s, once, twice)
		}
		if !pathutil.Equal(s, once) {
			t.Fatalf("Equal(%q, %q) is false", s, once)
		}
	})
}

func FuzzStripVerbatim(f *testing.F) {
	f.Add(`\\?\C:\dir`)
	f.Add(`\\?\UNC\srv\share`)
	f.Add(`\\?\`)
	f.Add("/plain")

	f.Fuzz(func(t *testing.T, p string) {
		got := pathutil.StripVerbatim(p)
		if len(got) > len(p) {
			t.Fatalf("StripVerbatim(%q) grew to %q", p, got)
		}
		if !strings.HasPrefix(p, `\\?\`) && got != p {
			t.Fatalf("StripVerbatim changed non-verbatim path %q to %q", p, got)
		}
	})
}
