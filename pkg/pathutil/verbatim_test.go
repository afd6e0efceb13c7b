package pathutil_test

import (
	"testing"

	"github.com/rip-project/rip/pkg/pathutil"
	"github.com/stretchr/testify/assert"
)

func TestStripVerbatim(t *testing.T) {
	cases := map[string]string{
		`\\?\C:\Users\me\notes.txt`: `C:\Users\me\notes.txt`,
		`\\?\UNC\server\share\dir`:  `\\server\share\dir`,
		`\\?\Volume{abc}\x`:         `\\?\Volume{abc}\x`,
		`/home/user/notes.txt`:      `/home/user/notes.txt`,
		`C:\plain`:                  `C:\plain`,
	}
	for in, want := range cases {
		assert.Equal(t, want, pathutil.StripVerbatim(in), in)
	}
}
