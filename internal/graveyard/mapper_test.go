package graveyard_test

import (
	"path/filepath"
	"testing"

	"github.com/rip-project/rip/internal/graveyard"
	"github.com/stretchr/testify/assert"
)

func TestJoinAbsolute(t *testing.T) {
	root := filepath.FromSlash("/g")
	assert.Equal(t, filepath.FromSlash("/g/home/u/x.txt"), graveyard.JoinAbsolute(root, filepath.FromSlash("/home/u/x.txt")))
	assert.Equal(t, filepath.FromSlash("/g/x"), graveyard.JoinAbsolute(root, filepath.FromSlash("//x")))
}

func TestVolumeComponent(t *testing.T) {
	assert.Equal(t, "", graveyard.VolumeComponent(""))
	assert.Equal(t, "C", graveyard.VolumeComponent("C:"))
	assert.Equal(t, "UNC/srv/share", graveyard.VolumeComponent(`\\srv\share`))
	assert.Equal(t, "UNC/srv/share", graveyard.VolumeComponent(`\\?\UNC\srv\share`))
}

func TestDisambiguate(t *testing.T) {
	taken := map[string]bool{"/g/x": true, "/g/x~1": true, "/g/x~3": true}
	isTaken := func(p string) bool { return taken[p] }

	assert.Equal(t, "/g/y", graveyard.Disambiguate("/g/y", isTaken))
	assert.Equal(t, "/g/x~2", graveyard.Disambiguate("/g/x", isTaken))

	taken["/g/x~2"] = true
	assert.Equal(t, "/g/x~4", graveyard.Disambiguate("/g/x", isTaken))
}

func TestDisambiguate_Deterministic(t *testing.T) {
	taken := func(p string) bool { return p == "/g/a" }
	for i := 0; i < 5; i++ {
		assert.Equal(t, "/g/a~1", graveyard.Disambiguate("/g/a", taken))
	}
}
