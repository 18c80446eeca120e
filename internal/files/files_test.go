package files

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePorcelain(t *testing.T) {
	out := " M src/app.ts\n" +
		"M  internal/db.go\n" +
		"A  new_file.go\n" +
		"?? untracked.txt\n" +
		" D deleted.go\n" +
		"R  old.go -> renamed.go\n" +
		"MM both.go"

	paths := parsePorcelain(out)
	assert.Equal(t, []string{
		"src/app.ts",
		"internal/db.go",
		"new_file.go",
		"renamed.go",
		"both.go",
	}, paths)
}

func TestParsePorcelain_Empty(t *testing.T) {
	assert.Nil(t, parsePorcelain(""))
}

func TestParsePorcelain_QuotedPath(t *testing.T) {
	paths := parsePorcelain(` M "file with space.go"`)
	assert.Equal(t, []string{"file with space.go"}, paths)
}

func TestIsChanged(t *testing.T) {
	assert.True(t, isChanged('M'))
	assert.True(t, isChanged('A'))
	assert.True(t, isChanged('R'))
	assert.False(t, isChanged('?'))
	assert.False(t, isChanged('D'))
	assert.False(t, isChanged(' '))
}
