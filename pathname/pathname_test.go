package pathname

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/a/b", Normalize("/a/b"))
	assert.Equal(t, "/a/b", Normalize("/a//b/"))
	assert.Equal(t, "/a/b", Normalize(`\a\b`))
	assert.Equal(t, "/", Normalize("///"))
	assert.Equal(t, "/", Normalize("/"))
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "a", Normalize("a"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("/a/b"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("/a\nb"))
	assert.Error(t, Validate("/a\rb"))
	assert.Error(t, Validate("/a\x00b"))
	assert.Error(t, Validate("/"+strings.Repeat("x", 1100)))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Split("/a/b/c"))
	assert.Equal(t, []string{"a"}, Split("a"))
	assert.Nil(t, Split("/"))
	assert.Equal(t, []string{".", "..", "x"}, Split("/./../x"))
}

func TestParent(t *testing.T) {
	assert.Equal(t, "/", Parent("/"))
	assert.Equal(t, "/", Parent(""))
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/a", Parent("/a/b"))
	assert.Equal(t, "/", Parent("a"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "", Base("/"))
	assert.Equal(t, "a", Base("/a"))
	assert.Equal(t, "b", Base("/a/b"))
	assert.Equal(t, "a", Base("a"))
}
