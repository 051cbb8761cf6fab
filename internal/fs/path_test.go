package fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	assert.Equal(t, "b.txt", Filename("/a/b.txt"))
	assert.Equal(t, "b", Filename("b"))
	assert.Equal(t, "", Filename("/"))
	assert.Equal(t, "", Filename("/a/"))
}

func TestDirectoryName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/b", "/a"},
		{"/a", "/"},
		{"a/b", "a"},
		{"a", ""},
		{"/a/b/c.txt", "/a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DirectoryName(tt.path), "DirectoryName(%q)", tt.path)
	}
}

func TestParts(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Parts("/a//b/"))
	assert.Empty(t, Parts("/"))
	assert.Empty(t, Parts(""))
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base     string
		segments []string
		want     string
	}{
		{"/a/b", []string{"..", "c"}, "/a/c"},
		{"/a", []string{".", "b"}, "/a/b"},
		{"/", []string{"src"}, "/src"},
		{"/a", []string{"b/../c"}, "/a/c"},
		{"a", []string{"b/c"}, "a/b/c"},
		{"/", []string{".."}, "/"},
		{"/a/b", []string{"..", "..", ".."}, "/"},
		{"/", nil, "/"},
		{"", []string{"x"}, "x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, JoinPath(tt.base, tt.segments...), "JoinPath(%q, %q)", tt.base, tt.segments)
	}
}

type fakePather string

func (p fakePather) Path() string { return string(p) }

func TestJoinItemPath(t *testing.T) {
	assert.Equal(t, "/src/main.go", JoinItemPath(fakePather("/src"), "main.go"))
	assert.Equal(t, "/main.go", JoinItemPath(fakePather("/"), "main.go"))
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("a.txt"))
	for _, name := range []string{"", ".", "..", "a/b"} {
		assert.False(t, IsValidName(name), name)
	}
}
