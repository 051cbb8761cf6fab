package fs

import "strings"

// Root is the path of a sandboxed workspace root.
const Root = "/"

// Filename returns the part of path after the last "/".
func Filename(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

// DirectoryName returns the part of path before the last "/". A depth-one
// absolute path yields the root "/" rather than "".
func DirectoryName(path string) string {
	i := strings.LastIndexByte(path, '/')
	switch {
	case i < 0:
		return ""
	case i == 0:
		return Root
	}
	return path[:i]
}

// Parts splits path on "/" and drops empty segments.
func Parts(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// JoinPath appends segments to base, resolving "." and ".." left to right.
// Segments may themselves contain "/". A ".." that would climb above the
// start of base is dropped, so absolute paths never escape "/".
func JoinPath(base string, segments ...string) string {
	var out []string
	push := func(s string) {
		for _, part := range Parts(s) {
			switch part {
			case ".":
			case "..":
				if len(out) > 0 {
					out = out[:len(out)-1]
				}
			default:
				out = append(out, part)
			}
		}
	}
	push(base)
	for _, s := range segments {
		push(s)
	}

	joined := strings.Join(out, "/")
	if strings.HasPrefix(base, "/") {
		return "/" + joined
	}
	return joined
}

// IsValidName reports whether name can address a single directory entry.
func IsValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// Pather is anything that knows its own absolute path, such as a tree node.
type Pather interface {
	Path() string
}

// JoinItemPath is JoinPath with the base taken from item's path.
func JoinItemPath(item Pather, segments ...string) string {
	return JoinPath(item.Path(), segments...)
}
