package hierarchy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBrokenHierarchy marks a structurally invalid tree: a non-root user
// without a parent, a path that does not match its depth, or an operation
// that needs a parent the user does not have. Operator misconfiguration,
// never retried automatically.
var ErrBrokenHierarchy = errors.New("broken hierarchy")

var ErrNotDescendant = errors.New("user is not a descendant of the given ancestor")

// Label returns the path label for a user id. The label embeds the id so
// every segment is globally unique and bucket extraction is a pure string
// operation.
func Label(userID uint) string {
	return fmt.Sprintf("u%d", userID)
}

// BuildPath appends a user's own label to its parent's path. A root user has
// an empty parent path and its path is just its own label.
func BuildPath(parentPath string, userID uint) string {
	label := Label(userID)
	if parentPath == "" {
		return label
	}
	return parentPath + "." + label
}

func ParseLabel(label string) (uint, error) {
	if len(label) < 2 || label[0] != 'u' {
		return 0, fmt.Errorf("%w: malformed path label %q", ErrBrokenHierarchy, label)
	}
	id, err := strconv.ParseUint(label[1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed path label %q", ErrBrokenHierarchy, label)
	}
	return uint(id), nil
}

func PathLabels(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// PathDepth is the depth a user at this path must have (root = 0).
func PathDepth(path string) int {
	return len(PathLabels(path)) - 1
}

// IsDescendant reports whether path lies in the subtree rooted at
// ancestorPath, including ancestorPath itself.
func IsDescendant(path, ancestorPath string) bool {
	if ancestorPath == "" || path == "" {
		return false
	}
	return path == ancestorPath || strings.HasPrefix(path, ancestorPath+".")
}

// DirectChildBucket collapses any strict descendant of the ancestor to the
// single direct child of the ancestor that roots its subtree. The ancestor
// itself buckets to itself. Used to report on deep subtrees without ever
// naming users below one hop.
func DirectChildBucket(ancestorID uint, ancestorPath string, leafID uint, leafPath string) (uint, error) {
	if leafID == ancestorID {
		return ancestorID, nil
	}
	if !IsDescendant(leafPath, ancestorPath) {
		return 0, ErrNotDescendant
	}
	labels := PathLabels(leafPath)
	idx := PathDepth(ancestorPath) + 1
	if idx >= len(labels) {
		return 0, ErrNotDescendant
	}
	return ParseLabel(labels[idx])
}
