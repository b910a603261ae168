package bwkp

import (
	"fmt"
	"strings"
)

// MaxGroupDepth bounds the number of segments in a group path.
const MaxGroupDepth = 64

// SplitGroupPath splits a '/'-delimited group path into its segments.
// Empty segments (leading, trailing or doubled separators) are dropped.
func SplitGroupPath(path string) ([]string, error) {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		return nil, ErrEmptyGroupPath
	}
	if len(segments) > MaxGroupDepth {
		return nil, fmt.Errorf("group path %q has %d segments, max is %d", path, len(segments), MaxGroupDepth)
	}
	return segments, nil
}

// ResolveGroupPath walks path from anchor, reusing child groups whose name
// matches a segment exactly and creating the missing ones. Calling it twice
// with the same anchor and path returns the same group.
func ResolveGroupPath(store Store, anchor *Group, path string) (*Group, error) {
	segments, err := SplitGroupPath(path)
	if err != nil {
		return nil, err
	}

	current := anchor
	for _, name := range segments {
		next := findChild(store, current, name)
		if next == nil {
			next, err = store.AddGroup(current, name)
			if err != nil {
				return nil, fmt.Errorf("creating group %q: %w", name, err)
			}
		}
		current = next
	}
	return current, nil
}

// findChild returns the direct child of parent named name, or nil.
func findChild(store Store, parent *Group, name string) *Group {
	for _, child := range store.Children(parent) {
		if child.Name == name {
			return child
		}
	}
	return nil
}
