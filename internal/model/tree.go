package model

import (
	"fmt"
	"path"
	"strings"
)

// Node is a single entry of a project tree. A node is a folder when Dir is
// set, a file otherwise. Children order is preserved all the way down to the
// sandbox mount.
type Node struct {
	Name     string
	Dir      bool
	Content  string
	Children []Node
}

// Ext returns the file extension of the node name without the leading dot.
func (n Node) Ext() string {
	return strings.TrimPrefix(path.Ext(n.Name), ".")
}

// Tree is the in-memory representation of a project's files and folders.
// It is an immutable input to the mount operation.
type Tree struct {
	Nodes []Node
}

// Validate checks that the tree is mountable.
func (t Tree) Validate() error {
	return validateNodes("", t.Nodes)
}

func validateNodes(parent string, nodes []Node) error {
	for _, n := range nodes {
		p := path.Join(parent, n.Name)
		switch {
		case n.Name == "":
			return fmt.Errorf("node under %q has an empty name: %w", parent, ErrNotValid)
		case strings.Contains(n.Name, "/"):
			return fmt.Errorf("node name %q contains a path separator: %w", n.Name, ErrNotValid)
		case !n.Dir && len(n.Children) > 0:
			return fmt.Errorf("file %q has children: %w", p, ErrNotValid)
		}

		if n.Dir {
			if err := validateNodes(p, n.Children); err != nil {
				return err
			}
		}
	}

	return nil
}

// Walk visits every file of the tree depth-first, preserving node order.
// The visited path is relative to the tree root (e.g. "src/main.js").
func (t Tree) Walk(fn func(path string, node Node) error) error {
	return walkNodes("", t.Nodes, fn)
}

func walkNodes(parent string, nodes []Node, fn func(path string, node Node) error) error {
	for _, n := range nodes {
		p := path.Join(parent, n.Name)
		if n.Dir {
			if err := walkNodes(p, n.Children, fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(p, n); err != nil {
			return err
		}
	}

	return nil
}

// FileCount returns the number of files (non-folders) in the tree.
func (t Tree) FileCount() int {
	count := 0
	_ = t.Walk(func(string, Node) error {
		count++
		return nil
	})
	return count
}

// Lookup returns the content of the file at the given relative path.
func (t Tree) Lookup(filePath string) (string, bool) {
	var content string
	found := false
	_ = t.Walk(func(p string, n Node) error {
		if p == filePath {
			content = n.Content
			found = true
		}
		return nil
	})
	return content, found
}
