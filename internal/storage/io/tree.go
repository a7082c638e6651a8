package io

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/sandpad/sandpad/internal/model"
)

// ignoredDirs are never loaded into a project tree.
var ignoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
}

// LoadTree reads a local project directory into a project tree. Entries are
// sorted by name so the mount order is deterministic.
func LoadTree(fsys fs.FS) (*model.Tree, error) {
	nodes, err := loadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("could not load project tree: %w", err)
	}

	tree := &model.Tree{Nodes: nodes}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("loaded tree is not valid: %w", err)
	}

	return tree, nil
}

func loadDir(fsys fs.FS, dir string) ([]model.Node, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	nodes := make([]model.Node, 0, len(entries))
	for _, e := range entries {
		path := e.Name()
		if dir != "." {
			path = dir + "/" + e.Name()
		}

		if e.IsDir() {
			if ignoredDirs[e.Name()] {
				continue
			}
			children, err := loadDir(fsys, path)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, model.Node{Name: e.Name(), Dir: true, Children: children})
			continue
		}

		content, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		nodes = append(nodes, model.Node{Name: e.Name(), Content: string(content)})
	}

	return nodes, nil
}
