package io_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandpad/sandpad/internal/model"
	storageio "github.com/sandpad/sandpad/internal/storage/io"
)

func TestGetRuntimeConfig(t *testing.T) {
	tests := map[string]struct {
		config    string
		expConfig model.RuntimeConfig
		expErr    bool
	}{
		"A full config should load every field": {
			config: `
image: node:20-alpine
workdir: /srv/app
env:
  NODE_ENV: development
preview_ports: [3000, 8080]
resources:
  vcpus: 2
  memory_mb: 2048
`,
			expConfig: model.RuntimeConfig{
				Image:        "node:20-alpine",
				Workdir:      "/srv/app",
				Env:          map[string]string{"NODE_ENV": "development"},
				PreviewPorts: []int{3000, 8080},
				Resources:    model.Resources{VCPUs: 2, MemoryMB: 2048},
			},
		},

		"Missing fields should fall back to the defaults": {
			config: `env: {NODE_ENV: test}`,
			expConfig: model.RuntimeConfig{
				Image:        "node:22-alpine",
				Workdir:      "/app",
				Env:          map[string]string{"NODE_ENV": "test"},
				PreviewPorts: []int{3000, 5173, 8080, 4321},
			},
		},

		"An empty file should load the full defaults": {
			config: ``,
			expConfig: model.RuntimeConfig{
				Image:        "node:22-alpine",
				Workdir:      "/app",
				PreviewPorts: []int{3000, 5173, 8080, 4321},
			},
		},

		"Invalid YAML should fail": {
			config: `image: [`,
			expErr: true,
		},

		"An invalid port should fail validation": {
			config: `preview_ports: [70000]`,
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"sandpad.yaml": &fstest.MapFile{Data: []byte(test.config)},
			}

			repo := storageio.NewRuntimeYAMLRepository(fsys)
			got, err := repo.GetRuntimeConfig(context.Background(), "sandpad.yaml")

			if test.expErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expConfig, got)
		})
	}
}

func TestGetRuntimeConfigMissingFile(t *testing.T) {
	repo := storageio.NewRuntimeYAMLRepository(fstest.MapFS{})
	_, err := repo.GetRuntimeConfig(context.Background(), "missing.yaml")
	require.Error(t, err)
}

func TestDefaultRuntimeConfig(t *testing.T) {
	assert := assert.New(t)

	cfg := storageio.DefaultRuntimeConfig()
	assert.Equal("node:22-alpine", cfg.Image)
	assert.Equal("/app", cfg.Workdir)
	assert.NotEmpty(cfg.PreviewPorts)
	assert.NoError(cfg.Validate())
}

func TestLoadTree(t *testing.T) {
	assert := assert.New(t)

	fsys := fstest.MapFS{
		"package.json":              &fstest.MapFile{Data: []byte(`{"name": "app"}`)},
		"src/index.js":              &fstest.MapFile{Data: []byte("console.log(42)")},
		"src/lib/util.js":           &fstest.MapFile{Data: []byte("export {}")},
		"node_modules/left-pad/i.j": &fstest.MapFile{Data: []byte("ignored")},
		".git/HEAD":                 &fstest.MapFile{Data: []byte("ignored")},
		"dist/bundle.js":            &fstest.MapFile{Data: []byte("ignored")},
	}

	tree, err := storageio.LoadTree(fsys)
	require.NoError(t, err)

	var paths []string
	err = tree.Walk(func(p string, n model.Node) error {
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)

	// Sorted, with ignored directories dropped.
	assert.Equal([]string{
		"package.json",
		"src/index.js",
		"src/lib/util.js",
	}, paths)

	content, ok := tree.Lookup("src/index.js")
	assert.True(ok)
	assert.Equal("console.log(42)", content)
}

func TestLoadTreeEmptyDir(t *testing.T) {
	tree, err := storageio.LoadTree(fstest.MapFS{})
	require.NoError(t, err)
	assert.Equal(t, 0, tree.FileCount())
}
