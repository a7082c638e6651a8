package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/sandpad/sandpad/internal/model"
	"github.com/sandpad/sandpad/internal/sandbox"
)

// Mount converts the project tree into a tar archive (the Docker native
// mount format) and copies it into the sandbox workdir in one shot,
// preserving folder nesting and node order.
func (e *Engine) Mount(ctx context.Context, id string, tree model.Tree) error {
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("invalid project tree: %w", err)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	workdir := strings.TrimPrefix(e.workdir(id), "/")
	now := time.Now()

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     workdir + "/",
		Mode:     0755,
		ModTime:  now,
	}); err != nil {
		return fmt.Errorf("could not write workdir header: %w", err)
	}

	if err := writeTreeTar(tw, workdir, tree.Nodes, now); err != nil {
		return fmt.Errorf("could not build mount archive: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("could not finalize mount archive: %w", err)
	}

	err := e.client.CopyToContainer(ctx, e.containerName(id), "/", &buf, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("could not copy mount archive to sandbox %s: %w", id, err)
	}

	e.logger.Debugf("Mounted %d files into sandbox %s", tree.FileCount(), id)
	return nil
}

func writeTreeTar(tw *tar.Writer, parent string, nodes []model.Node, modTime time.Time) error {
	for _, n := range nodes {
		p := path.Join(parent, n.Name)
		if n.Dir {
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     p + "/",
				Mode:     0755,
				ModTime:  modTime,
			}); err != nil {
				return err
			}
			if err := writeTreeTar(tw, p, n.Children, modTime); err != nil {
				return err
			}
			continue
		}

		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     p,
			Mode:     0644,
			Size:     int64(len(n.Content)),
			ModTime:  modTime,
		}); err != nil {
			return err
		}
		if _, err := tw.Write([]byte(n.Content)); err != nil {
			return err
		}
	}

	return nil
}

// WriteFile writes a single file inside the sandbox workdir, creating
// intermediate directories as needed through directory tar headers.
func (e *Engine) WriteFile(ctx context.Context, id string, filePath string, content []byte) error {
	rel := strings.TrimPrefix(filePath, "/")
	if rel == "" {
		return fmt.Errorf("file path is required: %w", model.ErrNotValid)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	workdir := strings.TrimPrefix(e.workdir(id), "/")
	now := time.Now()

	// Intermediate directory headers so nested writes don't need a
	// pre-existing directory.
	dir := path.Dir(rel)
	if dir != "." {
		partial := workdir
		for _, segment := range strings.Split(dir, "/") {
			partial = path.Join(partial, segment)
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     partial + "/",
				Mode:     0755,
				ModTime:  now,
			}); err != nil {
				return fmt.Errorf("could not write directory header for %q: %w", filePath, err)
			}
		}
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     path.Join(workdir, rel),
		Mode:     0644,
		Size:     int64(len(content)),
		ModTime:  now,
	}); err != nil {
		return fmt.Errorf("could not write file header for %q: %w", filePath, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("could not write file content for %q: %w", filePath, err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("could not finalize archive for %q: %w", filePath, err)
	}

	err := e.client.CopyToContainer(ctx, e.containerName(id), "/", &buf, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("could not write file %q to sandbox %s: %w", filePath, id, err)
	}

	return nil
}

// ReadFile reads a file from the sandbox workdir.
func (e *Engine) ReadFile(ctx context.Context, id string, filePath string) ([]byte, error) {
	full := path.Join(e.workdir(id), strings.TrimPrefix(filePath, "/"))

	rc, _, err := e.client.CopyFromContainer(ctx, e.containerName(id), full)
	if err != nil {
		if strings.Contains(err.Error(), "No such container:path") || strings.Contains(err.Error(), "Could not find the file") {
			return nil, fmt.Errorf("file %q in sandbox %s: %w", filePath, id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not read file %q from sandbox %s: %w", filePath, id, err)
	}
	defer rc.Close()

	// Docker returns a tar stream with a single entry.
	tr := tar.NewReader(rc)
	if _, err := tr.Next(); err != nil {
		return nil, fmt.Errorf("could not read archive for %q: %w", filePath, err)
	}

	content, err := io.ReadAll(tr)
	if err != nil {
		return nil, fmt.Errorf("could not read content of %q: %w", filePath, err)
	}

	return content, nil
}

// RemoveFile removes a file from the sandbox workdir. Missing files are
// tolerated (rm -f semantics).
func (e *Engine) RemoveFile(ctx context.Context, id string, filePath string) error {
	full := path.Join(e.workdir(id), strings.TrimPrefix(filePath, "/"))

	proc, err := e.Spawn(ctx, id, []string{"rm", "-f", full}, sandbox.SpawnOpts{})
	if err != nil {
		return fmt.Errorf("could not remove file %q from sandbox %s: %w", filePath, id, err)
	}

	code, err := proc.Wait(ctx)
	if err != nil {
		return fmt.Errorf("could not remove file %q from sandbox %s: %w", filePath, id, err)
	}
	if code != 0 {
		return fmt.Errorf("could not remove file %q from sandbox %s: rm exited with %d", filePath, id, code)
	}

	return nil
}
