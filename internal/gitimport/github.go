// Package gitimport imports a project tree from a GitHub repository using
// the contents API, so a workspace can be seeded from an existing repo.
package gitimport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/model"
)

const (
	defaultGitHubAPIBase = "https://api.github.com"

	// maxBlobBytes is the largest file fetched during import. Bigger blobs
	// are almost always build artifacts or media and get skipped.
	maxBlobBytes = 512 * 1024
)

// skippedDirs are never walked.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"dist":         true,
	"build":        true,
}

// skippedExts are binary or media extensions not worth importing into an
// editable project tree.
var skippedExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".zip": true, ".gz": true, ".tar": true, ".tgz": true,
	".pdf": true, ".mp3": true, ".mp4": true, ".webm": true,
	".wasm": true, ".exe": true, ".bin": true, ".so": true,
}

// GitHubImporterConfig configures the GitHub-backed importer.
type GitHubImporterConfig struct {
	// Token is an optional GitHub API token for private repos and higher
	// rate limits.
	Token string
	// HTTPClient is the HTTP client for API requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *GitHubImporterConfig) defaults() error {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "gitimport.GitHubImporter"})
	return nil
}

// GitHubImporter imports project trees from GitHub repositories.
type GitHubImporter struct {
	token      string
	httpClient *http.Client
	logger     log.Logger

	// Base URL (overridable for testing).
	apiBaseURL string
}

// NewGitHubImporter creates a new GitHub-backed importer.
func NewGitHubImporter(cfg GitHubImporterConfig) (*GitHubImporter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &GitHubImporter{
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		apiBaseURL: defaultGitHubAPIBase,
	}, nil
}

// NewGitHubImporterWithBaseURL creates an importer with a custom API base URL (for testing).
func NewGitHubImporterWithBaseURL(cfg GitHubImporterConfig, apiBaseURL string) (*GitHubImporter, error) {
	i, err := NewGitHubImporter(cfg)
	if err != nil {
		return nil, err
	}
	i.apiBaseURL = apiBaseURL
	return i, nil
}

// --- JSON wire types (private, GitHub contents API) ---

type ghContentEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

// Import fetches the repository tree at the given ref (empty means the
// default branch) and returns it as a project tree. Repo is "owner/name".
func (g *GitHubImporter) Import(ctx context.Context, repo, ref string) (*model.Tree, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if ok {
		// Tolerate a trailing path segment (e.g. a full URL suffix).
		name = strings.TrimSuffix(name, "/")
	}
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: repository must be in owner/name format: %q", model.ErrNotValid, repo)
	}

	nodes, err := g.walk(ctx, owner, name, "", ref)
	if err != nil {
		return nil, fmt.Errorf("could not import %s: %w", repo, err)
	}

	tree := &model.Tree{Nodes: nodes}
	if err := tree.Validate(); err != nil {
		return nil, fmt.Errorf("imported tree is not valid: %w", err)
	}

	if err := g.checkManifest(tree); err != nil {
		return nil, err
	}

	g.logger.WithValues(log.Kv{"repo": repo, "files": tree.FileCount()}).Infof("Project imported")

	return tree, nil
}

// walk lists one directory level and recurses into subdirectories,
// preserving the API's entry order.
func (g *GitHubImporter) walk(ctx context.Context, owner, name, path, ref string) ([]model.Node, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.apiBaseURL, owner, name, path)
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}

	data, err := g.httpGet(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", path, err)
	}

	var entries []ghContentEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing contents of %q: %w", path, err)
	}

	nodes := make([]model.Node, 0, len(entries))
	for _, e := range entries {
		switch e.Type {
		case "dir":
			if skippedDirs[e.Name] {
				continue
			}
			children, err := g.walk(ctx, owner, name, e.Path, ref)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, model.Node{Name: e.Name, Dir: true, Children: children})
		case "file":
			if g.skipFile(e) {
				continue
			}
			content, err := g.httpGet(ctx, e.DownloadURL)
			if err != nil {
				return nil, fmt.Errorf("downloading %q: %w", e.Path, err)
			}
			nodes = append(nodes, model.Node{Name: e.Name, Content: string(content)})
		default:
			// Symlinks and submodules are not importable.
			g.logger.WithValues(log.Kv{"path": e.Path, "type": e.Type}).Debugf("Skipping unsupported entry")
		}
	}

	return nodes, nil
}

func (g *GitHubImporter) skipFile(e ghContentEntry) bool {
	if e.Size > maxBlobBytes {
		g.logger.WithValues(log.Kv{"path": e.Path, "size": e.Size}).Warningf("Skipping oversized file")
		return true
	}

	ext := ""
	if idx := strings.LastIndex(e.Name, "."); idx >= 0 {
		ext = strings.ToLower(e.Name[idx:])
	}
	if skippedExts[ext] {
		g.logger.WithValues(log.Kv{"path": e.Path}).Debugf("Skipping binary file")
		return true
	}

	return false
}

// checkManifest validates the root package manifest when present. A broken
// manifest would fail every later setup stage, better to reject it here.
func (g *GitHubImporter) checkManifest(tree *model.Tree) error {
	for _, n := range tree.Nodes {
		if n.Dir || n.Name != conventions.ManifestFile {
			continue
		}
		var v map[string]any
		if err := json.Unmarshal([]byte(n.Content), &v); err != nil {
			return fmt.Errorf("repository %s is not valid JSON: %w", conventions.ManifestFile, err)
		}
		return nil
	}

	g.logger.Warningf("Repository has no %s, setup will run without install and dev server", conventions.ManifestFile)
	return nil
}

func (g *GitHubImporter) httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: HTTP 404 from %s", model.ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}
