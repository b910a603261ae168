package bitwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"bwkp-go/internal/bwkp"
)

// DefaultCacheSize bounds the memoized CLI results when none is configured.
const DefaultCacheSize = 64

// CLIClient reads the vault through the Bitwarden CLI (`bw`). Listing
// results and downloaded attachment paths are memoized for the life of the
// client so repeated reads within a run hit the CLI once.
type CLIClient struct {
	runner        Runner
	bwPath        string
	session       string
	attachmentDir string
	cache         *lru.Cache[string, []byte]
	logger        bwkp.Logger
}

var (
	_ bwkp.VaultClient = (*CLIClient)(nil)
	_ bwkp.RawSource   = (*CLIClient)(nil)
)

// NewCLIClient creates a client running bwPath. session is passed to the
// CLI as BW_SESSION when non-empty. Attachments are downloaded below
// attachmentDir.
func NewCLIClient(runner Runner, bwPath, session, attachmentDir string, cacheSize int, logger bwkp.Logger) (*CLIClient, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cli cache: %w", err)
	}
	return &CLIClient{
		runner:        runner,
		bwPath:        bwPath,
		session:       session,
		attachmentDir: attachmentDir,
		cache:         cache,
		logger:        logger,
	}, nil
}

type statusOutput struct {
	Status    bwkp.VaultStatus `json:"status"`
	UserEmail string           `json:"userEmail"`
	ServerURL string           `json:"serverUrl"`
}

// Status is never memoized.
func (c *CLIClient) Status(ctx context.Context) (bwkp.VaultStatus, error) {
	out, err := c.exec(ctx, "status", "--raw")
	if err != nil {
		return "", err
	}
	var st statusOutput
	if err := json.Unmarshal(out, &st); err != nil {
		return "", fmt.Errorf("decoding bw status: %w", err)
	}
	c.logger.Debug("vault status", "status", st.Status, "server", st.ServerURL)
	return st.Status, nil
}

func (c *CLIClient) ListOrganizations(ctx context.Context) ([]*bwkp.Organization, error) {
	return listAs[bwkp.Organization](ctx, c, "organizations")
}

func (c *CLIClient) ListCollections(ctx context.Context) ([]*bwkp.Collection, error) {
	return listAs[bwkp.Collection](ctx, c, "collections")
}

func (c *CLIClient) ListItems(ctx context.Context) ([]*bwkp.Item, error) {
	return listAs[bwkp.Item](ctx, c, "items")
}

func (c *CLIClient) ListFolders(ctx context.Context) ([]*bwkp.Folder, error) {
	return listAs[bwkp.Folder](ctx, c, "folders")
}

// RawListing returns the undecoded output of `bw list <name>`.
func (c *CLIClient) RawListing(ctx context.Context, name string) (json.RawMessage, error) {
	if !slices.Contains(bwkp.RawListings, name) {
		return nil, fmt.Errorf("unknown listing %q", name)
	}
	out, err := c.cached(ctx, "list", name, "--raw")
	if err != nil {
		return nil, err
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("bw list %s returned invalid json", name)
	}
	return json.RawMessage(out), nil
}

// FetchAttachment downloads into <attachmentDir>/<itemID>/<attachmentID>.
// A file already downloaded by this client is reused.
func (c *CLIClient) FetchAttachment(ctx context.Context, itemID, attachmentID string) (string, error) {
	dest := filepath.Join(c.attachmentDir, filepath.Base(itemID), filepath.Base(attachmentID))
	key := "attachment\x00" + dest
	if _, ok := c.cache.Get(key); ok {
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return "", fmt.Errorf("creating attachment directory: %w", err)
	}
	if _, err := c.exec(ctx, "get", "attachment", attachmentID, "--itemid", itemID, "--output", dest); err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("bw did not write attachment %s: %w", attachmentID, err)
	}

	c.cache.Add(key, nil)
	c.logger.Info("attachment downloaded", "item", itemID, "attachment", attachmentID)
	return dest, nil
}

func listAs[T any](ctx context.Context, c *CLIClient, name string) ([]*T, error) {
	raw, err := c.RawListing(ctx, name)
	if err != nil {
		return nil, err
	}
	var out []*T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}
	return out, nil
}

// cached runs args once per client and memoizes stdout.
func (c *CLIClient) cached(ctx context.Context, args ...string) ([]byte, error) {
	key := strings.Join(args, "\x00")
	if out, ok := c.cache.Get(key); ok {
		c.logger.Debug("bw cache hit", "args", key)
		return out, nil
	}
	out, err := c.exec(ctx, args...)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, out)
	return out, nil
}

// exec runs bw. Any stderr output is a failure, even with a zero exit code.
func (c *CLIClient) exec(ctx context.Context, args ...string) ([]byte, error) {
	var env []string
	if c.session != "" {
		env = append(env, "BW_SESSION="+c.session)
	}
	c.logger.Debug("running bw", "args", strings.Join(args, " "))

	stdout, stderr, err := c.runner.Run(ctx, c.bwPath, args, env)
	msg := strings.TrimSpace(string(stderr))
	if err != nil {
		if msg != "" {
			return nil, fmt.Errorf("bw %s: %w: %s", args[0], err, msg)
		}
		return nil, fmt.Errorf("bw %s: %w", args[0], err)
	}
	if msg != "" {
		return nil, fmt.Errorf("bw %s: %s", args[0], msg)
	}
	return bytes.TrimSpace(stdout), nil
}
