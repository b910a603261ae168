package bitwarden

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bwkp-go/internal/bwkp"
)

type call struct {
	args []string
	env  []string
}

// fakeRunner answers bw invocations from a table keyed by joined args.
type fakeRunner struct {
	mu      sync.Mutex
	stdout  map[string]string
	stderr  map[string]string
	fail    map[string]error
	calls   []call
	onWrite func(args []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{stdout: map[string]string{}, stderr: map[string]string{}, fail: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, _ string, args []string, env []string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{args: args, env: env})
	key := strings.Join(args, " ")
	if f.onWrite != nil {
		f.onWrite(args)
	}
	return []byte(f.stdout[key]), []byte(f.stderr[key]), f.fail[key]
}

func (f *fakeRunner) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(strings.Join(c.args, " "), prefix) {
			n++
		}
	}
	return n
}

func newTestCLI(t *testing.T, r *fakeRunner) *CLIClient {
	t.Helper()
	c, err := NewCLIClient(r, "bw", "sess-1", t.TempDir(), 8, bwkp.NewNopLogger())
	if err != nil {
		t.Fatalf("NewCLIClient() error = %v", err)
	}
	return c
}

func TestCLIClient_Status(t *testing.T) {
	r := newFakeRunner()
	r.stdout["status --raw"] = `{"serverUrl":"https://vault.example.com","status":"unlocked"}`
	c := newTestCLI(t, r)

	got, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if got != bwkp.StatusUnlocked {
		t.Errorf("Status() = %q, want unlocked", got)
	}

	c.Status(context.Background())
	if n := r.count("status"); n != 2 {
		t.Errorf("bw status ran %d times, want 2 (never cached)", n)
	}
	if env := r.calls[0].env; len(env) != 1 || env[0] != "BW_SESSION=sess-1" {
		t.Errorf("env = %v, want [BW_SESSION=sess-1]", env)
	}
}

func TestCLIClient_Lists(t *testing.T) {
	r := newFakeRunner()
	r.stdout["list organizations --raw"] = `[{"id":"org1","name":"Acme"}]`
	r.stdout["list collections --raw"] = `[{"id":"c1","organizationId":"org1","name":"Eng/Infra"}]`
	r.stdout["list folders --raw"] = `[{"id":"f1","name":"Personal"},{"id":null,"name":"No Folder"}]`
	r.stdout["list items --raw"] = `[{"id":"i1","name":"mail","login":{"username":"alice","uris":[{"match":null,"uri":"https://mail"}]}}]`
	c := newTestCLI(t, r)
	ctx := context.Background()

	orgs, err := c.ListOrganizations(ctx)
	if err != nil || len(orgs) != 1 || orgs[0].Name != "Acme" {
		t.Fatalf("ListOrganizations() = %v, %v", orgs, err)
	}
	cols, err := c.ListCollections(ctx)
	if err != nil || len(cols) != 1 || cols[0].Name != "Eng/Infra" {
		t.Fatalf("ListCollections() = %v, %v", cols, err)
	}
	folders, err := c.ListFolders(ctx)
	if err != nil || len(folders) != 2 || folders[1].ID != nil {
		t.Fatalf("ListFolders() = %v, %v", folders, err)
	}
	items, err := c.ListItems(ctx)
	if err != nil || len(items) != 1 || *items[0].Login.Username != "alice" {
		t.Fatalf("ListItems() = %v, %v", items, err)
	}

	c.ListItems(ctx)
	if _, err := c.RawListing(ctx, "items"); err != nil {
		t.Fatalf("RawListing() error = %v", err)
	}
	if n := r.count("list items"); n != 1 {
		t.Errorf("bw list items ran %d times, want 1", n)
	}
}

func TestCLIClient_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("stderr output is failure", func(t *testing.T) {
		r := newFakeRunner()
		r.stdout["list items --raw"] = `[]`
		r.stderr["list items --raw"] = "You are not logged in."
		_, err := newTestCLI(t, r).ListItems(ctx)
		if err == nil || !strings.Contains(err.Error(), "not logged in") {
			t.Errorf("ListItems() error = %v, want stderr message", err)
		}
	})

	t.Run("exit error", func(t *testing.T) {
		r := newFakeRunner()
		r.fail["status --raw"] = errors.New("exit status 1")
		if _, err := newTestCLI(t, r).Status(ctx); err == nil {
			t.Error("Status() expected error")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		r := newFakeRunner()
		r.stdout["list folders --raw"] = `not json`
		if _, err := newTestCLI(t, r).ListFolders(ctx); err == nil {
			t.Error("ListFolders() expected error")
		}
	})

	t.Run("unknown listing", func(t *testing.T) {
		if _, err := newTestCLI(t, newFakeRunner()).RawListing(ctx, "sends"); err == nil {
			t.Error("RawListing(sends) expected error")
		}
	})

	t.Run("failure is not cached", func(t *testing.T) {
		r := newFakeRunner()
		r.stderr["list items --raw"] = "Vault is locked."
		c := newTestCLI(t, r)
		c.ListItems(ctx)
		delete(r.stderr, "list items --raw")
		r.stdout["list items --raw"] = `[]`
		if _, err := c.ListItems(ctx); err != nil {
			t.Errorf("ListItems() after recovery error = %v", err)
		}
	})
}

func TestCLIClient_FetchAttachment(t *testing.T) {
	r := newFakeRunner()
	r.onWrite = func(args []string) {
		if args[0] == "get" {
			out := args[len(args)-1]
			os.WriteFile(out, []byte("file content"), 0600)
		}
	}
	c := newTestCLI(t, r)
	ctx := context.Background()

	path, err := c.FetchAttachment(ctx, "i1", "a1")
	if err != nil {
		t.Fatalf("FetchAttachment() error = %v", err)
	}
	if filepath.Base(path) != "a1" || filepath.Base(filepath.Dir(path)) != "i1" {
		t.Errorf("FetchAttachment() path = %q, want .../i1/a1", path)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "file content" {
		t.Errorf("attachment content = %q", data)
	}

	if _, err := c.FetchAttachment(ctx, "i1", "a1"); err != nil {
		t.Fatalf("second FetchAttachment() error = %v", err)
	}
	if n := r.count("get attachment"); n != 1 {
		t.Errorf("bw get attachment ran %d times, want 1", n)
	}

	want := "get attachment a1 --itemid i1 --output " + path
	if got := strings.Join(r.calls[0].args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestCLIClient_FetchAttachmentNotWritten(t *testing.T) {
	c := newTestCLI(t, newFakeRunner())
	if _, err := c.FetchAttachment(context.Background(), "i1", "a1"); err == nil {
		t.Error("FetchAttachment() expected error when bw writes nothing")
	}
}
