package gitinfo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func hasGit(t *testing.T) bool {
	t.Helper()
	_, err := exec.LookPath("git")
	return err == nil
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
		)
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@test.com")
	run("config", "user.name", "test")
	file := filepath.Join(dir, "a.go")
	if err := os.WriteFile(file, []byte("package a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "a.go")
	run("commit", "-q", "-m", "initial")
}

func TestLookup_InsideRepoReturnsBranchAndCommit(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	initRepo(t, dir)

	info := Lookup(context.Background(), filepath.Join(dir, "a.go"))
	assert.NotEmpty(t, info.Branch)
	assert.Len(t, info.Commit, 40)
}

func TestLookup_OutsideRepoReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	info := Lookup(context.Background(), filepath.Join(dir, "a.go"))
	assert.Equal(t, Info{}, info)
}
