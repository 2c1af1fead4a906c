// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowpm/burrow/pubgrub"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const manifestTOML = `
name = "myapp"
version = "1.0.0"

[dependencies]
requests = ">=2.0.0,<3.0.0"
"flask[async]" = "^2.0.0"
`

func TestLoadManifest(t *testing.T) {
	m, err := Load(writeFile(t, "burrow.toml", manifestTOML))
	require.NoError(t, err)

	root, rootVersion := m.RootPackage()
	assert.Equal(t, pubgrub.Package{Name: "myapp"}, root)
	assert.Equal(t, "1.0.0", rootVersion.String())

	deps := m.RootDependencies()
	set, ok := deps[pubgrub.Package{Name: "requests"}]
	require.True(t, ok)
	assert.True(t, set.Contains(pubgrub.MustVersion("2.5.0")))
	assert.False(t, set.Contains(pubgrub.MustVersion("3.0.0")))

	_, ok = deps[pubgrub.Package{Name: "flask", Extra: "async"}]
	assert.True(t, ok, "extras in dependency keys must parse: %v", deps)
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing name":   "version = \"1.0.0\"\n",
		"bad version":    "name = \"x\"\nversion = \"one\"\n",
		"bad constraint": "name = \"x\"\nversion = \"1.0.0\"\n[dependencies]\nfoo = \"~nope\"\n",
	}
	for label, content := range cases {
		_, err := Load(writeFile(t, "burrow.toml", content))
		assert.Error(t, err, label)
	}
}

func TestInputsDigestIsOrderIndependent(t *testing.T) {
	a := &Manifest{Name: "x", Version: "1.0.0", Dependencies: map[string]string{
		"foo": ">=1.0.0", "bar": "*",
	}}
	b := &Manifest{Name: "x", Version: "1.0.0", Dependencies: map[string]string{
		"bar": "*", "foo": ">=1.0.0",
	}}
	c := &Manifest{Name: "x", Version: "1.0.0", Dependencies: map[string]string{
		"bar": "*", "foo": ">=1.1.0",
	}}

	assert.Equal(t, a.InputsDigest(), b.InputsDigest())
	assert.NotEqual(t, a.InputsDigest(), c.InputsDigest())
}

const registryTOML = `
[[package]]
name = "requests"

  [[package.version]]
  version = "2.1.0"
  dependencies = { urllib = ">=1.0.0" }

  [[package.version]]
  version = "2.0.0"
  yanked = true

[[package]]
name = "urllib"

  [[package.version]]
  version = "1.0.0"
`

func TestRegistryClient(t *testing.T) {
	r, err := LoadRegistry(writeFile(t, "registry.toml", registryTOML))
	require.NoError(t, err)

	client := r.Client()
	ctx := context.Background()

	vs, err := client.ListVersions(ctx, "requests")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2.1.0", "2.0.0"}, vs)

	meta, err := client.GetMetadata(ctx, "requests", "2.1.0")
	require.NoError(t, err)
	assert.Equal(t, ">=1.0.0", meta.Deps["urllib"])
	assert.False(t, meta.Yanked)

	meta, err = client.GetMetadata(ctx, "requests", "2.0.0")
	require.NoError(t, err)
	assert.True(t, meta.Yanked)

	_, err = client.ListVersions(ctx, "nosuch")
	assert.Error(t, err)
}

func TestLockRoundTrip(t *testing.T) {
	root := pubgrub.Package{Name: "myapp"}
	solution := map[pubgrub.Package]pubgrub.Version{
		root:                        pubgrub.MustVersion("1.0.0"),
		{Name: "requests"}:          pubgrub.MustVersion("2.1.0"),
		{Name: "urllib"}:            pubgrub.MustVersion("1.0.0"),
		{Name: "flask", Extra: "a"}: pubgrub.MustVersion("2.0.0"),
	}

	lock := LockFromSolution(root, solution, "digest123")
	require.Len(t, lock.Packages, 3, "root must be excluded")
	assert.Equal(t, "flask", lock.Packages[0].Name, "pins must sort by name")

	path := filepath.Join(t.TempDir(), "burrow.lock")
	require.NoError(t, WriteLock(path, lock))

	loaded, err := LoadLock(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "digest123", loaded.InputsDigest)
	assert.Equal(t, lock.Packages, loaded.Packages)

	pins, err := loaded.Pins()
	require.NoError(t, err)
	assert.Equal(t, pubgrub.MustVersion("2.1.0").String(), pins[pubgrub.Package{Name: "requests"}].String())
}

func TestWriteLockLeavesNoSidecarFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "burrow.lock")
	require.NoError(t, WriteLock(path, &LockFile{InputsDigest: "digest123"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the lockfile itself may remain")
	assert.Equal(t, "burrow.lock", entries[0].Name())
}

func TestLoadLockMissingFile(t *testing.T) {
	lock, err := LoadLock(filepath.Join(t.TempDir(), "absent.lock"))
	require.NoError(t, err)
	assert.Nil(t, lock)
}
