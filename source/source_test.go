// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package source

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowpm/burrow/pubgrub"
)

// fakeClient serves canned registry data and counts calls. gate, when set,
// blocks every ListVersions until released so tests can pile up concurrent
// callers.
type fakeClient struct {
	versions map[string][]string
	meta     map[string]Metadata

	listCalls int32
	metaCalls int32
	gate      chan struct{}
}

func (c *fakeClient) ListVersions(ctx context.Context, name string) ([]string, error) {
	atomic.AddInt32(&c.listCalls, 1)
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	vs, ok := c.versions[name]
	if !ok {
		return nil, errUnknownPackage(name)
	}
	return vs, nil
}

func (c *fakeClient) GetMetadata(ctx context.Context, name, version string) (Metadata, error) {
	atomic.AddInt32(&c.metaCalls, 1)
	meta, ok := c.meta[name+"@"+version]
	if !ok {
		return Metadata{}, errUnknownPackage(name)
	}
	return meta, nil
}

type errUnknownPackage string

func (e errUnknownPackage) Error() string { return "unknown package " + string(e) }

func newFakeClient() *fakeClient {
	return &fakeClient{
		versions: map[string][]string{
			"requests": {"1.0.0", "2.0.0", "2.1.0"},
			"urllib":   {"1.0.0"},
			"socks":    {"1.0.0"},
		},
		meta: map[string]Metadata{
			"requests@2.1.0": {Deps: map[string]string{"urllib": ">=1.0.0"}},
			"requests@2.0.0": {Deps: map[string]string{"urllib": ">=1.0.0"}},
			"requests@1.0.0": {},
			"urllib@1.0.0":   {},
			"socks@1.0.0":    {},
		},
	}
}

func TestManagerListVersionsNewestFirstAndMemoized(t *testing.T) {
	client := newFakeClient()
	m := NewManager(context.Background(), client, nil)
	pkg := pubgrub.Package{Name: "requests"}

	vs, err := m.ListVersions(pkg)
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, "2.1.0", vs[0].String())
	assert.Equal(t, "1.0.0", vs[2].String())

	_, err = m.ListVersions(pkg)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&client.listCalls), "second list must come from cache")
}

func TestManagerGetDependenciesConvertsAndMemoizes(t *testing.T) {
	client := newFakeClient()
	m := NewManager(context.Background(), client, nil)
	pkg := pubgrub.Package{Name: "requests"}
	v := pubgrub.MustVersion("2.1.0")

	deps, err := m.GetDependencies(pkg, v)
	require.NoError(t, err)
	require.False(t, deps.Unavailable)
	set, ok := deps.Deps[pubgrub.Package{Name: "urllib"}]
	require.True(t, ok, "urllib constraint missing: %v", deps.Deps)
	assert.True(t, set.Contains(pubgrub.MustVersion("1.0.0")))
	assert.False(t, set.Contains(pubgrub.MustVersion("0.9.0")))

	_, err = m.GetDependencies(pkg, v)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&client.metaCalls), "second fetch must come from cache")
}

func TestManagerYankedVersionIsUnavailable(t *testing.T) {
	client := newFakeClient()
	client.meta["requests@2.1.0"] = Metadata{Yanked: true}
	m := NewManager(context.Background(), client, nil)

	deps, err := m.GetDependencies(pubgrub.Package{Name: "requests"}, pubgrub.MustVersion("2.1.0"))
	require.NoError(t, err)
	assert.True(t, deps.Unavailable)
}

func TestManagerExtraPinsBasePackage(t *testing.T) {
	client := newFakeClient()
	client.meta["requests@2.1.0"] = Metadata{Deps: map[string]string{"socks": ">=1.0.0"}}
	m := NewManager(context.Background(), client, nil)

	deps, err := m.GetDependencies(pubgrub.Package{Name: "requests", Extra: "security"}, pubgrub.MustVersion("2.1.0"))
	require.NoError(t, err)
	base, ok := deps.Deps[pubgrub.Package{Name: "requests"}]
	require.True(t, ok, "extra package must pin its base")
	assert.True(t, base.Contains(pubgrub.MustVersion("2.1.0")))
	assert.False(t, base.Contains(pubgrub.MustVersion("2.0.0")))
}

func TestManagerSingleflightCollapsesConcurrentFetches(t *testing.T) {
	client := newFakeClient()
	client.gate = make(chan struct{})
	m := NewManager(context.Background(), client, nil)
	pkg := pubgrub.Package{Name: "requests"}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.ListVersions(pkg)
		}(i)
	}
	close(client.gate)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	calls := atomic.LoadInt32(&client.listCalls)
	assert.LessOrEqual(t, calls, int32(2), "concurrent fetches were not collapsed: %d calls", calls)
}

func TestManagerPrefetchWarmsCache(t *testing.T) {
	client := newFakeClient()
	m := NewManager(context.Background(), client, nil)

	require.NoError(t, m.Prefetch(context.Background(), []string{"requests", "urllib", "socks"}, 2))
	before := atomic.LoadInt32(&client.listCalls)

	_, err := m.ListVersions(pubgrub.Package{Name: "requests"})
	require.NoError(t, err)
	_, err = m.ListVersions(pubgrub.Package{Name: "urllib"})
	require.NoError(t, err)
	assert.EqualValues(t, before, atomic.LoadInt32(&client.listCalls), "solve-time lists must hit the prefetched cache")
}

func TestManagerShouldCancelFollowsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, newFakeClient(), nil)

	require.NoError(t, m.ShouldCancel())
	cancel()
	assert.ErrorIs(t, m.ShouldCancel(), context.Canceled)
}

func TestManagerSolveCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(ctx, newFakeClient(), nil)

	_, err := pubgrub.NewSolver(m, nil).Solve(pubgrub.Package{Name: "requests"}, pubgrub.MustVersion("2.1.0"))
	var ce *pubgrub.CancelledError
	require.ErrorAs(t, err, &ce)
}

func TestManagerSuggest(t *testing.T) {
	m := NewManager(context.Background(), newFakeClient(), nil)
	for _, name := range []string{"requests", "urllib", "socks"} {
		_, err := m.ListVersions(pubgrub.Package{Name: name})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"requests"}, m.Suggest("requ"))
	assert.Empty(t, m.Suggest("zzz"))
}

func TestManagerSuggestForTypo(t *testing.T) {
	m := NewManager(context.Background(), newFakeClient(), nil)
	for _, name := range []string{"requests", "urllib"} {
		_, err := m.ListVersions(pubgrub.Package{Name: name})
		require.NoError(t, err)
	}

	// The misspelling shares no full-name match; the prefix is shortened
	// until cached names turn up.
	assert.Equal(t, []string{"requests"}, m.SuggestFor("reqests"))
	assert.Equal(t, []string{"urllib"}, m.SuggestFor("urllib2"))
	assert.Empty(t, m.SuggestFor("zzz"), "nothing cached shares a prefix")
}

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Requests", "requests"},
		{"ruamel.yaml", "ruamel-yaml"},
		{"typing_extensions", "typing-extensions"},
		{"a__b..c", "a-b-c"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestParsePackage(t *testing.T) {
	pkg, err := ParsePackage("Requests[SOCKS]")
	require.NoError(t, err)
	assert.Equal(t, pubgrub.Package{Name: "requests", Extra: "socks"}, pkg)

	_, err = ParsePackage("requests[")
	assert.Error(t, err)
}
