package hierarchy

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/api/apitest"
)

func folderIDs(folders []api.Folder) []string {
	ids := make([]string, 0, len(folders))
	for _, f := range folders {
		ids = append(ids, f.ID)
	}
	return ids
}

// seedChain stores root -> a -> b -> c in project p-1.
func seedChain(srv *apitest.Server) api.Folder {
	srv.AddProject(api.Project{ID: "p-1", Name: "Bridge 7"})
	srv.AddFolder(api.Folder{ID: "root", Name: "Pier", Project: "p-1"})
	srv.AddFolder(api.Folder{ID: "a", Name: "Deck", Project: "p-1", Parent: "root"})
	srv.AddFolder(api.Folder{ID: "b", Name: "Span 2", Project: "p-1", Parent: "a"})
	target := api.Folder{ID: "c", Name: "Bearing", Project: "p-1", Parent: "b"}
	srv.AddFolder(target)
	return target
}

func TestResolveTrailReturnsRootToTarget(t *testing.T) {
	srv := apitest.New(t)
	target := seedChain(srv)
	r := New(srv.Client(t), Options{})

	trail, err := r.ResolveTrail(context.Background(), target)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"root", "a", "b", "c"}, folderIDs(trail)); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "Pier", trail[0].Name)
}

func TestResolveTrailTruncatesAtFailedLookup(t *testing.T) {
	srv := apitest.New(t)
	target := seedChain(srv)
	srv.Fail(http.MethodGet, "/api/folders/id/a", http.StatusInternalServerError, 0)
	r := New(srv.Client(t), Options{})

	trail, err := r.ResolveTrail(context.Background(), target)
	require.ErrorIs(t, err, ErrPartial)
	require.ErrorIs(t, err, api.ErrNetwork)
	if diff := cmp.Diff([]string{"b", "c"}, folderIDs(trail)); diff != "" {
		t.Fatalf("trail mismatch (-want +got):\n%s", diff)
	}
	require.Zero(t, srv.Count(http.MethodGet, "/api/folders/id/root"))
}

func TestResolveTrailStopsOnParentCycle(t *testing.T) {
	srv := apitest.New(t)
	srv.AddFolder(api.Folder{ID: "y", Name: "Y", Parent: "x"})
	target := api.Folder{ID: "x", Name: "X", Parent: "y"}
	srv.AddFolder(target)
	r := New(srv.Client(t), Options{})

	trail, err := r.ResolveTrail(context.Background(), target)
	require.ErrorIs(t, err, ErrPartial)
	require.Contains(t, err.Error(), "own ancestor")
	require.Equal(t, []string{"y", "x"}, folderIDs(trail))
	require.Equal(t, 1, srv.Count(http.MethodGet, "/api/folders/id/"))
}

func TestResolveTrailSelfParent(t *testing.T) {
	srv := apitest.New(t)
	target := api.Folder{ID: "loop", Parent: "loop"}
	r := New(srv.Client(t), Options{})

	trail, err := r.ResolveTrail(context.Background(), target)
	require.ErrorIs(t, err, ErrPartial)
	require.Equal(t, []string{"loop"}, folderIDs(trail))
	require.Zero(t, srv.Count(http.MethodGet, "/api/folders/id/"))
}

func TestResolveTrailUsesCache(t *testing.T) {
	srv := apitest.New(t)
	target := seedChain(srv)
	r := New(srv.Client(t), Options{})
	ctx := context.Background()

	_, err := r.ResolveTrail(ctx, target)
	require.NoError(t, err)
	fetched := srv.Count(http.MethodGet, "/api/folders/id/")
	require.Equal(t, 3, fetched)

	trail, err := r.ResolveTrailByID(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, []string{"root", "a", "b"}, folderIDs(trail))
	require.Equal(t, fetched, srv.Count(http.MethodGet, "/api/folders/id/"))
}

func TestResolveTrailByIDMissingTarget(t *testing.T) {
	srv := apitest.New(t)
	r := New(srv.Client(t), Options{})

	_, err := r.ResolveTrailByID(context.Background(), "ghost")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPartial)
}

func TestAssetCountsIsolatesFailures(t *testing.T) {
	srv := apitest.New(t)
	folders := []api.Folder{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}, {ID: "f4"}}
	for i, f := range folders {
		srv.SetCount(f.ID, (i+1)*10)
	}
	srv.Fail(http.MethodGet, "/api/folders/asset-count/f3", http.StatusServiceUnavailable, 0)
	r := New(srv.Client(t), Options{Concurrency: 2})

	counts := r.AssetCounts(context.Background(), folders)
	want := map[string]int{"f1": 10, "f2": 20, "f3": 0, "f4": 40}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 4, srv.Count(http.MethodGet, "/api/folders/asset-count/"))
}

func TestAssetCountsRequestsOverlap(t *testing.T) {
	srv := apitest.New(t)
	folders := []api.Folder{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}, {ID: "f4"}}
	for i, f := range folders {
		srv.SetCount(f.ID, i+1)
	}
	arrived, release := srv.Hold(http.MethodGet, "/api/folders/asset-count/f1")
	defer release()
	r := New(srv.Client(t), Options{Concurrency: 4})

	done := make(chan map[string]int, 1)
	go func() { done <- r.AssetCounts(context.Background(), folders) }()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("count request for f1 never arrived")
	}
	require.Eventually(t, func() bool {
		return srv.Count(http.MethodGet, "/api/folders/asset-count/") == len(folders)
	}, 5*time.Second, 10*time.Millisecond, "sibling counts waited on the held request")

	select {
	case <-done:
		t.Fatal("counts returned while a request was still held")
	default:
	}

	release()
	counts := <-done
	require.Equal(t, map[string]int{"f1": 1, "f2": 2, "f3": 3, "f4": 4}, counts)
}

func TestLoadViewProjectRoot(t *testing.T) {
	srv := apitest.New(t)
	seedChain(srv)
	srv.AddAsset(api.Asset{ID: "a-root", Name: "Abutment", ProjectID: "p-1"})
	srv.AddAsset(api.Asset{ID: "a-deck", Name: "Joint", ProjectID: "p-1", FolderID: "a"})
	r := New(srv.Client(t), Options{})

	view, err := r.LoadView(context.Background(), "p-1", "")
	require.NoError(t, err)
	require.Equal(t, "Bridge 7", view.Project.Name)
	require.Nil(t, view.Folder)
	require.Empty(t, view.Trail)
	require.Equal(t, []string{"root"}, folderIDs(view.Folders))
	require.Len(t, view.Assets, 1)
	require.Equal(t, "a-root", view.Assets[0].ID)
	require.Equal(t, map[string]int{"root": 0}, view.Counts)
}

func TestLoadViewFolder(t *testing.T) {
	srv := apitest.New(t)
	seedChain(srv)
	srv.AddAsset(api.Asset{ID: "a-1", Name: "Crack", ProjectID: "p-1", FolderID: "b"})
	srv.AddAsset(api.Asset{ID: "a-2", Name: "Rust", ProjectID: "p-1", FolderID: "c"})
	r := New(srv.Client(t), Options{})

	view, err := r.LoadView(context.Background(), "p-1", "b")
	require.NoError(t, err)
	require.NotNil(t, view.Folder)
	require.Equal(t, "Span 2", view.Folder.Name)
	require.Equal(t, []string{"root", "a", "b"}, folderIDs(view.Trail))
	require.NoError(t, view.TrailErr)
	require.Equal(t, []string{"c"}, folderIDs(view.Folders))
	require.Equal(t, map[string]int{"c": 1}, view.Counts)
	require.Equal(t, "a-1", view.Assets[0].ID)
}

func TestLoadViewBreadcrumbFailureDoesNotBlock(t *testing.T) {
	srv := apitest.New(t)
	seedChain(srv)
	srv.Fail(http.MethodGet, "/api/folders/id/root", http.StatusInternalServerError, 0)
	r := New(srv.Client(t), Options{})

	view, err := r.LoadView(context.Background(), "p-1", "b")
	require.NoError(t, err)
	require.ErrorIs(t, view.TrailErr, ErrPartial)
	require.Equal(t, []string{"a", "b"}, folderIDs(view.Trail))
}

func TestLoadViewMissingProjectFails(t *testing.T) {
	srv := apitest.New(t)
	r := New(srv.Client(t), Options{})

	_, err := r.LoadView(context.Background(), "nope", "")
	require.ErrorIs(t, err, api.ErrNetwork)
	require.Contains(t, err.Error(), "load project")
}

func TestCreateFolder(t *testing.T) {
	srv := apitest.New(t)
	seedChain(srv)
	r := New(srv.Client(t), Options{})
	ctx := context.Background()

	_, err := r.CreateFolder(ctx, FolderRequest{Name: "  ", ProjectID: "p-1"})
	require.Error(t, err)
	require.Zero(t, srv.Count(http.MethodPost, "/api/folders"))

	top, err := r.CreateFolder(ctx, FolderRequest{Name: " Approach ", ProjectID: "p-1", CompanyID: "co-1"})
	require.NoError(t, err)
	require.Equal(t, "Approach", top.Name)
	require.Empty(t, top.Parent)
	require.Contains(t, string(srv.Calls(http.MethodPost, "/api/folders")[0].Body), `"parent":null`)

	child, err := r.CreateFolder(ctx, FolderRequest{Name: "Slab", ProjectID: "p-1", Parent: "c"})
	require.NoError(t, err)
	trail, err := r.ResolveTrail(ctx, child)
	require.NoError(t, err)
	require.Equal(t, []string{"root", "a", "b", "c", child.ID}, folderIDs(trail))
}
