// Package hierarchy resolves folder breadcrumb trails, sibling asset counts
// and the combined project page view.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/logging"
)

// ErrPartial marks a best-effort result where some lookups were dropped.
var ErrPartial = errors.New("partial resource failure")

// Backend is the part of the REST client the resolver reads from.
type Backend interface {
	GetProject(ctx context.Context, id string) (api.Project, error)
	GetFolder(ctx context.Context, id string) (api.Folder, error)
	ListProjectFolders(ctx context.Context, projectID string) ([]api.Folder, error)
	ListSubfolders(ctx context.Context, folderID string) ([]api.Folder, error)
	FolderAssetCount(ctx context.Context, folderID string) (int, error)
	ListProjectAssets(ctx context.Context, projectID string) ([]api.Asset, error)
	ListFolderAssets(ctx context.Context, folderID string) ([]api.Asset, error)
	CreateFolder(ctx context.Context, in api.FolderInput) (api.Folder, error)
}

type Options struct {
	// Concurrency bounds in-flight count requests. Defaults to 8.
	Concurrency int
	Logger      *slog.Logger
}

// Resolver keeps an append-only cache of folders it has fetched.
type Resolver struct {
	backend     Backend
	concurrency int
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]api.Folder
}

func New(backend Backend, opts Options) *Resolver {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Resolver{
		backend:     backend,
		concurrency: concurrency,
		logger:      logging.OrDiscard(opts.Logger),
		cache:       make(map[string]api.Folder),
	}
}

// ResolveTrail returns the folders from the root ancestor down to target.
// The walk stops at the first failed lookup or repeated folder; the trail is
// then the contiguous suffix resolved so far and the error wraps ErrPartial.
func (r *Resolver) ResolveTrail(ctx context.Context, target api.Folder) ([]api.Folder, error) {
	r.remember(target.ID, target)

	trail := []api.Folder{target}
	seen := map[string]bool{target.ID: true}
	current := target
	var partial error
	for current.Parent != "" {
		parentID := current.Parent
		if seen[parentID] {
			partial = fmt.Errorf("%w: folder %q is its own ancestor", ErrPartial, parentID)
			break
		}
		parent, err := r.folder(ctx, parentID)
		if err != nil {
			partial = fmt.Errorf("%w: resolve folder %q: %w", ErrPartial, parentID, err)
			break
		}
		seen[parentID] = true
		trail = append(trail, parent)
		current = parent
	}

	slices.Reverse(trail)
	if partial != nil {
		r.logger.Warn("breadcrumb truncated", "folder", target.ID, "depth", len(trail), "error", partial.Error())
	}
	return trail, partial
}

// ResolveTrailByID fetches target first. Failing to fetch the target itself
// is a plain error.
func (r *Resolver) ResolveTrailByID(ctx context.Context, folderID string) ([]api.Folder, error) {
	target, err := r.folder(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("resolve folder %q: %w", folderID, err)
	}
	return r.ResolveTrail(ctx, target)
}

func (r *Resolver) folder(ctx context.Context, id string) (api.Folder, error) {
	r.mu.Lock()
	cached, ok := r.cache[id]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	f, err := r.backend.GetFolder(ctx, id)
	if err != nil {
		return api.Folder{}, err
	}
	r.remember(id, f)
	return f, nil
}

func (r *Resolver) remember(id string, f api.Folder) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[id]; !ok {
		r.cache[id] = f
	}
}

// AssetCounts fetches one count per folder concurrently. A failed count is
// reported as 0 without affecting its siblings.
func (r *Resolver) AssetCounts(ctx context.Context, folders []api.Folder) map[string]int {
	counts := make(map[string]int, len(folders))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, f := range folders {
		g.Go(func() error {
			n, err := r.backend.FolderAssetCount(ctx, f.ID)
			if err != nil {
				r.logger.Warn("asset count unavailable", "folder", f.ID, "error", err.Error())
				n = 0
			}
			mu.Lock()
			counts[f.ID] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// View is everything the project page shows for one location.
type View struct {
	Project api.Project
	// Folder is the selected folder, nil at the project root.
	Folder  *api.Folder
	Folders []api.Folder
	Assets  []api.Asset
	Trail   []api.Folder
	Counts  map[string]int
	// TrailErr is set when the breadcrumb was truncated.
	TrailErr error
}

// LoadView loads a project page. folderID is empty for the project root.
// The project, listings and selected folder are required; the breadcrumb and
// counts are best-effort.
func (r *Resolver) LoadView(ctx context.Context, projectID, folderID string) (View, error) {
	var view View

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.backend.GetProject(gctx, projectID)
		if err != nil {
			return fmt.Errorf("load project %q: %w", projectID, err)
		}
		view.Project = p
		return nil
	})
	g.Go(func() error {
		var (
			folders []api.Folder
			err     error
		)
		if folderID == "" {
			folders, err = r.backend.ListProjectFolders(gctx, projectID)
		} else {
			folders, err = r.backend.ListSubfolders(gctx, folderID)
		}
		if err != nil {
			return fmt.Errorf("list folders: %w", err)
		}
		view.Folders = folders
		return nil
	})
	g.Go(func() error {
		var (
			assets []api.Asset
			err    error
		)
		if folderID == "" {
			assets, err = r.backend.ListProjectAssets(gctx, projectID)
		} else {
			assets, err = r.backend.ListFolderAssets(gctx, folderID)
		}
		if err != nil {
			return fmt.Errorf("list assets: %w", err)
		}
		view.Assets = assets
		return nil
	})
	if folderID != "" {
		g.Go(func() error {
			f, err := r.folder(gctx, folderID)
			if err != nil {
				return fmt.Errorf("load folder %q: %w", folderID, err)
			}
			view.Folder = &f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return View{}, err
	}

	var wg sync.WaitGroup
	if view.Folder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view.Trail, view.TrailErr = r.ResolveTrail(ctx, *view.Folder)
		}()
	}
	view.Counts = r.AssetCounts(ctx, view.Folders)
	wg.Wait()
	return view, nil
}

// FolderRequest describes a folder to create. Parent is empty at the root.
type FolderRequest struct {
	Name      string
	ProjectID string
	CompanyID string
	Parent    string
}

// CreateFolder creates a folder under req.Parent, or at the project root.
func (r *Resolver) CreateFolder(ctx context.Context, req FolderRequest) (api.Folder, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return api.Folder{}, errors.New("folder name must not be empty")
	}
	if req.ProjectID == "" {
		return api.Folder{}, errors.New("folder requires a project id")
	}

	in := api.FolderInput{Name: name, Project: req.ProjectID, Company: req.CompanyID}
	if req.Parent != "" {
		parent := req.Parent
		in.Parent = &parent
	}
	f, err := r.backend.CreateFolder(ctx, in)
	if err != nil {
		return api.Folder{}, fmt.Errorf("create folder %q: %w", name, err)
	}
	r.remember(f.ID, f)
	return f, nil
}
