// Package search decides what a free-text query should match based on the
// current location and turns the first result into a navigation target.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/logging"
)

// Scope is the entity category a query is matched against.
type Scope string

const (
	ScopeProject Scope = "project"
	ScopeFolder  Scope = "folder"
	ScopeAsset   Scope = "asset"
)

var (
	ErrEmptyQuery = errors.New("search query is empty")
	ErrNoResult   = errors.New("no result found")
)

// Query is a resolved search request.
type Query struct {
	Scope     Scope
	Text      string
	ProjectID string
	FolderID  string
}

// Resolve picks the scope for raw at loc. The first matching rule wins:
// asset page, project with folder, project, dashboard.
func Resolve(loc Location, raw string) (Query, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Query{}, ErrEmptyQuery
	}

	q := Query{Text: text, ProjectID: loc.ProjectID, FolderID: loc.FolderID}
	switch {
	case loc.Page == PageAsset:
		q.Scope = ScopeAsset
	case loc.Page == PageProject && loc.FolderID != "":
		q.Scope = ScopeAsset
	case loc.Page == PageProject:
		q.Scope = ScopeFolder
	default:
		q.Scope = ScopeProject
	}
	return q, nil
}

// Target is where a search result leads.
type Target struct {
	Location Location
	Kind     Scope
	ID       string
	Name     string
}

// Navigate maps a result to its page. Folders open enclosingProjectID with
// the folder selected.
func Navigate(kind Scope, id, enclosingProjectID string) (Target, error) {
	if strings.TrimSpace(id) == "" {
		return Target{}, errors.New("search result has no id")
	}
	switch kind {
	case ScopeProject:
		return Target{Location: ProjectPage(id, ""), Kind: kind, ID: id}, nil
	case ScopeFolder:
		if enclosingProjectID == "" {
			return Target{}, fmt.Errorf("folder %q has no owning project", id)
		}
		return Target{Location: ProjectPage(enclosingProjectID, id), Kind: kind, ID: id}, nil
	case ScopeAsset:
		return Target{Location: AssetPage(id), Kind: kind, ID: id}, nil
	default:
		return Target{}, fmt.Errorf("unknown result type %q", kind)
	}
}

// Backend runs one search request.
type Backend interface {
	Search(ctx context.Context, params api.SearchParams) (api.SearchResponse, error)
}

type Resolver struct {
	backend Backend
	logger  *slog.Logger
}

func NewResolver(backend Backend, logger *slog.Logger) *Resolver {
	return &Resolver{backend: backend, logger: logging.OrDiscard(logger)}
}

// Search resolves raw at loc, issues one request and navigates to the first
// result.
func (r *Resolver) Search(ctx context.Context, loc Location, raw string) (Target, error) {
	q, err := Resolve(loc, raw)
	if err != nil {
		return Target{}, err
	}

	resp, err := r.backend.Search(ctx, api.SearchParams{
		Query:     q.Text,
		Context:   string(q.Scope),
		ProjectID: q.ProjectID,
		FolderID:  q.FolderID,
	})
	if err != nil {
		return Target{}, fmt.Errorf("search %s: %w", q.Scope, err)
	}
	if len(resp.Results) == 0 {
		return Target{}, ErrNoResult
	}

	first := resp.Results[0]
	kind, sniffed := resultKind(resp.Type, first)
	if sniffed {
		r.logger.Debug("search result type inferred", "type", kind, "id", first.ID)
	}
	project := loc.ProjectID
	if project == "" {
		project = first.Project
	}
	target, err := Navigate(kind, first.ID, project)
	if err != nil {
		return Target{}, err
	}
	target.Name = first.Name
	r.logger.Info("search navigated", "scope", q.Scope, "type", kind, "target", target.Location.Path())
	return target, nil
}

// resultKind prefers the response discriminant. Backends that omit it are
// classified by the fields present on the result.
func resultKind(declared string, result api.SearchResult) (Scope, bool) {
	if declared != "" {
		return Scope(strings.ToLower(declared)), false
	}
	switch {
	case result.Has("photos"), result.Has("folderId"), result.Has("voiceNoteUrl"), result.Has("projectId"):
		return ScopeAsset, true
	case result.Has("project"), result.Has("parent"):
		return ScopeFolder, true
	default:
		return ScopeProject, true
	}
}
