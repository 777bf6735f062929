package search

import (
	"fmt"
	"net/url"
	"strings"
)

// Page identifies which screen a Location points at.
type Page string

const (
	PageDashboard Page = "dashboard"
	PageProject   Page = "project"
	PageAsset     Page = "asset"
)

// Location is the current navigation position.
type Location struct {
	Page      Page
	ProjectID string
	// FolderID is the selected folder on a project page.
	FolderID string
	AssetID  string
}

func Dashboard() Location { return Location{Page: PageDashboard} }

func ProjectPage(projectID, folderID string) Location {
	return Location{Page: PageProject, ProjectID: projectID, FolderID: folderID}
}

func AssetPage(assetID string) Location { return Location{Page: PageAsset, AssetID: assetID} }

// ParseLocation accepts /dashboard, /subproject/:id[?folderId=] and /asset/:id.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("parse location %q: %w", raw, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch {
	case len(parts) == 1 && (parts[0] == "" || parts[0] == "dashboard"):
		return Dashboard(), nil
	case len(parts) == 2 && parts[0] == "subproject" && parts[1] != "":
		return ProjectPage(parts[1], u.Query().Get("folderId")), nil
	case len(parts) == 2 && parts[0] == "asset" && parts[1] != "":
		return AssetPage(parts[1]), nil
	default:
		return Location{}, fmt.Errorf("unknown location %q", raw)
	}
}

// Path renders the route for l.
func (l Location) Path() string {
	switch l.Page {
	case PageProject:
		path := "/subproject/" + url.PathEscape(l.ProjectID)
		if l.FolderID != "" {
			path += "?folderId=" + url.QueryEscape(l.FolderID)
		}
		return path
	case PageAsset:
		return "/asset/" + url.PathEscape(l.AssetID)
	default:
		return "/dashboard"
	}
}

func (l Location) String() string { return l.Path() }
