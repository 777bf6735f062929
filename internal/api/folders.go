package api

import (
	"context"
	"net/http"
	"net/url"
)

func (c *Client) GetProject(ctx context.Context, id string) (Project, error) {
	var out Project
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/projects/" + escape(id)}, &out)
	return out, err
}

// ListProjectFolders returns the root folders of a project.
func (c *Client) ListProjectFolders(ctx context.Context, projectID string) ([]Folder, error) {
	var out []Folder
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/folders/project/" + escape(projectID)}, &out)
	return out, err
}

func (c *Client) ListSubfolders(ctx context.Context, folderID string) ([]Folder, error) {
	var out []Folder
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/folders/subfolders/" + escape(folderID)}, &out)
	return out, err
}

func (c *Client) GetFolder(ctx context.Context, folderID string) (Folder, error) {
	var out Folder
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/folders/id/" + escape(folderID)}, &out)
	return out, err
}

func (c *Client) FolderAssetCount(ctx context.Context, folderID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/folders/asset-count/" + escape(folderID)}, &out)
	return out.Count, err
}

func (c *Client) CreateFolder(ctx context.Context, in FolderInput) (Folder, error) {
	var out Folder
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/folders", body: in}, &out)
	return out, err
}

// Search issues GET /api/search. Empty scope identifiers are omitted.
func (c *Client) Search(ctx context.Context, params SearchParams) (SearchResponse, error) {
	query := url.Values{}
	query.Set("query", params.Query)
	query.Set("context", params.Context)
	if params.ProjectID != "" {
		query.Set("projectId", params.ProjectID)
	}
	if params.FolderID != "" {
		query.Set("folderId", params.FolderID)
	}
	var out SearchResponse
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/search", query: query}, &out)
	return out, err
}
