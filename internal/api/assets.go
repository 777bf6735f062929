package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// UploadPhoto stores an image and returns its reference URL.
func (c *Client) UploadPhoto(ctx context.Context, data []byte, mimeType string) (string, error) {
	return c.upload(ctx, "/api/upload/photo", data, mimeType)
}

// UploadVoice stores a voice recording and returns its reference URL.
func (c *Client) UploadVoice(ctx context.Context, data []byte, mimeType string) (string, error) {
	return c.upload(ctx, "/api/upload/voice", data, mimeType)
}

func (c *Client) upload(ctx context.Context, path string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("upload %s: empty payload", path)
	}
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		body:   map[string]string{"base64": DataURL(mimeType, data)},
	}, &out)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", &RequestError{Method: http.MethodPost, Path: path, Status: http.StatusOK, Message: "response missing url"}
	}
	return out.URL, nil
}

// DataURL encodes data as `data:<mime>;base64,<payload>`.
func DataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// CreateAsset issues POST /api/assets. A non-empty idempotencyKey is sent as
// the Idempotency-Key header.
func (c *Client) CreateAsset(ctx context.Context, in AssetInput, idempotencyKey string) (Asset, error) {
	if in.Photos == nil {
		in.Photos = []string{}
	}
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	var out Asset
	err := c.do(ctx, call{method: http.MethodPost, path: "/api/assets", body: in, headers: headers}, &out)
	return out, err
}

func (c *Client) GetAsset(ctx context.Context, id string) (Asset, error) {
	var out Asset
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/assets/id/" + escape(id)}, &out)
	return out, err
}

func (c *Client) UpdateAsset(ctx context.Context, id string, in AssetInput) (Asset, error) {
	if in.Photos == nil {
		in.Photos = []string{}
	}
	var out Asset
	err := c.do(ctx, call{method: http.MethodPut, path: "/api/assets/id/" + escape(id), body: in}, &out)
	return out, err
}

func (c *Client) ListProjectAssets(ctx context.Context, projectID string) ([]Asset, error) {
	var out []Asset
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/assets/project/" + escape(projectID)}, &out)
	return out, err
}

func (c *Client) ListFolderAssets(ctx context.Context, folderID string) ([]Asset, error) {
	var out []Asset
	err := c.do(ctx, call{method: http.MethodGet, path: "/api/assets/folder/" + escape(folderID)}, &out)
	return out, err
}
