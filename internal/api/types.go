package api

import (
	"encoding/json"
	"time"
)

type Project struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
}

// Folder is one node of a project's folder tree. Parent is empty at the root.
type Folder struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Project string `json:"project,omitempty"`
	Company string `json:"company,omitempty"`
	Parent  string `json:"parent,omitempty"`
}

type Asset struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	FolderID        string    `json:"folderId,omitempty"`
	ProjectID       string    `json:"projectId,omitempty"`
	Photos          []string  `json:"photos"`
	VoiceNoteURL    *string   `json:"voiceNoteUrl"`
	VoiceToText     string    `json:"voiceToText"`
	TextDescription string    `json:"textDescription"`
	CreatedAt       time.Time `json:"createdAt,omitzero"`
}

// AssetInput is the create/update payload. Absent voice notes encode as null.
type AssetInput struct {
	Name            string   `json:"name"`
	FolderID        *string  `json:"folderId"`
	ProjectID       string   `json:"projectId"`
	Photos          []string `json:"photos"`
	VoiceNoteURL    *string  `json:"voiceNoteUrl"`
	VoiceToText     string   `json:"voiceToText"`
	TextDescription string   `json:"textDescription"`
}

type FolderInput struct {
	Name    string  `json:"name"`
	Project string  `json:"project"`
	Company string  `json:"company"`
	Parent  *string `json:"parent"`
}

type SearchParams struct {
	Query     string
	Context   string
	ProjectID string
	FolderID  string
}

// SearchResponse carries a `type` discriminant; older backends omit it.
type SearchResponse struct {
	Type    string         `json:"type,omitempty"`
	Results []SearchResult `json:"results"`
}

// SearchResult keeps the common identity fields plus the set of keys present
// in the payload so untyped responses can still be classified.
type SearchResult struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Project string `json:"project,omitempty"`

	keys map[string]struct{}
}

func (r *SearchResult) UnmarshalJSON(data []byte) error {
	type plain SearchResult
	var base plain
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = SearchResult(base)
	r.keys = make(map[string]struct{}, len(fields))
	for key := range fields {
		r.keys[key] = struct{}{}
	}
	return nil
}

// Has reports whether key appeared in the decoded payload.
func (r SearchResult) Has(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// NewSearchResult builds a result with an explicit key set.
func NewSearchResult(id, name, project string, keys ...string) SearchResult {
	r := SearchResult{ID: id, Name: name, Project: project, keys: make(map[string]struct{}, len(keys))}
	for _, key := range keys {
		r.keys[key] = struct{}{}
	}
	return r
}
