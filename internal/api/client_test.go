package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/api/apitest"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := api.New(api.Options{BaseURL: "/api"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid base URL")
}

func TestUploadPhotoSendsDataURLWithBearer(t *testing.T) {
	srv := apitest.New(t)
	srv.Token = "tok"
	client := srv.Client(t)

	url, err := client.UploadPhoto(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xD9}, "image/jpeg")
	require.NoError(t, err)
	require.Contains(t, url, "/media/photo-")

	calls := srv.Calls(http.MethodPost, "/api/upload/photo")
	require.Len(t, calls, 1)
	require.Equal(t, "Bearer tok", calls[0].Header.Get("Authorization"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	require.Equal(t, "data:image/jpeg;base64,/9j/2Q==", body["base64"])
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	srv := apitest.New(t)
	_, err := srv.Client(t).UploadVoice(context.Background(), nil, "audio/wav")
	require.Error(t, err)
	require.Zero(t, srv.Count(http.MethodPost, "/api/upload/voice"))
}

func TestCreateAssetEncodesNullVoiceAndIdempotencyKey(t *testing.T) {
	srv := apitest.New(t)
	client := srv.Client(t)

	in := api.AssetInput{Name: "Column A", ProjectID: "p1", TextDescription: "cracked"}
	first, err := client.CreateAsset(context.Background(), in, "draft-1")
	require.NoError(t, err)
	second, err := client.CreateAsset(context.Background(), in, "draft-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, srv.Assets(), 1)

	calls := srv.Calls(http.MethodPost, "/api/assets")
	require.Len(t, calls, 2)
	require.Equal(t, "draft-1", calls[0].Header.Get("Idempotency-Key"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	require.Contains(t, body, "voiceNoteUrl")
	require.Nil(t, body["voiceNoteUrl"])
	require.Equal(t, []any{}, body["photos"])
}

func TestGetAndUpdateAsset(t *testing.T) {
	srv := apitest.New(t)
	srv.AddAsset(api.Asset{ID: "a1", Name: "Pump", ProjectID: "p1", Photos: []string{"u1"}})
	client := srv.Client(t)

	asset, err := client.GetAsset(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "Pump", asset.Name)
	require.Nil(t, asset.VoiceNoteURL)

	voice := "https://media/v1"
	updated, err := client.UpdateAsset(context.Background(), "a1", api.AssetInput{
		Name:         "Pump 2",
		ProjectID:    "p1",
		Photos:       asset.Photos,
		VoiceNoteURL: &voice,
	})
	require.NoError(t, err)
	require.Equal(t, "Pump 2", updated.Name)
	require.Equal(t, []string{"u1"}, updated.Photos)
	require.Equal(t, voice, *updated.VoiceNoteURL)
}

func TestStatusErrorMatchesErrNetwork(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail(http.MethodGet, "/api/folders/id/f1", http.StatusInternalServerError, 0)

	_, err := srv.Client(t).GetFolder(context.Background(), "f1")
	require.Error(t, err)
	require.True(t, errors.Is(err, api.ErrNetwork))

	var reqErr *api.RequestError
	require.True(t, errors.As(err, &reqErr))
	require.Equal(t, http.StatusInternalServerError, reqErr.Status)
	require.Equal(t, "injected failure", reqErr.Message)
}

func TestNotFoundMatchesErrNetwork(t *testing.T) {
	srv := apitest.New(t)
	_, err := srv.Client(t).GetAsset(context.Background(), "missing")
	require.ErrorIs(t, err, api.ErrNetwork)
	require.Contains(t, err.Error(), "asset not found")
}

func TestTransportErrorMatchesErrNetwork(t *testing.T) {
	srv := apitest.New(t)
	client := srv.Client(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetFolder(ctx, "f1")
	require.ErrorIs(t, err, api.ErrNetwork)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFailAfterLetsEarlierCallsSucceed(t *testing.T) {
	srv := apitest.New(t)
	srv.Fail(http.MethodPost, "/api/upload/photo", http.StatusBadGateway, 1)
	client := srv.Client(t)

	_, err := client.UploadPhoto(context.Background(), []byte("a"), "image/jpeg")
	require.NoError(t, err)
	_, err = client.UploadPhoto(context.Background(), []byte("b"), "image/jpeg")
	require.ErrorIs(t, err, api.ErrNetwork)
}

func TestFolderEndpoints(t *testing.T) {
	srv := apitest.New(t)
	srv.AddFolder(api.Folder{ID: "f1", Name: "Level 1", Project: "p1"})
	srv.AddFolder(api.Folder{ID: "f2", Name: "Level 2", Project: "p1", Parent: "f1"})
	srv.SetCount("f1", 4)
	client := srv.Client(t)
	ctx := context.Background()

	roots, err := client.ListProjectFolders(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, roots, 1)
	require.Equal(t, "f1", roots[0].ID)

	subs, err := client.ListSubfolders(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "f1", subs[0].Parent)

	count, err := client.FolderAssetCount(ctx, "f1")
	require.NoError(t, err)
	require.Equal(t, 4, count)

	parent := "f2"
	created, err := client.CreateFolder(ctx, api.FolderInput{Name: "Level 3", Project: "p1", Company: "c1", Parent: &parent})
	require.NoError(t, err)
	require.Equal(t, "f2", created.Parent)
	require.NotEmpty(t, created.ID)
}

func TestSearchOmitsEmptyScopeIDs(t *testing.T) {
	srv := apitest.New(t)
	srv.AddProject(api.Project{ID: "p1", Name: "Bridge"})
	client := srv.Client(t)

	resp, err := client.Search(context.Background(), api.SearchParams{Query: "bri", Context: "project"})
	require.NoError(t, err)
	require.Equal(t, "project", resp.Type)
	require.Len(t, resp.Results, 1)
	require.Equal(t, "p1", resp.Results[0].ID)

	calls := srv.Calls(http.MethodGet, "/api/search")
	require.Len(t, calls, 1)
	require.Equal(t, "bri", calls[0].Query.Get("query"))
	require.False(t, calls[0].Query.Has("projectId"))
	require.False(t, calls[0].Query.Has("folderId"))
}

func TestSearchResultRemembersPresentKeys(t *testing.T) {
	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(`{"results":[{"_id":"a1","name":"Valve","photos":[],"voiceNoteUrl":null}]}`), &resp))
	require.Empty(t, resp.Type)
	require.Len(t, resp.Results, 1)
	require.True(t, resp.Results[0].Has("photos"))
	require.True(t, resp.Results[0].Has("voiceNoteUrl"))
	require.False(t, resp.Results[0].Has("project"))
}

func TestProbe(t *testing.T) {
	srv := apitest.New(t)
	require.NoError(t, srv.Client(t).Probe(context.Background()))

	client, err := api.New(api.Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	require.ErrorIs(t, client.Probe(context.Background()), api.ErrNetwork)
}

func TestDataURLDefaultsMimeType(t *testing.T) {
	require.Equal(t, "data:application/octet-stream;base64,AQ==", api.DataURL("", []byte{1}))
}
