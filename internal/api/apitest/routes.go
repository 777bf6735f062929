package apitest

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rbright/inspector/internal/api"
)

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/api/upload/photo", s.upload("photo"))
	r.POST("/api/upload/voice", s.upload("voice"))

	r.POST("/api/assets", s.createAsset)
	r.GET("/api/assets/id/:id", s.getAsset)
	r.PUT("/api/assets/id/:id", s.updateAsset)
	r.GET("/api/assets/project/:id", s.listAssets(func(a api.Asset, id string) bool { return a.ProjectID == id && a.FolderID == "" }))
	r.GET("/api/assets/folder/:id", s.listAssets(func(a api.Asset, id string) bool { return a.FolderID == id }))

	r.GET("/api/projects/:id", s.getProject)

	r.POST("/api/folders", s.createFolder)
	r.GET("/api/folders/id/:id", s.getFolder)
	r.GET("/api/folders/project/:id", s.listFolders(func(f api.Folder, id string) bool { return f.Project == id && f.Parent == "" }))
	r.GET("/api/folders/subfolders/:id", s.listFolders(func(f api.Folder, id string) bool { return f.Parent == id }))
	r.GET("/api/folders/asset-count/:id", s.assetCount)

	r.GET("/api/search", s.doSearch)
}

func (s *Server) upload(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Base64 string `json:"base64"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || !strings.HasPrefix(req.Base64, "data:") {
			c.JSON(http.StatusBadRequest, gin.H{"message": "base64 data URL required"})
			return
		}
		s.mu.Lock()
		id := s.nextID(kind)
		s.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"url": s.URL + "/media/" + id})
	}
}

func (s *Server) createAsset(c *gin.Context) {
	var in api.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := c.GetHeader("Idempotency-Key")
	if existing, ok := s.idem[key]; ok && key != "" {
		c.JSON(http.StatusOK, s.assets[existing])
		return
	}

	asset := assetFromInput(s.nextID("asset"), in)
	s.assets[asset.ID] = asset
	if key != "" {
		s.idem[key] = asset.ID
	}
	c.JSON(http.StatusCreated, asset)
}

func (s *Server) getAsset(c *gin.Context) {
	s.mu.Lock()
	asset, ok := s.assets[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (s *Server) updateAsset(c *gin.Context) {
	var in api.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.assets[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "asset not found"})
		return
	}
	asset := assetFromInput(id, in)
	s.assets[id] = asset
	c.JSON(http.StatusOK, asset)
}

func (s *Server) listAssets(match func(api.Asset, string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := make([]api.Asset, 0)
		for _, a := range s.Assets() {
			if match(a, c.Param("id")) {
				out = append(out, a)
			}
		}
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) getProject(c *gin.Context) {
	s.mu.Lock()
	project, ok := s.projects[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "project not found"})
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) createFolder(c *gin.Context) {
	var in api.FolderInput
	if err := c.ShouldBindJSON(&in); err != nil || in.Name == "" || in.Project == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "name and project are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	folder := api.Folder{ID: s.nextID("folder"), Name: in.Name, Project: in.Project, Company: in.Company}
	if in.Parent != nil {
		folder.Parent = *in.Parent
	}
	s.folders[folder.ID] = folder
	c.JSON(http.StatusCreated, folder)
}

func (s *Server) getFolder(c *gin.Context) {
	s.mu.Lock()
	folder, ok := s.folders[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "folder not found"})
		return
	}
	c.JSON(http.StatusOK, folder)
}

func (s *Server) listFolders(match func(api.Folder, string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		defer s.mu.Unlock()
		out := make([]api.Folder, 0)
		for _, f := range s.folders {
			if match(f, c.Param("id")) {
				out = append(out, f)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		c.JSON(http.StatusOK, out)
	}
}

func (s *Server) assetCount(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.counts[id]; ok {
		c.JSON(http.StatusOK, gin.H{"count": n})
		return
	}
	n := 0
	for _, a := range s.assets {
		if a.FolderID == id {
			n++
		}
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) doSearch(c *gin.Context) {
	params := api.SearchParams{
		Query:     c.Query("query"),
		Context:   c.Query("context"),
		ProjectID: c.Query("projectId"),
		FolderID:  c.Query("folderId"),
	}

	s.mu.Lock()
	custom := s.search
	s.mu.Unlock()
	if custom != nil {
		status, body := custom(params)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, s.defaultSearch(params))
}

// defaultSearch matches names case-insensitively within the requested scope.
func (s *Server) defaultSearch(params api.SearchParams) gin.H {
	needle := strings.ToLower(params.Query)
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]gin.H, 0)
	switch params.Context {
	case "project":
		for _, p := range s.projects {
			if strings.Contains(strings.ToLower(p.Name), needle) {
				results = append(results, gin.H{"_id": p.ID, "name": p.Name})
			}
		}
	case "folder":
		for _, f := range s.folders {
			if (params.ProjectID == "" || f.Project == params.ProjectID) && strings.Contains(strings.ToLower(f.Name), needle) {
				results = append(results, gin.H{"_id": f.ID, "name": f.Name, "project": f.Project})
			}
		}
	case "asset":
		for _, a := range s.assets {
			if params.FolderID != "" && a.FolderID != params.FolderID {
				continue
			}
			if strings.Contains(strings.ToLower(a.Name), needle) {
				results = append(results, gin.H{"_id": a.ID, "name": a.Name, "photos": a.Photos})
			}
		}
	}
	return gin.H{"type": params.Context, "results": results}
}

func assetFromInput(id string, in api.AssetInput) api.Asset {
	asset := api.Asset{
		ID:              id,
		Name:            in.Name,
		ProjectID:       in.ProjectID,
		Photos:          append([]string{}, in.Photos...),
		VoiceNoteURL:    in.VoiceNoteURL,
		VoiceToText:     in.VoiceToText,
		TextDescription: in.TextDescription,
	}
	if in.FolderID != nil {
		asset.FolderID = *in.FolderID
	}
	return asset
}
