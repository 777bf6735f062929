// Package apitest runs an in-process fake of the inspection backend.
package apitest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rbright/inspector/internal/api"
)

// Call is one recorded request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type routeKey struct {
	method string
	path   string
}

type failure struct {
	status int
	after  int
	seen   int
}

type hold struct {
	arrived chan struct{}
	release chan struct{}
	seen    sync.Once
	once    sync.Once
}

// Server is a gin-backed fake that stores entities in memory, records every
// call and can inject failures or hold requests open.
type Server struct {
	URL   string
	Token string

	http *httptest.Server

	mu       sync.Mutex
	calls    []Call
	projects map[string]api.Project
	folders  map[string]api.Folder
	assets   map[string]api.Asset
	counts   map[string]int
	idem     map[string]string
	failures map[routeKey]*failure
	holds    map[routeKey]*hold
	search   func(api.SearchParams) (int, any)
	seq      int
}

// New starts a fake backend that is shut down with the test.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		projects: make(map[string]api.Project),
		folders:  make(map[string]api.Folder),
		assets:   make(map[string]api.Asset),
		counts:   make(map[string]int),
		idem:     make(map[string]string),
		failures: make(map[routeKey]*failure),
		holds:    make(map[routeKey]*hold),
	}

	router := gin.New()
	router.Use(s.record, s.inject, s.auth)
	s.routes(router)

	s.http = httptest.NewServer(router)
	s.URL = s.http.URL
	t.Cleanup(func() {
		s.releaseAll()
		s.http.Close()
	})
	return s
}

// Client returns an api.Client pointed at the fake.
func (s *Server) Client(t testing.TB) *api.Client {
	t.Helper()
	client, err := api.New(api.Options{BaseURL: s.URL, Token: s.Token})
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return client
}

func (s *Server) AddProject(p api.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *Server) AddFolder(f api.Folder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[f.ID] = f
}

func (s *Server) AddAsset(a api.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
}

// SetCount overrides the asset count reported for folderID.
func (s *Server) SetCount(folderID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[folderID] = n
}

// Fail makes method+path answer status once `after` calls have succeeded.
func (s *Server) Fail(method, path string, status, after int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[routeKey{method, path}] = &failure{status: status, after: after}
}

// Hold blocks method+path until release is called. arrived is closed when
// the first matching request reaches the server.
func (s *Server) Hold(method, path string) (arrived <-chan struct{}, release func()) {
	h := &hold{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.holds[routeKey{method, path}] = h
	s.mu.Unlock()
	return h.arrived, func() { h.once.Do(func() { close(h.release) }) }
}

// OnSearch replaces the default search handler.
func (s *Server) OnSearch(fn func(api.SearchParams) (int, any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = fn
}

// Calls returns recorded calls matching method and path prefix.
func (s *Server) Calls(method, pathPrefix string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range s.calls {
		if c.Method == method && strings.HasPrefix(c.Path, pathPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// Count is len(Calls(method, pathPrefix)).
func (s *Server) Count(method, pathPrefix string) int {
	return len(s.Calls(method, pathPrefix))
}

// Assets returns stored assets sorted by ID.
func (s *Server) Assets() []api.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Asset, 0, len(s.assets))
	for _, a := range s.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Server) releaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.holds {
		h.once.Do(func() { close(h.release) })
	}
}

func (s *Server) record(c *gin.Context) {
	body, _ := io.ReadAll(c.Request.Body)
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Query:  c.Request.URL.Query(),
		Header: c.Request.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	key := routeKey{c.Request.Method, c.Request.URL.Path}

	s.mu.Lock()
	h := s.holds[key]
	status := 0
	if f := s.failures[key]; f != nil {
		if f.seen >= f.after {
			status = f.status
		}
		f.seen++
	}
	s.mu.Unlock()

	if h != nil {
		h.seen.Do(func() { close(h.arrived) })
		select {
		case <-h.release:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"message": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) auth(c *gin.Context) {
	if s.Token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+s.Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}
	c.Next()
}
