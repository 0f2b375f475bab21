// Package graphtest provides an in-memory Microsoft Graph for tests. It keeps
// just enough planner, conversation and drive state to observe what a client
// created, updated and deleted.
package graphtest

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// AccessToken is the bearer token the server accepts.
const AccessToken = "graph-test-token"

// Route names used by Requests and FailNext.
const (
	RouteMe           = "me"
	RouteGroups       = "groups"
	RouteGroupPlans   = "group-plans"
	RouteGroupDrive   = "group-drive"
	RoutePlan         = "plan"
	RoutePlanTasks    = "plan-tasks"
	RoutePlanBuckets  = "plan-buckets"
	RouteUpload       = "upload"
	RouteCreateBucket = "create-bucket"
	RouteDeleteBucket = "delete-bucket"
	RouteCreateThread = "create-thread"
	RouteReply        = "reply"
	RouteCreateTask   = "create-task"
	RouteDeleteTask   = "delete-task"
	RouteGetDetails   = "get-details"
	RoutePatchDetails = "patch-details"
)

const (
	groupsPageSize = 2
	webURLPrefix   = "https://contoso.sharepoint.com/sites/test/Shared%20Documents/"
)

// Reference is an external reference as stored on task details.
type Reference struct {
	ODataType string `json:"@odata.type"`
	Alias     string `json:"alias"`
	Type      string `json:"type"`
}

type ChecklistItem struct {
	ODataType string `json:"@odata.type"`
	IsChecked bool   `json:"isChecked"`
	Title     string `json:"title"`
	OrderHint string `json:"orderHint"`
}

type Details struct {
	ETag        string
	Description string
	References  map[string]Reference
	Checklist   map[string]ChecklistItem
}

// Task is a planner task and its details.
type Task struct {
	ID       string
	PlanID   string
	BucketID string
	Title    string
	ThreadID string
	ETag     string
	Details  Details
}

type Bucket struct {
	ID     string
	PlanID string
	Name   string
	ETag   string
}

// Thread is a group conversation; Posts holds the seed post followed by replies.
type Thread struct {
	ID      string
	GroupID string
	Topic   string
	Posts   []string
}

type groupState struct {
	ID    string
	Name  string
	Drive string
	Plans []string
}

type planState struct {
	ID      string
	Title   string
	GroupID string
}

type failure struct {
	remaining int
	status    int
}

// Server is a fake Graph API rooted at /v1.0.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	seq      int
	groups   []*groupState
	plans    map[string]*planState
	tasks    map[string]*Task
	buckets  map[string]*Bucket
	threads  map[string]*Thread
	uploads  map[string][]byte
	failures map[string]*failure
	requests map[string]int
}

// New starts a server that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		plans:    map[string]*planState{},
		tasks:    map[string]*Task{},
		buckets:  map[string]*Bucket{},
		threads:  map[string]*Thread{},
		uploads:  map[string][]byte{},
		failures: map[string]*failure{},
		requests: map[string]int{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/v1.0").Subrouter()
	api.Use(s.authenticate)

	route := func(name, method, path string, fn http.HandlerFunc) {
		api.HandleFunc(path, s.handle(name, fn)).Methods(method).Name(name)
	}

	route(RouteMe, http.MethodGet, "/me", s.me)
	route(RouteGroups, http.MethodGet, "/groups", s.listGroups)
	route(RouteGroupPlans, http.MethodGet, "/groups/{id}/planner/plans", s.listGroupPlans)
	route(RouteGroupDrive, http.MethodGet, "/groups/{id}/drive", s.groupDrive)
	route(RouteCreateThread, http.MethodPost, "/groups/{id}/threads", s.createThread)
	route(RouteReply, http.MethodPost, "/groups/{id}/threads/{thread}/reply", s.reply)
	route(RoutePlan, http.MethodGet, "/planner/plans/{id}", s.getPlan)
	route(RoutePlanTasks, http.MethodGet, "/planner/plans/{id}/tasks", s.listPlanTasks)
	route(RoutePlanBuckets, http.MethodGet, "/planner/plans/{id}/buckets", s.listPlanBuckets)
	route(RouteCreateBucket, http.MethodPost, "/planner/buckets", s.createBucket)
	route(RouteDeleteBucket, http.MethodDelete, "/planner/buckets/{id}", s.deleteBucket)
	route(RouteCreateTask, http.MethodPost, "/planner/tasks", s.createTask)
	route(RouteDeleteTask, http.MethodDelete, "/planner/tasks/{id}", s.deleteTask)
	route(RouteGetDetails, http.MethodGet, "/planner/tasks/{id}/details", s.getDetails)
	route(RoutePatchDetails, http.MethodPatch, "/planner/tasks/{id}/details", s.patchDetails)
	route(RouteUpload, http.MethodPut, "/drives/{drive}/root:/tsync/{ns}/{file}:/content", s.upload)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)

	return s
}

// BaseURL is the API root to hand to graph.Options.
func (s *Server) BaseURL() string {
	return s.URL + "/v1.0/"
}

// AddGroup registers a group. An empty drive id means the group has no drive.
func (s *Server) AddGroup(id, name, driveID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append(s.groups, &groupState{ID: id, Name: name, Drive: driveID})
}

// AddPlan registers a plan owned by groupID.
func (s *Server) AddPlan(groupID, planID, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.ID == groupID {
			g.Plans = append(g.Plans, planID)
		}
	}
	s.plans[planID] = &planState{ID: planID, Title: title, GroupID: groupID}
}

// AddTask seeds an existing task. An empty ETag simulates an entry the
// service returned without a concurrency token.
func (s *Server) AddTask(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = &t
}

// AddBucket seeds an existing bucket.
func (s *Server) AddBucket(b Bucket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[b.ID] = &b
}

// FailNext makes the next n requests on route answer status.
func (s *Server) FailNext(route string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{remaining: n, status: status}
}

// Requests returns how many requests route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Tasks returns the tasks of a plan in creation order.
func (s *Server) Tasks(planID string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Task
	for _, t := range s.tasks {
		if t.PlanID == planID {
			out = append(out, *t)
		}
	}
	slices.SortFunc(out, func(a, b Task) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Buckets returns the buckets of a plan in creation order.
func (s *Server) Buckets(planID string) []Bucket {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Bucket
	for _, b := range s.buckets {
		if b.PlanID == planID {
			out = append(out, *b)
		}
	}
	slices.SortFunc(out, func(a, b Bucket) int { return compareIDs(a.ID, b.ID) })
	return out
}

// Thread returns a conversation thread by id.
func (s *Server) Thread(id string) (Thread, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[id]
	if !ok {
		return Thread{}, false
	}
	out := *t
	out.Posts = slices.Clone(t.Posts)
	return out, true
}

// Uploads returns the stored files keyed by web URL.
func (s *Server) Uploads() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.uploads)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+AccessToken {
			writeError(w, http.StatusUnauthorized, "InvalidAuthenticationToken")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handle(route string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[route]++
		f := s.failures[route]
		failing := f != nil && f.remaining > 0
		if failing {
			f.remaining--
		}
		s.mu.Unlock()

		if failing {
			writeError(w, f.status, "injected failure")
			return
		}
		fn(w, r)
	}
}

// nextID returns increasing ids; callers hold the lock.
func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%04d", prefix, s.seq)
}

func (s *Server) nextETag() string {
	s.seq++
	return fmt.Sprintf(`W/"etag-%d"`, s.seq)
}

func compareIDs(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": http.StatusText(status), "message": msg},
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"id":                "user-1",
		"displayName":       "Test Operator",
		"mail":              "operator@contoso.test",
		"userPrincipalName": "operator@contoso.test",
	})
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	start, _ := strconv.Atoi(r.URL.Query().Get("$skiptoken"))

	s.mu.Lock()
	defer s.mu.Unlock()

	end := min(start+groupsPageSize, len(s.groups))
	value := []map[string]string{}
	for _, g := range s.groups[start:end] {
		value = append(value, map[string]string{"id": g.ID, "displayName": g.Name})
	}

	resp := map[string]any{"value": value}
	if end < len(s.groups) {
		resp["@odata.nextLink"] = fmt.Sprintf("%s/v1.0/groups?$skiptoken=%d", s.URL, end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) group(id string) *groupState {
	for _, g := range s.groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (s *Server) planJSON(p *planState) map[string]any {
	return map[string]any{
		"id":    p.ID,
		"title": p.Title,
		"container": map[string]string{
			"containerId": p.GroupID,
			"type":        "group",
		},
	}
}

func (s *Server) listGroupPlans(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.group(mux.Vars(r)["id"])
	if g == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	value := []map[string]any{}
	for _, id := range g.Plans {
		value = append(value, s.planJSON(s.plans[id]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (s *Server) groupDrive(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := s.group(mux.Vars(r)["id"])
	if g == nil || g.Drive == "" {
		writeError(w, http.StatusNotFound, "drive not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": g.Drive, "name": "Documents"})
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.plans[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, s.planJSON(p))
}

func (s *Server) listPlanTasks(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	value := []map[string]string{}
	for _, t := range s.Tasks(planID) {
		entry := map[string]string{"id": t.ID, "title": t.Title}
		if t.ETag != "" {
			entry["@odata.etag"] = t.ETag
		}
		value = append(value, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (s *Server) listPlanBuckets(w http.ResponseWriter, r *http.Request) {
	planID := mux.Vars(r)["id"]
	value := []map[string]string{}
	for _, b := range s.Buckets(planID) {
		entry := map[string]string{"id": b.ID, "name": b.Name}
		if b.ETag != "" {
			entry["@odata.etag"] = b.ETag
		}
		value = append(value, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value})
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		PlanID string `json:"planId"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[body.PlanID]; !ok {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	b := &Bucket{ID: s.nextID("bucket"), PlanID: body.PlanID, Name: body.Name, ETag: s.nextETag()}
	s.buckets[b.ID] = b
	writeJSON(w, http.StatusCreated, map[string]string{"id": b.ID, "@odata.etag": b.ETag, "name": b.Name})
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "bucket not found")
		return
	}
	if r.Header.Get("If-Match") != b.ETag {
		writeError(w, http.StatusPreconditionFailed, "etag mismatch")
		return
	}
	delete(s.buckets, b.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic string `json:"topic"`
		Posts []struct {
			Body struct {
				Content string `json:"content"`
			} `json:"body"`
		} `json:"posts"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	groupID := mux.Vars(r)["id"]
	if s.group(groupID) == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	t := &Thread{ID: s.nextID("thread"), GroupID: groupID, Topic: body.Topic}
	for _, p := range body.Posts {
		t.Posts = append(t.Posts, p.Body.Content)
	}
	s.threads[t.ID] = t
	writeJSON(w, http.StatusCreated, map[string]string{"id": t.ID, "topic": t.Topic})
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Post struct {
			Body struct {
				ContentType string `json:"contentType"`
				Content     string `json:"content"`
			} `json:"body"`
		} `json:"post"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[mux.Vars(r)["thread"]]
	if !ok || t.GroupID != mux.Vars(r)["id"] {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	t.Posts = append(t.Posts, body.Post.Body.Content)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlanID               string `json:"planId"`
		BucketID             string `json:"bucketId"`
		Title                string `json:"title"`
		ConversationThreadID string `json:"conversationThreadId"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.plans[body.PlanID]; !ok {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	if b, ok := s.buckets[body.BucketID]; !ok || b.PlanID != body.PlanID {
		writeError(w, http.StatusBadRequest, "bucket does not belong to plan")
		return
	}
	if len([]rune(body.Title)) > 255 {
		writeError(w, http.StatusBadRequest, "title too long")
		return
	}

	t := &Task{
		ID:       s.nextID("task"),
		PlanID:   body.PlanID,
		BucketID: body.BucketID,
		Title:    body.Title,
		ThreadID: body.ConversationThreadID,
		ETag:     s.nextETag(),
	}
	t.Details.ETag = s.nextETag()
	s.tasks[t.ID] = t

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":                   t.ID,
		"@odata.etag":          t.ETag,
		"conversationThreadId": t.ThreadID,
	})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if r.Header.Get("If-Match") != t.ETag {
		writeError(w, http.StatusPreconditionFailed, "etag mismatch")
		return
	}
	delete(s.tasks, t.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDetails(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          t.ID,
		"@odata.etag": t.Details.ETag,
		"description": t.Details.Description,
	})
}

func (s *Server) patchDetails(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Description *string                  `json:"description"`
		References  map[string]Reference     `json:"references"`
		Checklist   map[string]ChecklistItem `json:"checklist"`
	}
	if !decode(w, r, &body) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[mux.Vars(r)["id"]]
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if r.Header.Get("If-Match") != t.Details.ETag {
		writeError(w, http.StatusPreconditionFailed, "etag mismatch")
		return
	}

	if body.Description != nil {
		t.Details.Description = *body.Description
	}
	if body.References != nil {
		if t.Details.References == nil {
			t.Details.References = map[string]Reference{}
		}
		maps.Copy(t.Details.References, body.References)
	}
	if body.Checklist != nil {
		if t.Details.Checklist == nil {
			t.Details.Checklist = map[string]ChecklistItem{}
		}
		maps.Copy(t.Details.Checklist, body.Checklist)
	}
	t.Details.ETag = s.nextETag()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, g := range s.groups {
		if g.Drive == vars["drive"] {
			found = true
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "drive not found")
		return
	}

	webURL := webURLPrefix + "tsync/" + vars["ns"] + "/" + vars["file"]
	s.uploads[webURL] = data
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     s.nextID("item"),
		"name":   vars["file"],
		"size":   len(data),
		"webUrl": webURL,
	})
}
