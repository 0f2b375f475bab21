package graph

import (
	"strings"
	"unicode/utf8"
)

const (
	odataExternalReference = "#microsoft.graph.plannerExternalReference"
	odataChecklistItem     = "#microsoft.graph.plannerChecklistItem"

	// MaxTitleLength is the planner task title limit, in characters.
	MaxTitleLength = 255
	// MaxChecklistTitleLength is the planner checklist item title limit.
	MaxChecklistTitleLength = 100

	// orderHintStep is appended to build an increasing sequence of order
	// hints; planner sorts " !" before " ! !".
	orderHintStep = " !"
)

// GroupPlan is a planner plan that can receive a board: its owning group and
// the group's document drive, where attachments are uploaded.
type GroupPlan struct {
	GroupID   string `json:"groupId"`
	GroupName string `json:"groupName"`
	PlanID    string `json:"planId"`
	PlanName  string `json:"planName"`
	DriveID   string `json:"driveId"`
	DriveName string `json:"driveName"`
}

// Versioned is a resource id together with its concurrency token.
type Versioned struct {
	ID   string `json:"id"`
	ETag string `json:"@odata.etag"`
}

// User is the signed-in account.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// NewTask describes a task to create in a bucket.
type NewTask struct {
	PlanID   string
	BucketID string
	Title    string
	Details  TaskDetails
}

// TaskDetails is the optional second half of a task.
type TaskDetails struct {
	Description string
	Checklist   []ChecklistEntry
	References  []Reference
}

// Empty reports whether there is nothing to patch onto the task.
func (d TaskDetails) Empty() bool {
	return d.Description == "" && len(d.Checklist) == 0 && len(d.References) == 0
}

// ChecklistEntry is one checklist row in display order.
type ChecklistEntry struct {
	Title   string
	Checked bool
}

// Reference is a link attached to a task.
type Reference struct {
	URL   string
	Alias string
}

// CreatedTask identifies a task and the discussion thread its comments go to.
type CreatedTask struct {
	TaskID   string
	ThreadID string
	GroupID  string
}

// Wire types. One per write endpoint; fields the service rejects on write
// (lastModifiedDateTime, lastModifiedBy) are omitted.

type bucketRequest struct {
	Name      string `json:"name"`
	PlanID    string `json:"planId"`
	OrderHint string `json:"orderHint"`
}

type taskRequest struct {
	PlanID               string `json:"planId"`
	BucketID             string `json:"bucketId"`
	Title                string `json:"title"`
	ConversationThreadID string `json:"conversationThreadId,omitempty"`
}

type taskResponse struct {
	ID                   string `json:"id"`
	ETag                 string `json:"@odata.etag"`
	ConversationThreadID string `json:"conversationThreadId"`
}

type detailsRequest struct {
	Description string                       `json:"description,omitempty"`
	References  map[string]externalReference `json:"references,omitempty"`
	Checklist   map[string]checklistItem     `json:"checklist,omitempty"`
}

type externalReference struct {
	ODataType string `json:"@odata.type"`
	Alias     string `json:"alias"`
	Type      string `json:"type"`
}

type checklistItem struct {
	ODataType string `json:"@odata.type"`
	IsChecked bool   `json:"isChecked"`
	Title     string `json:"title"`
	OrderHint string `json:"orderHint"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type post struct {
	Body itemBody `json:"body"`
}

type threadRequest struct {
	Topic string `json:"topic"`
	Posts []post `json:"posts"`
}

type replyRequest struct {
	Post post `json:"post"`
}

func textPost(content string) post {
	return post{Body: itemBody{ContentType: "text", Content: content}}
}

type collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type group struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type plan struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Container struct {
		ContainerID string `json:"containerId"`
		Type        string `json:"type"`
	} `json:"container"`
	Owner string `json:"owner"`
}

// GroupID returns the owning group, preferring container over the legacy
// owner field.
func (p plan) GroupID() string {
	if p.Container.ContainerID != "" {
		return p.Container.ContainerID
	}
	return p.Owner
}

type drive struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type driveItem struct {
	ID     string `json:"id"`
	WebURL string `json:"webUrl"`
}

// EncodeReferenceKey escapes a URL for use as an external reference key.
// Planner stores references as open-type properties, so characters that are
// meaningful in OData property names must be percent-encoded.
func EncodeReferenceKey(u string) string {
	var b strings.Builder
	b.Grow(len(u))
	for _, r := range u {
		switch r {
		case '%':
			b.WriteString("%25")
		case '.':
			b.WriteString("%2E")
		case ':':
			b.WriteString("%3A")
		case '@':
			b.WriteString("%40")
		case '#':
			b.WriteString("%23")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// truncate shortens s to at most n characters.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	return string([]rune(s)[:n]), true
}
