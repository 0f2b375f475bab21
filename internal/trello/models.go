package trello

import (
	"fmt"
	"time"
)

// CheckItemComplete is the check item state Trello uses for a ticked item.
const CheckItemComplete = "complete"

// Organization is a Trello workspace.
type Organization struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Name         string   `json:"name"`
	MembersCount int      `json:"membersCount"`
	BoardIDs     []string `json:"idBoards"`
}

// Board is a Trello board with its lists in board order.
type Board struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Lists []List `json:"lists"`
}

// List is a column on a board.
type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
	Cards  []Card `json:"cards"`
}

// Card is a single Trello card. Attachments and checklists are inlined by
// the cards endpoint; comments are fetched separately and merged in.
type Card struct {
	ID          string       `json:"id"`
	ListID      string       `json:"idList"`
	BoardID     string       `json:"idBoard,omitempty"`
	Name        string       `json:"name"`
	Description string       `json:"desc"`
	Closed      bool         `json:"closed"`
	Start       *time.Time   `json:"start"`
	Due         *time.Time   `json:"due"`
	Labels      []Label      `json:"labels"`
	Attachments []Attachment `json:"attachments"`
	Comments    []Comment    `json:"comments"`
	Checklists  []Checklist  `json:"checklists"`
}

// Label is a card label.
type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Attachment is a file or link attached to a card.
//
// Bytes is nil (or negative) for links to external resources; only entries
// with IsUpload set are stored by Trello and can be downloaded.
type Attachment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	FileName string    `json:"fileName"`
	Bytes    *int64    `json:"bytes"`
	IsUpload bool      `json:"isUpload"`
	MimeType string    `json:"mimeType"`
	Date     time.Time `json:"date"`
	URL      string    `json:"url"`
}

// IsExternal reports whether the attachment is a link rather than a stored file.
func (a Attachment) IsExternal() bool {
	return a.Bytes == nil || *a.Bytes < 0
}

// IsEmpty reports whether there are no bytes to transfer.
func (a Attachment) IsEmpty() bool {
	return a.Bytes == nil || *a.Bytes < 1
}

// Size returns the byte length, or zero for links.
func (a Attachment) Size() int64 {
	if a.IsExternal() {
		return 0
	}
	return *a.Bytes
}

// FileNamesMatch reports whether the display name and stored filename agree.
func (a Attachment) FileNamesMatch() bool {
	return a.Name == a.FileName
}

// Member is the author of a comment.
type Member struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// CommentData holds the comment body as Trello nests it.
type CommentData struct {
	Text string `json:"text"`
}

// Comment is a commentCard action.
type Comment struct {
	ID            string      `json:"id"`
	Date          time.Time   `json:"date"`
	MemberCreator Member      `json:"memberCreator"`
	Data          CommentData `json:"data"`
}

// String renders the comment the way it is posted to the target thread.
func (c Comment) String() string {
	return fmt.Sprintf("[tsync][%s] %s (%s): %s",
		c.Date.UTC().Format("2006-01-02 15:04:05Z"),
		c.MemberCreator.FullName,
		c.MemberCreator.Username,
		c.Data.Text,
	)
}

// Checklist is a named, ordered set of check items.
type Checklist struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CheckItems []CheckItem `json:"checkItems"`
}

// CheckItem is one entry of a checklist.
type CheckItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// Checked reports whether the item is ticked.
func (i CheckItem) Checked() bool {
	return i.State == CheckItemComplete
}
