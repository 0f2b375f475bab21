package trello

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int64p(v int64) *int64 { return &v }

func TestAttachment_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		bytes    *int64
		external bool
		empty    bool
		size     int64
	}{
		{"link", nil, true, true, 0},
		{"negative length", int64p(-1), true, true, 0},
		{"zero length file", int64p(0), false, true, 0},
		{"file", int64p(10), false, false, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Attachment{Bytes: tt.bytes}
			assert.Equal(t, tt.external, a.IsExternal())
			assert.Equal(t, tt.empty, a.IsEmpty())
			assert.Equal(t, tt.size, a.Size())
		})
	}
}

func TestAttachment_FileNamesMatch(t *testing.T) {
	assert.True(t, Attachment{Name: "a.png", FileName: "a.png"}.FileNamesMatch())
	assert.False(t, Attachment{Name: "Screenshot", FileName: "a.png"}.FileNamesMatch())
}

func TestComment_String(t *testing.T) {
	c := Comment{
		Date:          time.Date(2024, 1, 15, 22, 55, 50, 0, time.FixedZone("x", 3600)),
		MemberCreator: Member{FullName: "Ada Lovelace", Username: "ada"},
		Data:          CommentData{Text: "looks good"},
	}

	assert.Equal(t, "[tsync][2024-01-15 21:55:50Z] Ada Lovelace (ada): looks good", c.String())
}

func TestCheckItem_Checked(t *testing.T) {
	assert.True(t, CheckItem{State: "complete"}.Checked())
	assert.False(t, CheckItem{State: "incomplete"}.Checked())
	assert.False(t, CheckItem{}.Checked())
}

func TestStats(t *testing.T) {
	boards := []Board{{
		ID: "b",
		Lists: []List{
			{ID: "l1", Cards: []Card{{
				ID:       "c1",
				Comments: []Comment{{ID: "x"}},
				Checklists: []Checklist{
					{CheckItems: []CheckItem{{ID: "i1"}, {ID: "i2"}}},
				},
				Attachments: []Attachment{
					{Name: "a", FileName: "a", Bytes: int64p(10), IsUpload: true},
					{Name: "link", FileName: "", IsUpload: false},
				},
			}}},
			{ID: "l2", Closed: true, Cards: []Card{{ID: "c2", Closed: true}}},
		},
	}}

	s := Stats(boards)

	assert.Equal(t, BoardStats{
		Boards:            1,
		Lists:             2,
		ClosedLists:       1,
		Cards:             2,
		ArchivedCards:     1,
		Comments:          1,
		Checklists:        1,
		CheckItems:        2,
		Attachments:       2,
		UploadAttachments: 1,
		LinkAttachments:   1,
		UploadBytes:       10,
		NameMismatches:    1,
	}, s)
}
