package trello

// BoardStats summarizes a downloaded set of boards.
type BoardStats struct {
	Boards            int
	Lists             int
	ClosedLists       int
	Cards             int
	ArchivedCards     int
	Comments          int
	Checklists        int
	CheckItems        int
	Attachments       int
	UploadAttachments int
	LinkAttachments   int
	UploadBytes       int64
	NameMismatches    int
}

// Stats walks boards and counts what would be migrated.
func Stats(boards []Board) BoardStats {
	var s BoardStats
	s.Boards = len(boards)

	for _, b := range boards {
		for _, l := range b.Lists {
			s.Lists++
			if l.Closed {
				s.ClosedLists++
			}

			for _, c := range l.Cards {
				s.Cards++
				if c.Closed {
					s.ArchivedCards++
				}
				s.Comments += len(c.Comments)
				s.Checklists += len(c.Checklists)
				for _, cl := range c.Checklists {
					s.CheckItems += len(cl.CheckItems)
				}

				for _, a := range c.Attachments {
					s.Attachments++
					if a.IsUpload {
						s.UploadAttachments++
						s.UploadBytes += a.Size()
					} else {
						s.LinkAttachments++
					}
					if !a.FileNamesMatch() {
						s.NameMismatches++
					}
				}
			}
		}
	}

	return s
}
