package examination

import "sync"

// PageType discriminates the guide page from section pages.
type PageType string

const (
	PageGuide   PageType = "guide"
	PageSection PageType = "section"
)

// Page describes one navigable position. SectionID is zero for the
// guide. An invalid page is the synthetic target of an out-of-bounds
// transition.
type Page struct {
	Index     int
	SectionID int64
	Type      PageType
	Valid     bool
}

// Transition is a proposed move between pages. LeftSectionID names the
// section being navigated away from, if any, so the owner can flush it
// before applying the move. The machine itself does no I/O.
type Transition struct {
	From          Page
	To            Page
	LeftSectionID int64
	Valid         bool
}

// Navigator tracks the active page: the guide at position zero followed
// by the sections in order. The current page has a single writer; all
// mutation goes through Apply.
type Navigator struct {
	mu      sync.Mutex
	pages   []Page
	current int
}

// NewNavigator builds the page list for a session, starting on the guide.
func NewNavigator(s *Session) *Navigator {
	pages := make([]Page, 0, len(s.Sections)+1)
	pages = append(pages, Page{Index: 0, Type: PageGuide, Valid: true})
	for i, sec := range s.Sections {
		pages = append(pages, Page{Index: i + 1, SectionID: sec.ID, Type: PageSection, Valid: true})
	}
	return &Navigator{pages: pages}
}

// Pages returns a copy of the page list.
func (n *Navigator) Pages() []Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Page, len(n.pages))
	copy(out, n.pages)
	return out
}

// Current returns the active page.
func (n *Navigator) Current() Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pages[n.current]
}

// Next proposes the linear successor of the current page.
func (n *Navigator) Next() Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proposeLocked(n.current + 1)
}

// Prev proposes the linear predecessor of the current page.
func (n *Navigator) Prev() Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proposeLocked(n.current - 1)
}

// Select proposes a direct jump to the page at index (guide is zero).
func (n *Navigator) Select(index int) Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.proposeLocked(index)
}

// SelectSection proposes a jump to the page of the given section.
func (n *Navigator) SelectSection(sectionID int64) Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range n.pages {
		if p.Type == PageSection && p.SectionID == sectionID {
			return n.proposeLocked(p.Index)
		}
	}
	return Transition{From: n.pages[n.current]}
}

func (n *Navigator) proposeLocked(index int) Transition {
	from := n.pages[n.current]
	if index < 0 || index >= len(n.pages) {
		// No state change; the synthetic invalid target.
		return Transition{From: from}
	}
	t := Transition{From: from, To: n.pages[index], Valid: true}
	if from.Type == PageSection {
		t.LeftSectionID = from.SectionID
	}
	return t
}

// Apply commits a valid transition. Invalid transitions are ignored.
func (n *Navigator) Apply(t Transition) {
	if !t.Valid {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = t.To.Index
}
