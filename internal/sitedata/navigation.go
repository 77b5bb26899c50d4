package sitedata

// MenuEntry is a folder with the pages reachable through it.
type MenuEntry struct {
	Folder MenuFolder `json:"folder"`
	Pages  []Page     `json:"pages"`
}

// ActiveFolders returns the active folders in display order.
func (s *Snapshot) ActiveFolders() []MenuFolder {
	out := make([]MenuFolder, 0, len(s.Menu))
	for _, f := range s.Menu {
		if f.Active {
			out = append(out, f)
		}
	}
	return out
}

// PagesInFolder returns the active pages of a folder in display order.
func (s *Snapshot) PagesInFolder(folderID ID) []Page {
	var out []Page
	for _, p := range s.Pages {
		if p.Active && p.FolderID == folderID {
			out = append(out, p)
		}
	}
	return out
}

// ContentForPage returns the active blocks of a page in display order.
func (s *Snapshot) ContentForPage(pageID ID) []ContentBlock {
	var out []ContentBlock
	for _, b := range s.Content {
		if b.Active && b.PageID == pageID {
			out = append(out, b)
		}
	}
	return out
}

// FolderBySlug returns the active folder with the given slug.
func (s *Snapshot) FolderBySlug(slug string) (MenuFolder, bool) {
	for _, f := range s.Menu {
		if f.Active && f.Slug == slug {
			return f, true
		}
	}
	return MenuFolder{}, false
}

// FindPage resolves a page by folder and page slug. A page is reachable only while its
// folder exists and is active.
func (s *Snapshot) FindPage(folderSlug, pageSlug string) (Page, bool) {
	folder, ok := s.FolderBySlug(folderSlug)
	if !ok {
		return Page{}, false
	}
	for _, p := range s.PagesInFolder(folder.ID) {
		if p.Slug == pageSlug {
			return p, true
		}
	}
	return Page{}, false
}

// HomePage returns the first reachable page in menu order.
func (s *Snapshot) HomePage() (Page, bool) {
	for _, f := range s.ActiveFolders() {
		if pages := s.PagesInFolder(f.ID); len(pages) > 0 {
			return pages[0], true
		}
	}
	return Page{}, false
}

// Navigation returns the menu tree: active folders with their reachable pages.
func (s *Snapshot) Navigation() []MenuEntry {
	folders := s.ActiveFolders()
	out := make([]MenuEntry, 0, len(folders))
	for _, f := range folders {
		out = append(out, MenuEntry{Folder: f, Pages: s.PagesInFolder(f.ID)})
	}
	return out
}

// OrphanedPages returns active pages whose folder is missing or inactive.
func (s *Snapshot) OrphanedPages() []Page {
	active := make(map[ID]bool, len(s.Menu))
	for _, f := range s.Menu {
		if f.Active {
			active[f.ID] = true
		}
	}
	var out []Page
	for _, p := range s.Pages {
		if p.Active && !active[p.FolderID] {
			out = append(out, p)
		}
	}
	return out
}

// InvalidBlocks returns blocks whose content type the renderer does not know.
func (s *Snapshot) InvalidBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range s.Content {
		if !b.ContentType.Valid() {
			out = append(out, b)
		}
	}
	return out
}
