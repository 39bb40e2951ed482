package entitlement

import (
	"github.com/ariefcatur/go-course-access/internal/courses"
)

type VideoView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	VideoURL        string `json:"video_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	SortOrder       int    `json:"sort_order"`
	IsPreview       bool   `json:"is_preview"`
	Locked          bool   `json:"locked"`
}

type FileView struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	FileURL   string `json:"file_url,omitempty"`
	SortOrder int    `json:"sort_order"`
	IsPreview bool   `json:"is_preview"`
	Locked    bool   `json:"locked"`
}

type ContentView struct {
	Section SectionAccess `json:"section"`
	Videos  []VideoView   `json:"videos"`
	Files   []FileView    `json:"files"`
}

// CanView reports whether an item of a section is viewable. Preview items
// are always viewable; anything else needs its section unlocked.
func CanView(res Result, sectionID string, isPreview bool) bool {
	return isPreview || res.IsUnlocked(sectionID)
}

// Gate renders section content against an entitlement, withholding the URL of
// every item the user cannot view.
func Gate(res Result, content courses.SectionContent) ContentView {
	sec := content.Section
	view := ContentView{
		Section: access(sec, res.IsUnlocked(sec.ID)),
		Videos:  make([]VideoView, 0, len(content.Videos)),
		Files:   make([]FileView, 0, len(content.Files)),
	}
	for _, v := range content.Videos {
		vv := VideoView{ID: v.ID, Title: v.Title, DurationSeconds: v.DurationSeconds, SortOrder: v.SortOrder, IsPreview: v.IsPreview}
		if CanView(res, sec.ID, v.IsPreview) {
			vv.VideoURL = v.VideoURL
		} else {
			vv.Locked = true
		}
		view.Videos = append(view.Videos, vv)
	}
	for _, f := range content.Files {
		fv := FileView{ID: f.ID, Title: f.Title, SortOrder: f.SortOrder, IsPreview: f.IsPreview}
		if CanView(res, sec.ID, f.IsPreview) {
			fv.FileURL = f.FileURL
		} else {
			fv.Locked = true
		}
		view.Files = append(view.Files, fv)
	}
	return view
}
