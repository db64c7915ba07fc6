package docbrowser

import (
	"strconv"

	"github.com/starford/docdesk/internal/backend"
	"github.com/starford/docdesk/internal/models"
)

// Fixed columns around the metadata keys.
const (
	HeaderDocID         = "doc_id"
	HeaderLatestVersion = "latest_version"
	HeaderActions       = "Actions"
)

// Consistency glyphs.
const (
	GlyphPass = "✅"
	GlyphFail = "❌"
)

// ToggleLabel is the caption of the per-document versions toggle.
const ToggleLabel = "Show/Hide Versions"

// VersionHeaders are the columns of the nested versions table.
var VersionHeaders = []string{
	"Version",
	"Change Description",
	"File",
	"HTML Files",
	"File Consistency",
	"HTML Consistency",
	"Created At",
	"Actions",
}

// Table is the rendered state of the document browser.
type Table struct {
	Query   string
	Headers []string
	Rows    []Row
}

// Empty reports whether there is nothing to render.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Row is one document: a primary row plus its detail row of versions.
type Row struct {
	DocID    string
	Cells    []Cell
	Expanded bool
	ColSpan  int
	Versions []VersionRow
}

// Cell is one primary-row cell. Actions cells carry the toggle instead of text.
type Cell struct {
	Header  string
	Text    string
	Actions bool
}

// Link is an anchor to a stored file.
type Link struct {
	Label string
	Href  string
}

// Artifact is a rendered artifact of a version with its consistency glyph.
type Artifact struct {
	Link  Link
	Glyph string
}

// VersionRow is one line of the nested versions table.
type VersionRow struct {
	DocID             string
	Version           int
	ChangeDescription string
	File              Link
	FileGlyph         string
	Artifacts         []Artifact
	CreatedAt         string
}

// Headers returns doc_id, the metadata keys of docs in order of first
// appearance, latest_version and Actions. An empty list has no headers.
func Headers(docs []models.Document) []string {
	if len(docs) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	headers := []string{HeaderDocID}
	for _, d := range docs {
		for _, k := range d.Metadata.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			headers = append(headers, k)
		}
	}
	return append(headers, HeaderLatestVersion, HeaderActions)
}

// BuildTable renders docs into a Table. expanded reports which documents
// show their versions; nil means none.
func BuildTable(query string, docs []models.Document, expanded func(docID string) bool) Table {
	headers := Headers(docs)
	t := Table{Query: query, Headers: headers}

	for _, d := range docs {
		row := Row{
			DocID:   d.DocID,
			ColSpan: len(headers),
		}
		if expanded != nil {
			row.Expanded = expanded(d.DocID)
		}
		for _, h := range headers {
			row.Cells = append(row.Cells, cellFor(d, h))
		}
		for _, v := range d.Versions {
			row.Versions = append(row.Versions, versionRow(d.DocID, v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func cellFor(d models.Document, header string) Cell {
	switch header {
	case HeaderDocID:
		return Cell{Header: header, Text: d.DocID}
	case HeaderLatestVersion:
		return Cell{Header: header, Text: strconv.Itoa(d.LatestVersion)}
	case HeaderActions:
		return Cell{Header: header, Actions: true}
	default:
		return Cell{Header: header, Text: d.Metadata.Value(header)}
	}
}

func versionRow(docID string, v models.Version) VersionRow {
	vr := VersionRow{
		DocID:             docID,
		Version:           v.Version,
		ChangeDescription: v.ChangeDescription,
		File:              Link{Label: "PDF", Href: backend.UploadsPath(v.FilePath)},
		FileGlyph:         Glyph(v.FileConsistent),
		CreatedAt:         v.CreatedAt,
	}
	for _, hp := range v.HTMLPaths {
		vr.Artifacts = append(vr.Artifacts, Artifact{
			Link:  Link{Label: "HTML", Href: backend.UploadsPath(hp.Path)},
			Glyph: Glyph(hp.Consistent),
		})
	}
	return vr
}

// Glyph renders a consistency flag.
func Glyph(ok bool) string {
	if ok {
		return GlyphPass
	}
	return GlyphFail
}
