package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortCriteria names a catalog ordering.
type SortCriteria string

const (
	SortRecent  SortCriteria = "recent"
	SortOldest  SortCriteria = "oldest"
	SortTitleAZ SortCriteria = "title-az"
	SortTitleZA SortCriteria = "title-za"
	SortSeasons SortCriteria = "seasons"
)

// AllGenres disables genre filtering.
const AllGenres = 0

// Query describes how to narrow and order the catalog listing.
type Query struct {
	Search  string
	GenreID int
	Sort    SortCriteria
	Page    int // 1-based
	PerPage int
}

// Page is one page of a query result.
type Page struct {
	Items      []Preview `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}

// Apply runs the query over previews without modifying the input.
func Apply(previews []Preview, q Query) Page {
	result := Search(previews, q.Search)
	if q.GenreID != AllGenres {
		result = FilterByGenre(result, q.GenreID)
	}
	Sort(result, q.Sort)
	return Paginate(result, q.Page, q.PerPage)
}

// Search keeps previews whose title contains term, case-insensitively.
func Search(previews []Preview, term string) []Preview {
	out := make([]Preview, 0, len(previews))
	term = strings.ToLower(strings.TrimSpace(term))
	for _, p := range previews {
		if term == "" || strings.Contains(strings.ToLower(p.Title), term) {
			out = append(out, p)
		}
	}
	return out
}

// FilterByGenre keeps previews tagged with genreID.
func FilterByGenre(previews []Preview, genreID int) []Preview {
	out := make([]Preview, 0, len(previews))
	for _, p := range previews {
		if p.HasGenre(genreID) {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders previews in place. Unknown criteria fall back to SortRecent.
func Sort(previews []Preview, criteria SortCriteria) {
	col := collate.New(language.English, collate.IgnoreCase)

	var less func(a, b Preview) bool
	switch criteria {
	case SortOldest:
		less = func(a, b Preview) bool { return a.Updated.Before(b.Updated) }
	case SortTitleAZ:
		less = func(a, b Preview) bool { return col.CompareString(a.Title, b.Title) < 0 }
	case SortTitleZA:
		less = func(a, b Preview) bool { return col.CompareString(a.Title, b.Title) > 0 }
	case SortSeasons:
		less = func(a, b Preview) bool { return a.Seasons > b.Seasons }
	default:
		less = func(a, b Preview) bool { return a.Updated.After(b.Updated) }
	}

	sort.SliceStable(previews, func(i, j int) bool { return less(previews[i], previews[j]) })
}

// Paginate cuts one page out of previews. page < 1 is treated as 1; perPage < 1 returns everything.
func Paginate(previews []Preview, page, perPage int) Page {
	total := len(previews)
	if perPage < 1 {
		return Page{Items: previews, Total: total, Page: 1, TotalPages: 1}
	}
	if page < 1 {
		page = 1
	}

	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	start := (page - 1) * perPage
	if start >= total {
		return Page{Items: []Preview{}, Total: total, Page: page, TotalPages: totalPages}
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return Page{Items: previews[start:end], Total: total, Page: page, TotalPages: totalPages}
}
