package catalog

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShow() *Show {
	return &Show{
		ID:    "10716",
		Title: "Something Was Wrong",
		Image: "https://example.com/show.jpg",
		Seasons: []Season{
			{
				Season: 1,
				Title:  "Season 1",
				Image:  "https://example.com/s1.jpg",
				Episodes: []Episode{
					{Title: "Pilot", Episode: 1, File: "https://example.com/1.mp3"},
					{Title: "Second", Episode: 2, File: "https://example.com/2.mp3"},
				},
			},
			{
				Season:   2,
				Title:    "Season 2",
				Episodes: []Episode{{Title: "Return", Episode: 1, File: "https://example.com/3.mp3"}},
			},
		},
	}
}

func TestShow_Descriptor(t *testing.T) {
	show := testShow()

	d, err := show.Descriptor(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "10716-s1-e2", d.EpisodeID)
	assert.Equal(t, "https://example.com/2.mp3", d.AudioURL)
	assert.Equal(t, "Second", d.Title)
	assert.Equal(t, "Something Was Wrong", d.ShowTitle)
	assert.Equal(t, "https://example.com/s1.jpg", d.ShowImage)

	// Season without its own image falls back to the show image.
	d, err = show.Descriptor(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/show.jpg", d.ShowImage)

	_, err = show.Descriptor(3, 1)
	assert.True(t, errors.Is(err, ErrSeasonNotFound))

	_, err = show.Descriptor(1, 9)
	assert.True(t, errors.Is(err, ErrEpisodeNotFound))
}

func TestShow_FindEpisode(t *testing.T) {
	season, ep, err := testShow().FindEpisode(2, 1)
	require.NoError(t, err)
	assert.Equal(t, "Season 2", season.Title)
	assert.Equal(t, "Return", ep.Title)

	_, _, err = testShow().FindEpisode(2, 2)
	assert.True(t, errors.Is(err, ErrEpisodeNotFound))
}

func TestShow_EpisodeCount(t *testing.T) {
	assert.Equal(t, 3, testShow().EpisodeCount())
}

func previews() []Preview {
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Preview{
		{ID: "1", Title: "banana talk", Seasons: 2, Genres: []int{1, 3}, Updated: base.Add(48 * time.Hour)},
		{ID: "2", Title: "Apple Hour", Seasons: 5, Genres: []int{2}, Updated: base},
		{ID: "3", Title: "Cherry Pie", Seasons: 1, Genres: []int{3}, Updated: base.Add(24 * time.Hour)},
	}
}

func ids(ps []Preview) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSort(t *testing.T) {
	tests := []struct {
		criteria SortCriteria
		expected []string
	}{
		{SortRecent, []string{"1", "3", "2"}},
		{SortOldest, []string{"2", "3", "1"}},
		{SortTitleAZ, []string{"2", "1", "3"}},
		{SortTitleZA, []string{"3", "1", "2"}},
		{SortSeasons, []string{"2", "1", "3"}},
		{"unknown", []string{"1", "3", "2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.criteria), func(t *testing.T) {
			ps := previews()
			Sort(ps, tt.criteria)
			assert.Equal(t, tt.expected, ids(ps))
		})
	}
}

func TestSearchAndFilter(t *testing.T) {
	assert.Equal(t, []string{"2"}, ids(Search(previews(), "apple")))
	assert.Len(t, Search(previews(), ""), 3)
	assert.Equal(t, []string{"1", "3"}, ids(FilterByGenre(previews(), 3)))
}

func TestPaginate(t *testing.T) {
	ps := previews()

	page := Paginate(ps, 1, 2)
	assert.Equal(t, []string{"1", "2"}, ids(page.Items))
	assert.Equal(t, 2, page.TotalPages)

	page = Paginate(ps, 2, 2)
	assert.Equal(t, []string{"3"}, ids(page.Items))

	page = Paginate(ps, 5, 2)
	assert.Empty(t, page.Items)

	page = Paginate(ps, 0, 0)
	assert.Len(t, page.Items, 3)
}

func TestApply(t *testing.T) {
	page := Apply(previews(), Query{GenreID: 3, Sort: SortTitleAZ, Page: 1, PerPage: 8})
	assert.Equal(t, []string{"1", "3"}, ids(page.Items))
	assert.Equal(t, 2, page.Total)
}
