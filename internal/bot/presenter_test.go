package bot

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/search"
)

func linkURL(id string) string { return "https://t.me/vault_bot?start=" + id }

func pageOf(n, page, totalPages, total int, linked bool) *search.Page {
	p := &search.Page{Query: "train", Page: page, Total: total, TotalPages: totalPages}
	for i := 0; i < n; i++ {
		r := search.Result{Item: &model.Item{ID: fmt.Sprint(i), Name: fmt.Sprintf("file-%d.mkv", i)}}
		if linked {
			r.LinkID = "abcd1234"
		}
		p.Results = append(p.Results, r)
	}
	return p
}

func TestRenderPageHeader(t *testing.T) {
	text, _ := RenderPage("tok00000", pageOf(2, 1, 1, 2, true), 10, linkURL)
	assert.Equal(t, "Search: train\nResults: 2\nPage: 1/1\n\nTap a button to open the stored file link.", text)
}

func TestRenderPageSinglePageHasNoNavigation(t *testing.T) {
	_, kb := RenderPage("tok00000", pageOf(3, 1, 1, 3, true), 10, linkURL)
	require.Len(t, kb, 3)
	for _, row := range kb {
		require.Len(t, row, 1)
		assert.NotEmpty(t, row[0].URL)
	}
	assert.Equal(t, "https://t.me/vault_bot?start=abcd1234", kb[0][0].URL)
	assert.Equal(t, "1. file-0.mkv", kb[0][0].Label)
}

func TestRenderPageNavigation(t *testing.T) {
	cases := []struct {
		page   int
		labels []string
	}{
		{1, []string{"1/3", "Next"}},
		{2, []string{"Prev", "2/3", "Next"}},
		{3, []string{"Prev", "3/3"}},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.page), func(t *testing.T) {
			_, kb := RenderPage("tok00000", pageOf(1, tc.page, 3, 25, true), 10, linkURL)
			nav := kb[len(kb)-1]
			labels := make([]string, 0, len(nav))
			for _, b := range nav {
				labels = append(labels, b.Label)
				if b.Label == "Prev" {
					assert.Equal(t, NavAction("tok00000", tc.page-1), b.Action)
				}
				if b.Label == "Next" {
					assert.Equal(t, NavAction("tok00000", tc.page+1), b.Action)
				}
				if strings.Contains(b.Label, "/") {
					assert.Equal(t, NoopAction, b.Action)
				}
			}
			assert.Equal(t, tc.labels, labels)
		})
	}
}

func TestRenderPageIndexesContinueAcrossPages(t *testing.T) {
	_, kb := RenderPage("tok00000", pageOf(2, 2, 2, 12, true), 10, linkURL)
	assert.True(t, strings.HasPrefix(kb[0][0].Label, "11. "))
	assert.True(t, strings.HasPrefix(kb[1][0].Label, "12. "))
}

func TestRenderPageDisablesUnlinkedEntries(t *testing.T) {
	_, kb := RenderPage("tok00000", pageOf(1, 1, 1, 1, false), 10, linkURL)
	require.Len(t, kb, 1)
	assert.Equal(t, "1. file-0.mkv (no link)", kb[0][0].Label)
	assert.Equal(t, NoopAction, kb[0][0].Action)
	assert.Empty(t, kb[0][0].URL)

	_, kb = RenderPage("tok00000", pageOf(1, 1, 1, 1, true), 10, func(string) string { return "" })
	assert.Equal(t, NoopAction, kb[0][0].Action)
}

func TestRenderPageEmpty(t *testing.T) {
	text, kb := RenderPage("tok00000", &search.Page{Query: "x", Page: 1}, 10, linkURL)
	assert.Contains(t, text, "Page: 1/1")
	assert.Empty(t, kb)
}

func TestEntryLabelTruncates(t *testing.T) {
	title := strings.Repeat("é", 80)
	it := &model.Item{Metadata: model.Metadata{Title: &title}}
	label := entryLabel(7, it)
	assert.Equal(t, labelLimit, len([]rune(label)))
	assert.True(t, strings.HasSuffix(label, "..."))
	assert.True(t, strings.HasPrefix(label, "7. "))

	assert.Equal(t, "1. Unnamed file", entryLabel(1, &model.Item{}))
}

func TestParseAction(t *testing.T) {
	tok, page, ok := ParseAction(NavAction("abcd1234", 3))
	require.True(t, ok)
	assert.Equal(t, "abcd1234", tok)
	assert.Equal(t, 3, page)

	for _, bad := range []string{"", NoopAction, "srch:abc", "srch:abc:x", "other:abc:1", "srch:a-b:1", "srch:ABCD1234:2", "srch:abcd123:2", "srch:abcd12345:2"} {
		_, _, ok := ParseAction(bad)
		assert.False(t, ok, bad)
	}
}
