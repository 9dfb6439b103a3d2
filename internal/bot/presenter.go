package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dharsanguruparan/vaultlink/internal/model"
	"github.com/dharsanguruparan/vaultlink/internal/search"
)

const (
	// NoopAction marks buttons that do nothing when pressed.
	NoopAction = "srch:noop"

	labelLimit  = 56
	noLinkLabel = " (no link)"
)

var actionRe = regexp.MustCompile(`^srch:([0-9a-z]{8}):(\d+)$`)

// Button is one inline control. Exactly one of URL and Action is set.
type Button struct {
	Label  string
	URL    string
	Action string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// NavAction encodes a page change for the session token.
func NavAction(tok string, page int) string {
	return fmt.Sprintf("srch:%s:%d", tok, page)
}

// ParseAction decodes data produced by NavAction.
func ParseAction(data string) (tok string, page int, ok bool) {
	m := actionRe.FindStringSubmatch(data)
	if m == nil {
		return "", 0, false
	}
	page, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], page, true
}

// RenderPage builds the message text and keyboard for one page of results.
// linkURL turns a link id into an openable URL; an empty return disables the
// entry. The navigation row is only present when there is more than one page.
func RenderPage(tok string, p *search.Page, pageSize int, linkURL func(string) string) (string, Keyboard) {
	text := strings.Join([]string{
		"Search: " + p.Query,
		"Results: " + strconv.Itoa(p.Total),
		fmt.Sprintf("Page: %d/%d", p.Page, max(p.TotalPages, 1)),
		"",
		"Tap a button to open the stored file link.",
	}, "\n")

	kb := make(Keyboard, 0, len(p.Results)+1)
	start := (p.Page-1)*pageSize + 1
	for i, r := range p.Results {
		label := entryLabel(start+i, r.Item)
		url := ""
		if r.LinkID != "" && linkURL != nil {
			url = linkURL(r.LinkID)
		}
		if url != "" {
			kb = append(kb, []Button{{Label: label, URL: url}})
		} else {
			kb = append(kb, []Button{{Label: label + noLinkLabel, Action: NoopAction}})
		}
	}
	if nav := navRow(tok, p.Page, p.TotalPages); nav != nil {
		kb = append(kb, nav)
	}
	return text, kb
}

func navRow(tok string, page, totalPages int) []Button {
	if totalPages <= 1 {
		return nil
	}
	row := make([]Button, 0, 3)
	if page > 1 {
		row = append(row, Button{Label: "Prev", Action: NavAction(tok, page-1)})
	}
	row = append(row, Button{Label: fmt.Sprintf("%d/%d", page, totalPages), Action: NoopAction})
	if page < totalPages {
		row = append(row, Button{Label: "Next", Action: NavAction(tok, page+1)})
	}
	return row
}

func entryLabel(index int, it *model.Item) string {
	return truncate(fmt.Sprintf("%d. %s", index, it.DisplayTitle()), labelLimit)
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}
