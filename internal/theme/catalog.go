package theme

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ResolutionError reports requested themes that matched nothing in the
// catalog, neither by id nor by title.
type ResolutionError struct {
	Unresolved []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no catalog theme matches %s", strings.Join(e.Unresolved, ", "))
}

// Requested is a theme as named by a plan request.
type Requested struct {
	Ref  Ref
	Name string
}

// Catalog is a read-only index over the theme catalog.
type Catalog struct {
	themes  []Theme
	byID    map[int]*Theme
	byTitle map[string]*Theme
}

// NewCatalog indexes the given themes. Themes without a block id are
// assigned one from DefaultBlocks.
func NewCatalog(themes []Theme) *Catalog {
	c := &Catalog{
		themes:  make([]Theme, len(themes)),
		byID:    make(map[int]*Theme, len(themes)),
		byTitle: make(map[string]*Theme, len(themes)),
	}
	copy(c.themes, themes)
	sort.Slice(c.themes, func(i, j int) bool { return c.themes[i].ID < c.themes[j].ID })

	for i := range c.themes {
		t := &c.themes[i]
		if t.BlockID == 0 {
			t.BlockID = BlockFor(DefaultBlocks, t.ID)
		}
		if t.Complexity == "" {
			t.Complexity = ComplexityMedium
		}
		c.byID[t.ID] = t
		if key := foldTitle(t.Title); key != "" {
			if _, dup := c.byTitle[key]; !dup {
				c.byTitle[key] = t
			}
		}
	}
	return c
}

// All returns the catalog themes ordered by id.
func (c *Catalog) All() []Theme {
	out := make([]Theme, len(c.themes))
	copy(out, c.themes)
	return out
}

// Len returns the number of themes in the catalog.
func (c *Catalog) Len() int { return len(c.themes) }

// Get looks up a theme by id.
func (c *Catalog) Get(id int) (Theme, bool) {
	t, ok := c.byID[id]
	if !ok {
		return Theme{}, false
	}
	return *t, true
}

// Resolve finds the catalog theme for a request. The base id wins; when it
// is unknown the name is matched against titles, first exactly and then by
// containment, ignoring case and accents.
func (c *Catalog) Resolve(req Requested) (Theme, error) {
	if t, ok := c.byID[req.Ref.BaseID]; ok {
		return *t, nil
	}
	if t, ok := c.matchTitle(req.Name); ok {
		return t, nil
	}
	label := req.Ref.String()
	if req.Name != "" {
		label = fmt.Sprintf("%s (%q)", label, req.Name)
	}
	return Theme{}, &ResolutionError{Unresolved: []string{label}}
}

func (c *Catalog) matchTitle(name string) (Theme, bool) {
	key := foldTitle(name)
	if key == "" {
		return Theme{}, false
	}
	if t, ok := c.byTitle[key]; ok {
		return *t, true
	}
	// Containment in either direction, lowest id first.
	for i := range c.themes {
		title := foldTitle(c.themes[i].Title)
		if title == "" {
			continue
		}
		if strings.Contains(title, key) || strings.Contains(key, title) {
			return c.themes[i], true
		}
	}
	return Theme{}, false
}

// foldTitle lowercases, strips diacritics and collapses whitespace.
func foldTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
