// Package catalog loads the registration forms and the institution dataset
// from YAML definitions.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/hsche/edureg/pkg/forms"
)

//go:embed data
var embedded embed.FS

// ErrUnknownForm is returned for slugs not in the catalog.
var ErrUnknownForm = errors.New("catalog: unknown form")

// Page is one entry of the numbered page sequence (/form/pageN).
type Page struct {
	Number int
	Slug   string
	Title  string
}

// Catalog holds the parsed forms, the page sequence and the institutions.
type Catalog struct {
	schemas      map[string]*forms.Schema
	pages        []Page
	institutions []Institution
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		sub, err := fs.Sub(embedded, "data")
		if err != nil {
			defaultErr = err
			return
		}
		defaultCatalog, defaultErr = Load(sub)
	})
	return defaultCatalog, defaultErr
}

// MustDefault is Default for callers that cannot continue without it.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads institutions.yaml and forms/*.yaml from fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	institutions, raw, err := loadInstitutions(fsys)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(fsys, "forms/*.yaml")
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		schemas:      make(map[string]*forms.Schema, len(files)),
		institutions: institutions,
	}

	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		var def formDef
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if def.Slug == "" {
			def.Slug = slug.Make(strings.TrimSuffix(path.Base(name), path.Ext(name)))
		}

		schema, err := def.build(institutions, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if _, dup := c.schemas[schema.Slug]; dup {
			return nil, fmt.Errorf("%s: duplicate form slug %q", name, schema.Slug)
		}
		c.schemas[schema.Slug] = schema
		c.pages = append(c.pages, Page{Number: def.Page, Slug: schema.Slug, Title: schema.Title})
	}

	sort.SliceStable(c.pages, func(i, j int) bool {
		if c.pages[i].Number != c.pages[j].Number {
			return c.pages[i].Number < c.pages[j].Number
		}
		return c.pages[i].Slug < c.pages[j].Slug
	})
	for i := range c.pages {
		c.pages[i].Number = i + 1
	}
	return c, nil
}

// Schema returns a copy of the schema for slug.
func (c *Catalog) Schema(slug string) (*forms.Schema, error) {
	s, ok := c.schemas[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, slug)
	}
	return s.Clone(), nil
}

// Schemas returns copies of every schema in page order.
func (c *Catalog) Schemas() []*forms.Schema {
	out := make([]*forms.Schema, 0, len(c.pages))
	for _, p := range c.pages {
		out = append(out, c.schemas[p.Slug].Clone())
	}
	return out
}

// Pages returns the page sequence, numbered from 1.
func (c *Catalog) Pages() []Page {
	return append([]Page(nil), c.pages...)
}

// PageCount returns the number of pages.
func (c *Catalog) PageCount() int {
	return len(c.pages)
}

// Page returns page n, clamping n into 1..PageCount.
func (c *Catalog) Page(n int) Page {
	if len(c.pages) == 0 {
		return Page{}
	}
	return c.pages[ClampPage(n, len(c.pages))-1]
}

// PageOf returns the page showing the given form.
func (c *Catalog) PageOf(slug string) (Page, bool) {
	for _, p := range c.pages {
		if p.Slug == slug {
			return p, true
		}
	}
	return Page{}, false
}

// ClampPage clamps n into 1..total.
func ClampPage(n, total int) int {
	if n < 1 {
		return 1
	}
	if n > total {
		return total
	}
	return n
}

// Institutions returns the institution dataset.
func (c *Catalog) Institutions() []Institution {
	return append([]Institution(nil), c.institutions...)
}
