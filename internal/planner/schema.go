package planner

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column describes one queryable column.
type Column struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
}

// Table describes one tenant-scoped analytics table. Keywords are extra
// words that route a question to the table.
type Table struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords,omitempty"`
	Columns     []Column `yaml:"columns"`
}

// Catalog is the set of tables the planner may describe to the model.
type Catalog struct {
	Tables []Table `yaml:"tables"`
}

// coreTables are described when nothing in the question matches.
var coreTables = []string{"ga_data", "gsc_data"}

// DefaultCatalog returns the built-in description of the analytics tables.
func DefaultCatalog() *Catalog {
	return &Catalog{Tables: []Table{
		{
			Name:        "ga_data",
			Description: "Daily Google Analytics 4 traffic per page, source and country",
			Keywords: []string{
				"traffic", "visitors", "visits", "users", "sessions", "pageviews",
				"bounce", "engagement", "country", "countries", "device", "source",
				"medium", "channel", "referral", "organic", "landing", "conversions",
			},
			Columns: []Column{
				{Name: "user_id", Type: "text", Description: "account owner, always filter on it"},
				{Name: "date", Type: "date"},
				{Name: "page_path", Type: "text"},
				{Name: "source", Type: "text"},
				{Name: "medium", Type: "text"},
				{Name: "country", Type: "text"},
				{Name: "device_category", Type: "text", Description: "desktop, mobile or tablet"},
				{Name: "sessions", Type: "integer"},
				{Name: "active_users", Type: "integer"},
				{Name: "new_users", Type: "integer"},
				{Name: "page_views", Type: "integer"},
				{Name: "bounce_rate", Type: "numeric", Description: "0 to 1"},
				{Name: "avg_session_duration", Type: "numeric", Description: "seconds"},
				{Name: "conversions", Type: "integer"},
			},
		},
		{
			Name:        "gsc_data",
			Description: "Daily Google Search Console performance per query and page",
			Keywords: []string{
				"search", "clicks", "impressions", "ctr", "position", "ranking",
				"rankings", "rank", "keyword", "keywords", "query", "queries", "serp",
				"google",
			},
			Columns: []Column{
				{Name: "user_id", Type: "text", Description: "account owner, always filter on it"},
				{Name: "date", Type: "date"},
				{Name: "query", Type: "text", Description: "search term"},
				{Name: "page", Type: "text", Description: "landing URL"},
				{Name: "country", Type: "text"},
				{Name: "device", Type: "text"},
				{Name: "clicks", Type: "integer"},
				{Name: "impressions", Type: "integer"},
				{Name: "ctr", Type: "numeric", Description: "0 to 1"},
				{Name: "position", Type: "numeric", Description: "average ranking, lower is better"},
			},
		},
		{
			Name:        "pagespeed_data",
			Description: "PageSpeed Insights and Core Web Vitals audits per URL",
			Keywords: []string{
				"speed", "pagespeed", "performance", "vitals", "lcp", "cls", "inp",
				"fcp", "ttfb", "lighthouse", "slow", "fast", "load",
			},
			Columns: []Column{
				{Name: "user_id", Type: "text", Description: "account owner, always filter on it"},
				{Name: "url", Type: "text"},
				{Name: "strategy", Type: "text", Description: "mobile or desktop"},
				{Name: "performance_score", Type: "integer", Description: "0 to 100"},
				{Name: "lcp_ms", Type: "integer"},
				{Name: "cls", Type: "numeric"},
				{Name: "inp_ms", Type: "integer"},
				{Name: "fcp_ms", Type: "integer"},
				{Name: "ttfb_ms", Type: "integer"},
				{Name: "checked_at", Type: "timestamptz"},
			},
		},
	}}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Tables) == 0 {
		return nil, fmt.Errorf("catalog %s has no tables", path)
	}
	for i, t := range c.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("catalog table %d has no name", i)
		}
	}
	return &c, nil
}

// TableNames returns every table name in catalog order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Name
	}
	return names
}

// Select returns the tables relevant to the question, best match first.
// A table scores one point per question token matching its name, a
// keyword or a column. With no match the core tables are returned.
func (c *Catalog) Select(question string) []Table {
	tokens := tokenize(question)

	type scored struct {
		table Table
		score int
		order int
	}
	var hits []scored
	for i, t := range c.Tables {
		if s := t.score(tokens); s > 0 {
			hits = append(hits, scored{t, s, i})
		}
	}

	if len(hits) == 0 {
		return c.core()
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})
	out := make([]Table, len(hits))
	for i, h := range hits {
		out[i] = h.table
	}
	return out
}

func (c *Catalog) core() []Table {
	var out []Table
	for _, name := range coreTables {
		for _, t := range c.Tables {
			if t.Name == name {
				out = append(out, t.minimal())
			}
		}
	}
	if len(out) == 0 && len(c.Tables) > 0 {
		out = append(out, c.Tables[0].minimal())
	}
	return out
}

func (t Table) score(tokens []string) int {
	name := strings.ToLower(t.Name)
	s := 0
	for _, tok := range tokens {
		switch {
		case strings.Contains(name, tok):
			s++
		case containsFold(t.Keywords, tok):
			s++
		default:
			for _, col := range t.Columns {
				if strings.EqualFold(col.Name, tok) || strings.Contains(strings.ToLower(col.Name), tok) {
					s++
					break
				}
			}
		}
	}
	return s
}

// minimal drops column descriptions to keep the fallback prompt small.
func (t Table) minimal() Table {
	cols := make([]Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = Column{Name: c.Name, Type: c.Type}
	}
	return Table{Name: t.Name, Description: t.Description, Columns: cols}
}

// tokenize lowercases the question and keeps words longer than two runes.
func tokenize(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len([]rune(f)) <= 2 || seen[f] || stopwords[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "show": true, "what": true,
	"which": true, "with": true, "from": true, "this": true, "that": true,
	"are": true, "was": true, "how": true, "many": true, "much": true,
	"give": true, "list": true, "get": true, "all": true, "per": true,
	"last": true, "month": true, "week": true, "year": true, "day": true,
	"today": true, "yesterday": true, "top": true, "most": true, "our": true,
	"site": true, "website": true, "data": true,
}
