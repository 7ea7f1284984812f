// Package catalog serves the public template gallery and freelancer
// directory. Both are read-only mock data embedded as YAML and filtered in
// memory.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ErrNotFound is returned for an unknown slug.
var ErrNotFound = errors.New("catalog: not found")

// Template is a website template offered in the gallery.
type Template struct {
	ID          string    `yaml:"id" json:"id"`
	Slug        string    `yaml:"slug" json:"slug"`
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Category    string    `yaml:"category" json:"category"`
	Price       int       `yaml:"price" json:"price"`
	Premium     bool      `yaml:"premium" json:"isPremium"`
	Features    []string  `yaml:"features" json:"features"`
	Rating      float64   `yaml:"rating" json:"rating"`
	ReviewCount int       `yaml:"reviewCount" json:"reviewCount"`
	Downloads   int       `yaml:"downloads" json:"downloads"`
	Tags        []string  `yaml:"tags" json:"tags"`
	Featured    bool      `yaml:"featured" json:"featured"`
	CreatedAt   time.Time `yaml:"createdAt" json:"createdAt"`
}

// Freelancer is a profile in the freelancer directory.
type Freelancer struct {
	ID                string   `yaml:"id" json:"id"`
	Slug              string   `yaml:"slug" json:"slug"`
	Name              string   `yaml:"name" json:"name"`
	Title             string   `yaml:"title" json:"title"`
	Location          string   `yaml:"location" json:"location"`
	HourlyRate        int      `yaml:"hourlyRate" json:"hourlyRate"`
	Rating            float64  `yaml:"rating" json:"rating"`
	ReviewCount       int      `yaml:"reviewCount" json:"reviewCount"`
	CompletedProjects int      `yaml:"completedProjects" json:"completedProjects"`
	ResponseTime      string   `yaml:"responseTime" json:"responseTime"`
	Skills            []string `yaml:"skills" json:"skills"`
	Categories        []string `yaml:"categories" json:"categories"`
	Bio               string   `yaml:"bio" json:"bio"`
	Languages         []string `yaml:"languages" json:"languages"`
	Verified          bool     `yaml:"verified" json:"isVerified"`
	TopRated          bool     `yaml:"topRated" json:"isTopRated"`
}

// Score ranks freelancers for the "recommended" sort.
func (f Freelancer) Score() float64 {
	s := f.Rating * float64(f.ReviewCount)
	if f.TopRated {
		s += 1000
	}
	return s
}

// Category is a browse category with a display name.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TemplateCategories are the template gallery sections.
var TemplateCategories = []Category{
	{"business", "Business"},
	{"ecommerce", "E-commerce"},
	{"portfolio", "Portfolio"},
	{"blog", "Blog"},
	{"landing", "Landing page"},
	{"saas", "SaaS"},
	{"restaurant", "Restaurant"},
	{"healthcare", "Healthcare"},
	{"education", "Education"},
	{"realestate", "Real estate"},
	{"fitness", "Fitness"},
	{"photography", "Photography"},
	{"nonprofit", "Nonprofit"},
}

// FreelancerCategories are the freelancer directory sections.
var FreelancerCategories = []Category{
	{"web-development", "Web development"},
	{"web-design", "Web design"},
	{"ui-ux", "UI/UX design"},
	{"graphic-design", "Graphic design"},
	{"photography", "Photography"},
	{"video", "Video production"},
	{"seo", "SEO & digital marketing"},
	{"content", "Content writing"},
}

// Catalog holds the loaded mock data. It is safe for concurrent use
// because nothing mutates it after Load.
type Catalog struct {
	templates   []Template
	freelancers []Freelancer
	tags        []string
	skills      []string
}

// Load parses the embedded data files.
func Load() (*Catalog, error) {
	c := &Catalog{}
	if err := decode("data/templates.yaml", &c.templates); err != nil {
		return nil, err
	}
	if err := decode("data/freelancers.yaml", &c.freelancers); err != nil {
		return nil, err
	}
	var tags, skills [][]string
	for _, t := range c.templates {
		tags = append(tags, t.Tags)
	}
	for _, f := range c.freelancers {
		skills = append(skills, f.Skills)
	}
	c.tags = distinct(tags)
	c.skills = distinct(skills)
	return c, nil
}

// MustLoad is Load for package initialization; it panics on bad data.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func decode(name string, v any) error {
	b, err := dataFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(b, v); err != nil {
		return fmt.Errorf("catalog: parse %s: %w", name, err)
	}
	return nil
}

func distinct(lists [][]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Templates returns every template in data order.
func (c *Catalog) Templates() []Template {
	return append([]Template(nil), c.templates...)
}

// Freelancers returns every freelancer in data order.
func (c *Catalog) Freelancers() []Freelancer {
	return append([]Freelancer(nil), c.freelancers...)
}

// Tags returns every template tag, sorted.
func (c *Catalog) Tags() []string { return append([]string(nil), c.tags...) }

// Skills returns every freelancer skill, sorted.
func (c *Catalog) Skills() []string { return append([]string(nil), c.skills...) }

// TemplateBySlug looks up one template.
func (c *Catalog) TemplateBySlug(slug string) (Template, error) {
	for _, t := range c.templates {
		if t.Slug == slug {
			return t, nil
		}
	}
	return Template{}, ErrNotFound
}

// FreelancerBySlug looks up one freelancer.
func (c *Catalog) FreelancerBySlug(slug string) (Freelancer, error) {
	for _, f := range c.freelancers {
		if f.Slug == slug {
			return f, nil
		}
	}
	return Freelancer{}, ErrNotFound
}

// Related returns up to n other templates in the same category, then the
// most downloaded of the rest.
func (c *Catalog) Related(t Template, n int) []Template {
	var same, rest []Template
	for _, o := range c.templates {
		switch {
		case o.Slug == t.Slug:
		case o.Category == t.Category:
			same = append(same, o)
		default:
			rest = append(rest, o)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Downloads > rest[j].Downloads })
	out := append(same, rest...)
	if len(out) > n {
		out = out[:n]
	}
	return out
}
