// Package wizard drives the guided website creation flow. A session walks
// through numbered steps; its data is persisted between requests and turned
// into a website with default pages on the last step.
package wizard

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TotalSteps counts every step including the final "complete" step.
const TotalSteps = 6

// LastInputStep is the last step that collects data. Step 6 is reached only
// by CreateWebsite.
const LastInputStep = 5

// Step describes one wizard page.
type Step struct {
	Number int    `json:"number"`
	Key    string `json:"key"`
	Title  string `json:"title"`
}

// Steps lists the wizard pages in order.
var Steps = []Step{
	{1, "business", "Business"},
	{2, "design", "Design"},
	{3, "template", "Template style"},
	{4, "domain", "Domain"},
	{5, "plan", "Plan"},
	{6, "complete", "Complete"},
}

// Option is a selectable choice with a display name.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BusinessTypes are the supported kinds of website.
var BusinessTypes = []Option{
	{"restaurant", "Restaurant / Cafe"},
	{"ecommerce", "E-commerce"},
	{"service", "Services"},
	{"portfolio", "Portfolio"},
	{"blog", "Blog"},
	{"corporate", "Corporate"},
	{"education", "Education"},
	{"health", "Health"},
	{"realestate", "Real estate"},
	{"tech", "Technology"},
	{"fitness", "Sports / Fitness"},
	{"beauty", "Beauty / Spa"},
	{"event", "Events"},
	{"nonprofit", "Nonprofit"},
	{"other", "Other"},
}

// ColorScheme is a preset palette.
type ColorScheme struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// ColorSchemes are the palettes offered on the design step.
var ColorSchemes = []ColorScheme{
	{"ocean", "Ocean", "#0ea5e9", "#06b6d4"},
	{"forest", "Forest", "#22c55e", "#16a34a"},
	{"sunset", "Sunset", "#f97316", "#ef4444"},
	{"purple", "Purple", "#8b5cf6", "#a855f7"},
	{"rose", "Rose", "#f43f5e", "#ec4899"},
	{"slate", "Slate", "#64748b", "#475569"},
}

// TemplateStyles are the layouts offered on the template step.
var TemplateStyles = []Option{
	{"modern", "Modern"},
	{"classic", "Classic"},
	{"minimal", "Minimal"},
	{"bold", "Bold"},
}

// Plan is a hosting plan offered on the plan step.
type Plan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
}

// Plans are the hosting plans, cheapest first.
var Plans = []Plan{
	{"free", "Free", 0},
	{"starter", "Starter", 900},
	{"pro", "Pro", 2900},
	{"business", "Business", 7900},
}

// PlanByID returns the plan with id.
func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

func hasOption(opts []Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}

// ValidBusinessType reports whether id is a known business type.
func ValidBusinessType(id string) bool { return hasOption(BusinessTypes, id) }

func validColorScheme(id string) bool {
	for _, c := range ColorSchemes {
		if c.ID == id {
			return true
		}
	}
	return false
}

var (
	ErrNotFound            = errors.New("wizard: session not found")
	ErrInvalidBusinessType = errors.New("wizard: unknown business type")
	ErrInvalidStep         = errors.New("wizard: step out of range")
	ErrCompleted           = errors.New("wizard: session already completed")
	ErrSubdomainTaken      = errors.New("wizard: subdomain is already taken")
	ErrInvalidSubdomain    = errors.New("wizard: invalid subdomain")
	ErrWebsiteNotFound     = errors.New("wizard: website not found")
)

// StepError names the field that blocks leaving a step.
type StepError struct {
	Step   int
	Field  string
	Reason string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("wizard: step %d: %s %s", e.Step, e.Field, e.Reason)
}

// Data is the free-form answers collected so far.
type Data map[string]any

// String returns the trimmed string value of key, or "".
func (d Data) String(key string) string {
	s, _ := d[key].(string)
	return strings.TrimSpace(s)
}

// Merge overlays next on a copy of d.
func (d Data) Merge(next Data) Data {
	out := make(Data, len(d)+len(next))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range next {
		out[k] = v
	}
	return out
}

// Session is one visitor's progress through the wizard.
type Session struct {
	ID           string    `json:"id"`
	Step         int       `json:"step"`
	BusinessType string    `json:"businessType"`
	Data         Data      `json:"data"`
	Completed    bool      `json:"completed"`
	WebsiteID    string    `json:"websiteId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CurrentStep returns the Step description for the session's step.
func (s Session) CurrentStep() Step {
	if s.Step < 1 || s.Step > len(Steps) {
		return Steps[0]
	}
	return Steps[s.Step-1]
}

// Progress is the wizard progress bar.
type Progress struct {
	Step       int `json:"step"`
	TotalSteps int `json:"totalSteps"`
	Percent    int `json:"percent"`
}

// ProgressOf reports how far a session has come.
func ProgressOf(s Session) Progress {
	return Progress{
		Step:       s.Step,
		TotalSteps: TotalSteps,
		Percent:    int(float64(s.Step)/TotalSteps*100 + 0.5),
	}
}

// CanProceed checks that data holds everything step needs before moving on.
func CanProceed(step int, data Data) error {
	switch step {
	case 1:
		if !ValidBusinessType(data.String("businessType")) {
			return &StepError{1, "businessType", "must be a known business type"}
		}
		if data.String("businessName") == "" {
			return &StepError{1, "businessName", "is required"}
		}
	case 2:
		if !validColorScheme(data.String("colorScheme")) {
			return &StepError{2, "colorScheme", "must be a known color scheme"}
		}
	case 3:
		if !hasOption(TemplateStyles, data.String("templateStyle")) {
			return &StepError{3, "templateStyle", "must be a known style"}
		}
	case 4:
		if err := ValidateSubdomain(data.String("subdomain")); err != nil {
			return &StepError{4, "subdomain", strings.TrimPrefix(err.Error(), ErrInvalidSubdomain.Error()+": ")}
		}
	case 5:
		if _, ok := PlanByID(data.String("plan")); !ok {
			return &StepError{5, "plan", "must be a known plan"}
		}
	default:
		return ErrInvalidStep
	}
	return nil
}

// ReservedSubdomains cannot be claimed by websites.
var ReservedSubdomains = []string{"www", "admin", "api", "app", "mail", "console", "static"}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// NormalizeSubdomain lowercases and trims s.
func NormalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateSubdomain checks a normalized subdomain.
func ValidateSubdomain(s string) error {
	switch {
	case len(s) < 3 || len(s) > 30:
		return fmt.Errorf("%w: must be 3 to 30 characters", ErrInvalidSubdomain)
	case !subdomainPattern.MatchString(s):
		return fmt.Errorf("%w: only lowercase letters, digits and hyphens", ErrInvalidSubdomain)
	case strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-"):
		return fmt.Errorf("%w: cannot start or end with a hyphen", ErrInvalidSubdomain)
	}
	for _, r := range ReservedSubdomains {
		if s == r {
			return fmt.Errorf("%w: %q is reserved", ErrInvalidSubdomain, s)
		}
	}
	return nil
}

// PageSpec is a default page created with a website.
type PageSpec struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

var businessPages = map[string]PageSpec{
	"restaurant": {"menu", "Menu"},
	"ecommerce":  {"products", "Products"},
	"service":    {"services", "Services"},
	"portfolio":  {"portfolio", "Portfolio"},
	"blog":       {"blog", "Blog"},
	"corporate":  {"team", "Team"},
	"education":  {"courses", "Courses"},
	"health":     {"appointments", "Appointments"},
	"realestate": {"listings", "Listings"},
	"tech":       {"pricing", "Pricing"},
	"fitness":    {"classes", "Classes"},
	"beauty":     {"booking", "Booking"},
	"event":      {"schedule", "Schedule"},
	"nonprofit":  {"donate", "Donate"},
}

// DefaultPages returns the pages created for a new website of businessType:
// home, about and contact, plus one page specific to the business.
func DefaultPages(businessType string) []PageSpec {
	pages := []PageSpec{{"", "Home"}, {"about", "About"}}
	if p, ok := businessPages[businessType]; ok {
		pages = append(pages, p)
	}
	return append(pages, PageSpec{"contact", "Contact"})
}

// SubdomainCheck is the answer to an availability query.
type SubdomainCheck struct {
	Subdomain string `json:"subdomain"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
	URL       string `json:"url"`
}

// Website is a site created by the wizard.
type Website struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	Name          string    `json:"name"`
	Subdomain     string    `json:"subdomain"`
	BusinessType  string    `json:"businessType"`
	ColorScheme   string    `json:"colorScheme"`
	TemplateStyle string    `json:"templateStyle"`
	Plan          string    `json:"plan"`
	Logo          string    `json:"logo,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Page is one page of a website.
type Page struct {
	ID        int64  `json:"id"`
	WebsiteID string `json:"websiteId"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Position  int    `json:"position"`
	Published bool   `json:"published"`
}

// Count pairs a label with a number, for the analytics tables.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics summarizes wizard usage for the admin dashboard.
type Analytics struct {
	TotalSessions     int     `json:"totalSessions"`
	CompletedWebsites int     `json:"completedWebsites"`
	AbandonedSessions int     `json:"abandonedSessions"`
	ConversionRate    float64 `json:"conversionRate"`
	BusinessTypes     []Count `json:"businessTypes"`
	Funnel            []Count `json:"funnel"`
}
