package wizard

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/panelengine/database"
	"github.com/eringen/panelengine/paging"
	"github.com/eringen/panelengine/report"
)

// Store persists wizard sessions and the websites they create.
type Store struct {
	db         *sql.DB
	rootDomain string
	now        func() time.Time
}

// NewStore wraps db and creates the wizard tables. rootDomain is the parent
// domain of every website, e.g. "sites.example.com".
func NewStore(db *sql.DB, rootDomain string) (*Store, error) {
	s := &Store{db: db, rootDomain: rootDomain, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("wizard schema: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS wizard_sessions (
    id TEXT PRIMARY KEY,
    step INTEGER NOT NULL DEFAULT 1,
    business_type TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}',
    completed INTEGER NOT NULL DEFAULT 0,
    website_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wizard_sessions_updated ON wizard_sessions(updated_at);

CREATE TABLE IF NOT EXISTS websites (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    name TEXT NOT NULL,
    subdomain TEXT NOT NULL UNIQUE,
    business_type TEXT NOT NULL,
    color_scheme TEXT NOT NULL,
    template_style TEXT NOT NULL,
    plan TEXT NOT NULL,
    logo TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'BUILDING',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS website_pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    website_id TEXT NOT NULL REFERENCES websites(id) ON DELETE CASCADE,
    slug TEXT NOT NULL,
    title TEXT NOT NULL,
    position INTEGER NOT NULL,
    published INTEGER NOT NULL DEFAULT 0,
    UNIQUE (website_id, slug)
);
`)
	return err
}

const sessionColumns = `id, step, business_type, data, completed, website_id, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var ses Session
	var data, created, updated string
	var completed int
	if err := row.Scan(&ses.ID, &ses.Step, &ses.BusinessType, &data, &completed, &ses.WebsiteID, &created, &updated); err != nil {
		return Session{}, err
	}
	ses.Data = Data{}
	if err := json.Unmarshal([]byte(data), &ses.Data); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", ses.ID, err)
	}
	ses.Completed = completed == 1
	ses.CreatedAt = database.ParseTime(created)
	ses.UpdatedAt = database.ParseTime(updated)
	return ses, nil
}

// Start opens a session at step 1 for businessType.
func (s *Store) Start(ctx context.Context, businessType string) (Session, error) {
	if !ValidBusinessType(businessType) {
		return Session{}, ErrInvalidBusinessType
	}
	now := s.now().UTC().Truncate(time.Second)
	ses := Session{
		ID:           uuid.NewString(),
		Step:         1,
		BusinessType: businessType,
		Data:         Data{"businessType": businessType},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, _ := json.Marshal(ses.Data)
	_, err := s.db.ExecContext(ctx, `INSERT INTO wizard_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, 0, '', ?, ?)`,
		ses.ID, ses.Step, ses.BusinessType, string(data), database.FormatTime(now), database.FormatTime(now))
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return ses, nil
}

// Get returns a session.
func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	ses, err := scanSession(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM wizard_sessions WHERE id = ?`, id))
	return ses, database.NotFound(err, ErrNotFound)
}

func (s *Store) save(ctx context.Context, ses Session) (Session, error) {
	if bt := ses.Data.String("businessType"); ValidBusinessType(bt) {
		ses.BusinessType = bt
	}
	ses.UpdatedAt = s.now().UTC().Truncate(time.Second)
	data, err := json.Marshal(ses.Data)
	if err != nil {
		return Session{}, fmt.Errorf("encode session data: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE wizard_sessions SET step = ?, business_type = ?, data = ?, updated_at = ? WHERE id = ?`,
		ses.Step, ses.BusinessType, string(data), database.FormatTime(ses.UpdatedAt), ses.ID)
	if err != nil {
		return Session{}, fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, ErrNotFound
	}
	return ses, nil
}

func (s *Store) open(ctx context.Context, id string) (Session, error) {
	ses, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if ses.Completed {
		return Session{}, ErrCompleted
	}
	return ses, nil
}

// Update merges data into the session and sets its step. The step may stay
// or move back but never forward; use Advance to move forward.
func (s *Store) Update(ctx context.Context, id string, step int, data Data) (Session, error) {
	ses, err := s.open(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if step < 1 || step > LastInputStep || step > ses.Step {
		return Session{}, ErrInvalidStep
	}
	ses.Step = step
	ses.Data = ses.Data.Merge(data)
	return s.save(ctx, ses)
}

// Advance merges data, checks the current step is satisfied and moves to the
// next step. At the last input step the session stays put; CreateWebsite
// finishes it. A *StepError names the missing field.
func (s *Store) Advance(ctx context.Context, id string, data Data) (Session, error) {
	ses, err := s.open(ctx, id)
	if err != nil {
		return Session{}, err
	}
	ses.Data = ses.Data.Merge(data)
	if sub, ok := ses.Data["subdomain"].(string); ok {
		ses.Data["subdomain"] = NormalizeSubdomain(sub)
	}
	if err := CanProceed(ses.Step, ses.Data); err != nil {
		// Keep what was typed so the form can be shown again.
		if _, serr := s.save(ctx, ses); serr != nil {
			return Session{}, serr
		}
		return Session{}, err
	}
	if ses.Step == 4 {
		taken, err := s.subdomainTaken(ctx, ses.Data.String("subdomain"))
		if err != nil {
			return Session{}, err
		}
		if taken {
			return Session{}, &StepError{4, "subdomain", "is already taken"}
		}
	}
	if ses.Step < LastInputStep {
		ses.Step++
	}
	return s.save(ctx, ses)
}

// Back moves one step back, stopping at step 1.
func (s *Store) Back(ctx context.Context, id string) (Session, error) {
	ses, err := s.open(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if ses.Step > 1 {
		ses.Step--
	}
	return s.save(ctx, ses)
}

// SetLogo records an uploaded logo filename in the session data.
func (s *Store) SetLogo(ctx context.Context, id, filename string) (Session, error) {
	ses, err := s.open(ctx, id)
	if err != nil {
		return Session{}, err
	}
	ses.Data = ses.Data.Merge(Data{"logo": filename})
	return s.save(ctx, ses)
}

// Reset deletes a session.
func (s *Store) Reset(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE id = ?`, id)
	return err
}

func (s *Store) subdomainTaken(ctx context.Context, sub string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM websites WHERE subdomain = ?`, sub).Scan(&n); err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return n > 0, nil
}

// SiteURL returns the public URL of a subdomain.
func (s *Store) SiteURL(sub string) string {
	return "https://" + sub + "." + s.rootDomain
}

// CheckSubdomain reports whether sub can be claimed.
func (s *Store) CheckSubdomain(ctx context.Context, sub string) (SubdomainCheck, error) {
	sub = NormalizeSubdomain(sub)
	out := SubdomainCheck{Subdomain: sub, URL: s.SiteURL(sub)}
	if err := ValidateSubdomain(sub); err != nil {
		out.Reason = err.Error()
		return out, nil
	}
	taken, err := s.subdomainTaken(ctx, sub)
	if err != nil {
		return SubdomainCheck{}, err
	}
	if taken {
		out.Reason = ErrSubdomainTaken.Error()
		return out, nil
	}
	out.Available = true
	return out, nil
}

// CreateWebsite turns a finished session into a website with its default
// pages and marks the session complete, all in one transaction.
func (s *Store) CreateWebsite(ctx context.Context, sessionID string) (Website, error) {
	ses, err := s.open(ctx, sessionID)
	if err != nil {
		return Website{}, err
	}
	if ses.Step < LastInputStep {
		return Website{}, &StepError{ses.Step, "step", "must reach the plan step first"}
	}
	for step := 1; step <= LastInputStep; step++ {
		if err := CanProceed(step, ses.Data); err != nil {
			return Website{}, err
		}
	}
	now := s.now().UTC().Truncate(time.Second)
	w := Website{
		ID:            uuid.NewString(),
		SessionID:     ses.ID,
		Name:          ses.Data.String("businessName"),
		Subdomain:     NormalizeSubdomain(ses.Data.String("subdomain")),
		BusinessType:  ses.BusinessType,
		ColorScheme:   ses.Data.String("colorScheme"),
		TemplateStyle: ses.Data.String("templateStyle"),
		Plan:          ses.Data.String("plan"),
		Logo:          ses.Data.String("logo"),
		Status:        "BUILDING",
		CreatedAt:     now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Website{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO websites (id, session_id, name, subdomain, business_type, color_scheme, template_style, plan, logo, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.SessionID, w.Name, w.Subdomain, w.BusinessType, w.ColorScheme, w.TemplateStyle, w.Plan, w.Logo, w.Status, database.FormatTime(w.CreatedAt))
	if database.IsUniqueViolation(err) {
		return Website{}, ErrSubdomainTaken
	}
	if err != nil {
		return Website{}, fmt.Errorf("insert website: %w", err)
	}
	for i, p := range DefaultPages(w.BusinessType) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO website_pages (website_id, slug, title, position) VALUES (?, ?, ?, ?)`, w.ID, p.Slug, p.Title, i); err != nil {
			return Website{}, fmt.Errorf("insert page %q: %w", p.Slug, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE wizard_sessions SET step = ?, completed = 1, website_id = ?, updated_at = ? WHERE id = ?`,
		TotalSteps, w.ID, database.FormatTime(now), ses.ID); err != nil {
		return Website{}, fmt.Errorf("complete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Website{}, fmt.Errorf("commit website: %w", err)
	}
	return w, nil
}

const websiteColumns = `id, session_id, name, subdomain, business_type, color_scheme, template_style, plan, logo, status, created_at`

func scanWebsite(row scanner) (Website, error) {
	var w Website
	var created string
	err := row.Scan(&w.ID, &w.SessionID, &w.Name, &w.Subdomain, &w.BusinessType, &w.ColorScheme, &w.TemplateStyle, &w.Plan, &w.Logo, &w.Status, &created)
	if err != nil {
		return Website{}, err
	}
	w.CreatedAt = database.ParseTime(created)
	return w, nil
}

// Website returns a website by ID.
func (s *Store) Website(ctx context.Context, id string) (Website, error) {
	w, err := scanWebsite(s.db.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = ?`, id))
	return w, database.NotFound(err, ErrWebsiteNotFound)
}

// WebsiteBySubdomain returns the website serving sub.
func (s *Store) WebsiteBySubdomain(ctx context.Context, sub string) (Website, error) {
	w, err := scanWebsite(s.db.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE subdomain = ?`, NormalizeSubdomain(sub)))
	return w, database.NotFound(err, ErrWebsiteNotFound)
}

// ListWebsites returns a page of websites, newest first.
func (s *Store) ListWebsites(ctx context.Context, p paging.Page) ([]Website, paging.Page, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM websites`).Scan(&total); err != nil {
		return nil, p, fmt.Errorf("count websites: %w", err)
	}
	p = p.WithTotal(total)
	rows, err := s.db.QueryContext(ctx, `SELECT `+websiteColumns+` FROM websites ORDER BY created_at DESC, subdomain LIMIT ? OFFSET ?`, p.Size, p.Offset())
	if err != nil {
		return nil, p, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()
	out := []Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, p, err
		}
		out = append(out, w)
	}
	return out, p, rows.Err()
}

// Pages returns a website's pages in menu order.
func (s *Store) Pages(ctx context.Context, websiteID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, website_id, slug, title, position, published FROM website_pages WHERE website_id = ? ORDER BY position`, websiteID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	out := []Page{}
	for rows.Next() {
		var p Page
		var published int
		if err := rows.Scan(&p.ID, &p.WebsiteID, &p.Slug, &p.Title, &p.Position, &published); err != nil {
			return nil, err
		}
		p.Published = published == 1
		out = append(out, p)
	}
	return out, rows.Err()
}

// Analytics counts sessions, completions and drop-off per step.
func (s *Store) Analytics(ctx context.Context) (Analytics, error) {
	var a Analytics
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wizard_sessions`).Scan(&a.TotalSessions)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM websites`).Scan(&a.CompletedWebsites)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM wizard_sessions WHERE step < ? AND completed = 0`, TotalSteps).Scan(&a.AbandonedSessions)
	})
	g.Go(func() error {
		var err error
		a.BusinessTypes, err = s.counts(ctx, `SELECT business_type, COUNT(*) AS n FROM wizard_sessions GROUP BY business_type ORDER BY n DESC, business_type LIMIT 10`)
		return err
	})
	g.Go(func() error {
		byStep, err := s.counts(ctx, `SELECT CAST(step AS TEXT), COUNT(*) FROM wizard_sessions GROUP BY step`)
		if err != nil {
			return err
		}
		have := make(map[string]int, len(byStep))
		for _, c := range byStep {
			have[c.Name] = c.Count
		}
		a.Funnel = make([]Count, len(Steps))
		for i, st := range Steps {
			a.Funnel[i] = Count{Name: st.Key, Count: have[fmt.Sprint(st.Number)]}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("wizard analytics: %w", err)
	}
	a.ConversionRate = report.PercentFloat(a.CompletedWebsites, a.TotalSessions)
	return a, nil
}

func (s *Store) counts(ctx context.Context, query string) ([]Count, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Count{}
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExpireStale deletes unfinished sessions not touched since before and
// returns how many were removed.
func (s *Store) ExpireStale(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE completed = 0 AND updated_at < ?`, database.FormatTime(before))
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// IsStepError reports whether err is a validation failure on a step.
func IsStepError(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
