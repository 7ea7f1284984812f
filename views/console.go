package views

import (
	"fmt"

	"github.com/a-h/templ"

	"github.com/eringen/panelengine/billing"
	"github.com/eringen/panelengine/wizard"
)

func choice(h *w, name, value, label, selected string) {
	checked := ""
	if value == selected {
		checked = " checked"
	}
	h.rawf(`<label class="choice"><input type="radio" name="%s" value="%s"%s> `, attr(name), attr(value), checked)
	h.text(label)
	h.raw(`</label>`)
}

func stepper(h *w, current int) {
	h.raw(`<ol class="stepper">`)
	for _, s := range wizard.Steps {
		cls := ""
		switch {
		case s.Number < current:
			cls = "done"
		case s.Number == current:
			cls = "current"
		}
		h.rawf(`<li class="%s">`, cls)
		h.text(s.Title)
		h.raw(`</li>`)
	}
	h.raw(`</ol>`)
}

// wizardForm writes a step form. Continue comes first so Enter submits it.
func wizardForm(h *w, p OnboardingPage, action string, body func()) {
	h.raw(`<form method="post" action="/console/onboarding/" class="wizard-form">`)
	csrfField(h, p.CSRF)
	body()
	h.rawf(`<div class="wizard-actions"><button type="submit" name="action" value="%s">Continue</button>`, attr(action))
	if p.Session != nil && p.Session.Step > 1 {
		h.raw(`<button type="submit" name="action" value="back" formnovalidate>Back</button>`)
	}
	h.raw(`</div></form>`)
}

// Onboarding renders the current wizard step.
func Onboarding(p OnboardingPage) templ.Component {
	return Layout(p.Page, "Create your website", component(func(h *w) {
		h.raw(`<section class="wizard">`)
		if p.Session == nil {
			h.el("h1", "", "What kind of business is this website for?")
			h.raw(`<form method="post" action="/console/onboarding/">`)
			csrfField(h, p.CSRF)
			h.raw(`<input type="hidden" name="action" value="start"><div class="choices">`)
			for _, b := range wizard.BusinessTypes {
				choice(h, "businessType", b.ID, b.Name, "")
			}
			h.raw(`</div><button type="submit">Start</button></form></section>`)
			return
		}

		s := p.Session
		stepper(h, s.Step)
		h.rawf(`<progress max="100" value="%d"></progress>`, p.Progress.Percent)
		h.el("h1", "", p.Step.Title)
		if p.Error != "" {
			h.el("p", `class="error" role="alert"`, p.Error)
		}

		switch s.Step {
		case 1:
			wizardForm(h, p, "next", func() {
				h.rawf(`<input type="hidden" name="businessType" value="%s">`, attr(s.Data.String("businessType")))
				h.rawf(`<label>Business name <input name="businessName" required value="%s"></label>`, attr(s.Data.String("businessName")))
				h.rawf(`<label>Tagline <input name="tagline" value="%s"></label>`, attr(s.Data.String("tagline")))
			})
		case 2:
			wizardForm(h, p, "next", func() {
				h.raw(`<div class="choices swatches">`)
				for _, c := range wizard.ColorSchemes {
					choice(h, "colorScheme", c.ID, c.Name, s.Data.String("colorScheme"))
				}
				h.raw(`</div>`)
			})
			h.raw(`<form method="post" action="/console/onboarding/logo/" enctype="multipart/form-data" class="logo-upload">`)
			csrfField(h, p.CSRF)
			h.raw(`<label>Logo <input type="file" name="logo" accept="image/*"></label><button type="submit">Upload</button>`)
			if logo := s.Data.String("logo"); logo != "" {
				h.rawf(`<img src="/uploads/%s" alt="Logo" class="logo-preview">`, attr(PathEscape(logo)))
			}
			h.raw(`</form>`)
		case 3:
			wizardForm(h, p, "next", func() {
				h.raw(`<div class="choices">`)
				for _, t := range wizard.TemplateStyles {
					choice(h, "templateStyle", t.ID, t.Name, s.Data.String("templateStyle"))
				}
				h.raw(`</div>`)
			})
		case 4:
			wizardForm(h, p, "next", func() {
				h.rawf(`<label>Subdomain <input name="subdomain" required value="%s" hx-get="/console/onboarding/subdomain/" hx-trigger="keyup changed delay:400ms" hx-target="#subdomain-check"></label>`,
					attr(s.Data.String("subdomain")))
				h.raw(`<div id="subdomain-check" aria-live="polite"></div>`)
			})
		case 5:
			wizardForm(h, p, "next", func() {
				h.raw(`<div class="choices plans">`)
				for _, pl := range wizard.Plans {
					label := pl.Name + " · Free"
					if pl.PriceCents > 0 {
						label = pl.Name + " · " + billing.FormatMoney(pl.PriceCents, "USD") + "/mo"
					}
					choice(h, "plan", pl.ID, label, s.Data.String("plan"))
				}
				h.raw(`</div>`)
			})
			if wizard.CanProceed(5, s.Data) == nil {
				h.raw(`<form method="post" action="/console/onboarding/create/">`)
				csrfField(h, p.CSRF)
				h.raw(`<button type="submit" class="primary">Create my website</button></form>`)
			}
		default:
			if p.Website != nil {
				h.el("p", "", fmt.Sprintf("%s is live.", p.Website.Name))
				h.rawf(`<p><a href="%s">%s</a></p>`, attr(p.SiteURL), attr(p.SiteURL))
				h.raw(`<ul class="pages">`)
				for _, pg := range p.Pages {
					h.el("li", "", pg.Title)
				}
				h.raw(`</ul>`)
				h.rawf(`<a class="button" href="/console/websites/%s/analytics/">View analytics</a>`, attr(PathEscape(p.Website.Subdomain)))
			}
		}

		h.raw(`<form method="post" action="/console/onboarding/" class="reset">`)
		csrfField(h, p.CSRF)
		h.raw(`<button type="submit" name="action" value="reset" class="link">Start over</button></form></section>`)
	}))
}

// SubdomainCheck renders the availability fragment for the subdomain field.
func SubdomainCheck(c wizard.SubdomainCheck) templ.Component {
	return component(func(h *w) {
		if c.Available {
			h.raw(`<p class="ok">`)
			h.text(c.URL + " is available")
			h.raw(`</p>`)
			return
		}
		h.el("p", `class="error"`, c.Reason)
	})
}

// ConsoleLogin renders the customer account login form.
func ConsoleLogin(p ConsoleLoginPage) templ.Component {
	return Layout(p.Page, "Log in", component(func(h *w) {
		h.raw(`<section class="login"><h1>Log in</h1>`)
		switch {
		case p.Locked:
			h.el("p", `class="error" role="alert"`, "This account is not active.")
		case p.Failed:
			h.el("p", `class="error" role="alert"`, "Invalid email or password.")
		}
		h.raw(`<form method="post" action="/console/login/">`)
		csrfField(h, p.CSRF)
		h.rawf(`<input type="hidden" name="next" value="%s">`, attr(p.Next))
		h.raw(`<label>Email <input type="email" name="email" required autofocus></label>` +
			`<label>Password <input type="password" name="password" required></label><button type="submit">Log in</button></form></section>`)
	}))
}

// InviteAccept renders an organization invite. A logged-in visitor joins
// with one click; everyone else signs in or picks a password.
func InviteAccept(p InvitePage) templ.Component {
	return Layout(p.Page, "Join "+p.Org.Name, component(func(h *w) {
		h.raw(`<section class="invite">`)
		h.el("h1", "", "Join "+p.Org.Name)
		h.el("p", "", fmt.Sprintf("%s was invited as %s.", p.Invite.Email, p.Invite.Role))
		if p.Expired {
			h.el("p", `class="error" role="alert"`, "This invitation has expired. Ask an owner for a new one.")
			h.raw(`</section>`)
			return
		}
		if p.Error != "" {
			h.el("p", `class="error" role="alert"`, p.Error)
		}
		h.rawf(`<form method="post" action="/console/invites/%s/">`, attr(p.Token))
		csrfField(h, p.CSRF)
		if p.User != nil {
			h.el("p", "", "You are logged in as "+p.User.Email+".")
		} else {
			h.raw(`<label>Name <input name="name" placeholder="Only needed for a new account"></label>` +
				`<label>Password <input type="password" name="password" minlength="8" required></label>`)
		}
		h.raw(`<button type="submit">Accept invitation</button></form></section>`)
	}))
}
