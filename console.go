package panelengine

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/panelengine/media"
	"github.com/eringen/panelengine/orgs"
	"github.com/eringen/panelengine/views"
	"github.com/eringen/panelengine/wizard"
)

const onboardingPath = "/console/onboarding/"

// stepFields are the form fields a wizard step may submit.
var stepFields = []string{"businessType", "businessName", "tagline", "colorScheme", "templateStyle", "subdomain", "plan"}

// currentSession loads the visitor's wizard session. A missing or deleted
// session yields nil without error.
func (a *App) currentSession(c echo.Context) (*wizard.Session, error) {
	id := wizardSessionID(c)
	if id == "" {
		return nil, nil
	}
	ses, err := a.Wizard.Get(c.Request().Context(), id)
	if errors.Is(err, wizard.ErrNotFound) {
		return nil, setWizardSession(c, "")
	}
	if err != nil {
		return nil, err
	}
	return &ses, nil
}

// onboardingPage builds the page for ses. Completed sessions also carry the
// created website and its pages.
func (a *App) onboardingPage(c echo.Context, ses *wizard.Session) (views.OnboardingPage, error) {
	p := views.OnboardingPage{Page: a.page(c, "")}
	p.Meta.Title = "Create your website"
	if ses == nil {
		return p, nil
	}
	p.Session = ses
	p.Progress = wizard.ProgressOf(*ses)
	p.Step = ses.CurrentStep()
	if ses.Completed && ses.WebsiteID != "" {
		ctx := c.Request().Context()
		site, err := a.Wizard.Website(ctx, ses.WebsiteID)
		if err != nil {
			return p, err
		}
		pages, err := a.Wizard.Pages(ctx, site.ID)
		if err != nil {
			return p, err
		}
		p.Website = &site
		p.Pages = pages
		p.SiteURL = a.Wizard.SiteURL(site.Subdomain)
	}
	return p, nil
}

func (a *App) handleOnboarding(c echo.Context) error {
	ses, err := a.currentSession(c)
	if err != nil {
		return err
	}
	p, err := a.onboardingPage(c, ses)
	if err != nil {
		return err
	}
	return respond(c, p, a.Views.Onboarding)
}

// handleOnboardingStep handles the wizard form. The action field selects
// start, next, back or reset.
func (a *App) handleOnboardingStep(c echo.Context) error {
	ctx := c.Request().Context()
	action := c.FormValue("action")

	if action == "start" {
		ses, err := a.Wizard.Start(ctx, c.FormValue("businessType"))
		if err != nil {
			return err
		}
		if err := setWizardSession(c, ses.ID); err != nil {
			return err
		}
		a.Logger.Info("wizard started", zap.String("session", ses.ID), zap.String("businessType", ses.BusinessType))
		return a.onboardingResult(c, &ses)
	}

	id := wizardSessionID(c)
	if id == "" {
		return redirectMsg(c, onboardingPath, "")
	}
	switch action {
	case "reset":
		if err := a.Wizard.Reset(ctx, id); err != nil {
			return err
		}
		if err := setWizardSession(c, ""); err != nil {
			return err
		}
		return redirectMsg(c, onboardingPath, "")
	case "back":
		ses, err := a.Wizard.Back(ctx, id)
		if err != nil {
			return err
		}
		return a.onboardingResult(c, &ses)
	case "next", "":
		ses, err := a.Wizard.Advance(ctx, id, stepData(c))
		var se *wizard.StepError
		if errors.As(err, &se) {
			return a.onboardingStepError(c, id, se)
		}
		if err != nil {
			return err
		}
		return a.onboardingResult(c, &ses)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "unknown wizard action")
}

// stepData collects the submitted wizard fields. Absent fields are left out
// so they do not clear earlier answers.
func stepData(c echo.Context) wizard.Data {
	form, _ := c.FormParams()
	data := wizard.Data{}
	for _, f := range stepFields {
		if vals, ok := form[f]; ok && len(vals) > 0 {
			data[f] = vals[len(vals)-1]
		}
	}
	return data
}

// onboardingResult answers a successful wizard action: JSON clients get the
// session, browsers are redirected back to the wizard.
func (a *App) onboardingResult(c echo.Context, ses *wizard.Session) error {
	if wantsJSON(c) {
		p, err := a.onboardingPage(c, ses)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
	return redirectMsg(c, onboardingPath, "")
}

// onboardingStepError shows the current step again with the blocking field.
func (a *App) onboardingStepError(c echo.Context, id string, se *wizard.StepError) error {
	ses, err := a.Wizard.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	p, err := a.onboardingPage(c, &ses)
	if err != nil {
		return err
	}
	p.Error = se.Field + " " + se.Reason
	p.Field = se.Field
	if wantsJSON(c) {
		return c.JSON(http.StatusBadRequest, p)
	}
	return RenderStatus(c, http.StatusBadRequest, a.Views.Onboarding(p))
}

func (a *App) handleSubdomainCheck(c echo.Context) error {
	check, err := a.Wizard.CheckSubdomain(c.Request().Context(), c.QueryParam("subdomain"))
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, check)
	}
	return Render(c, a.Views.SubdomainCheck(check))
}

func (a *App) handleOnboardingLogo(c echo.Context) error {
	id := wizardSessionID(c)
	if id == "" {
		return redirectMsg(c, onboardingPath, "")
	}
	img, err := a.saveUpload(c, "logo", media.KindLogo)
	if err != nil {
		return err
	}
	ses, err := a.Wizard.SetLogo(c.Request().Context(), id, img.Filename)
	if err != nil {
		return err
	}
	return a.onboardingResult(c, &ses)
}

func (a *App) handleOnboardingCreate(c echo.Context) error {
	id := wizardSessionID(c)
	if id == "" {
		return redirectMsg(c, onboardingPath, "")
	}
	ctx := c.Request().Context()
	site, err := a.Wizard.CreateWebsite(ctx, id)
	var se *wizard.StepError
	if errors.As(err, &se) {
		return a.onboardingStepError(c, id, se)
	}
	if err != nil {
		return err
	}
	a.Logger.Info("website created", zap.String("website", site.ID), zap.String("subdomain", site.Subdomain))
	if err := a.provisionWebsite(c, site); err != nil {
		a.Logger.Warn("provision website billing", zap.String("website", site.ID), zap.Error(err))
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, site)
	}
	return redirectMsg(c, onboardingPath, site.Name+" has been created.")
}

// websiteTrialDays is the trial length of a paid plan picked in the wizard.
const websiteTrialDays = 14

// provisionWebsite gives a new website an organization named after it,
// owned by the logged-in account if there is one, and a subscription to
// the chosen plan. Paid plans start on a trial.
func (a *App) provisionWebsite(c echo.Context, site wizard.Website) error {
	ctx := c.Request().Context()
	plan, ok := wizard.PlanByID(site.Plan)
	if !ok {
		plan = wizard.Plans[0]
	}
	in := orgs.NewOrganization{Name: site.Name, Slug: site.Subdomain, Plan: plan.ID}
	u, err := a.currentUser(c)
	if err != nil {
		return err
	}
	if u != nil {
		in.Owner = orgs.Person{UserID: u.ID, Email: u.Email, Name: u.Name}
	}
	o, err := a.Orgs.Create(ctx, in)
	if errors.Is(err, orgs.ErrSlugTaken) {
		in.Slug = ""
		o, err = a.Orgs.Create(ctx, in)
	}
	if err != nil {
		return err
	}
	trial := 0
	if plan.PriceCents > 0 {
		trial = websiteTrialDays
	}
	_, err = a.Billing.CreateSubscription(ctx, o.ID, plan.ID, plan.PriceCents, "USD", trial)
	return err
}
