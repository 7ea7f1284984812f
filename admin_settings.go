package panelengine

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/panelengine/settings"
	"github.com/eringen/panelengine/views"
)

const settingsPath = "/admin/settings/"

func (a *App) handleSettings(c echo.Context) error {
	ctx := c.Request().Context()
	all, err := a.Settings.All(ctx)
	if err != nil {
		return err
	}
	flags, err := a.Settings.ListFlags(ctx)
	if err != nil {
		return err
	}
	alerts, err := a.Settings.ListAlerts(ctx)
	if err != nil {
		return err
	}
	prefs, err := a.Settings.Preferences(ctx, adminUser)
	if err != nil {
		return err
	}
	return respond(c, views.SettingsPage{
		Page:        a.page(c, "settings"),
		Sections:    settings.Sections(all),
		Settings:    all,
		Flags:       flags,
		Alerts:      alerts,
		Preferences: prefs,
	}, a.Views.AdminSettings)
}

// handleSettingsSave stores every submitted section.key field in one
// transaction. JSON bodies are accepted as a flat key to value object.
func (a *App) handleSettingsSave(c echo.Context) error {
	values := make(map[string]any)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := c.Bind(&values); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid settings body")
		}
	} else {
		form, err := c.FormParams()
		if err != nil {
			return err
		}
		for key, vals := range form {
			if !strings.Contains(key, ".") || len(vals) == 0 {
				continue
			}
			values[key] = settings.ParseFormValue(vals[len(vals)-1])
		}
	}
	if len(values) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no settings submitted")
	}
	if err := a.Settings.SetMany(c.Request().Context(), values, actor(c)); err != nil {
		return err
	}
	if p, ok := values["billing.invoicePrefix"].(string); ok && p != "" {
		a.Billing.SetPrefix(p)
	}
	return redirectMsg(c, settingsPath, "Settings saved.")
}

func (a *App) handleSettingsInit(c echo.Context) error {
	n, err := a.Settings.InitDefaults(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]int{"created": n})
	}
	return redirectMsg(c, settingsPath, strconv.Itoa(n)+" default settings created.")
}

func (a *App) handleSettingDelete(c echo.Context) error {
	if err := a.Settings.Delete(c.Request().Context(), c.Param("key"), actor(c)); err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Setting deleted.")
}

func (a *App) handleFlagSave(c echo.Context) error {
	pct, err := strconv.Atoi(c.FormValue("percentage"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "percentage must be a number")
	}
	_, err = a.Settings.UpsertFlag(c.Request().Context(), settings.Flag{
		Key:         strings.TrimSpace(c.FormValue("key")),
		Name:        strings.TrimSpace(c.FormValue("name")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Enabled:     c.FormValue("enabled") == "true",
		Percentage:  pct,
	}, actor(c))
	if err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Flag saved.")
}

func (a *App) handleFlagToggle(c echo.Context) error {
	f, err := a.Settings.ToggleFlag(c.Request().Context(), c.Param("key"), actor(c))
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, f)
	}
	return redirectMsg(c, settingsPath, "")
}

func (a *App) handleFlagDelete(c echo.Context) error {
	if err := a.Settings.DeleteFlag(c.Request().Context(), c.Param("key"), actor(c)); err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Flag deleted.")
}

func (a *App) handleAlertSave(c echo.Context) error {
	v, err := strconv.ParseFloat(c.FormValue("value"), 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "value must be a number")
	}
	_, err = a.Settings.UpsertAlert(c.Request().Context(), settings.Alert{
		Metric:   strings.TrimSpace(c.FormValue("metric")),
		Operator: settings.Operator(c.FormValue("operator")),
		Value:    v,
		Severity: settings.Severity(c.FormValue("severity")),
		Enabled:  c.FormValue("enabled") == "true",
	}, actor(c))
	if err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Alert saved.")
}

func (a *App) handleAlertDelete(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "alert not found")
	}
	if err := a.Settings.DeleteAlert(c.Request().Context(), id, actor(c)); err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Alert deleted.")
}

func (a *App) handlePreferencesSave(c echo.Context) error {
	interval, err := strconv.Atoi(c.FormValue("refreshInterval"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh interval must be a number")
	}
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	prefs := settings.Preferences{
		Theme:           c.FormValue("theme"),
		RefreshInterval: interval,
		Widgets:         form["widgets"],
	}
	if err := a.Settings.SavePreferences(c.Request().Context(), adminUser, prefs); err != nil {
		return err
	}
	return redirectMsg(c, settingsPath, "Preferences saved.")
}
