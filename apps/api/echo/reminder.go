package echoapi

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/reminder"
)

// cronSecretHeader carries the shared secret of the external cron trigger.
// A bearer-style Authorization header is accepted as fallback.
const cronSecretHeader = "x-cron-secret"

type reminderApi struct {
	svc      reminder.ServiceInterface
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
}

func registerReminderAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reminderApi{
		svc:      deps.ReminderSvc,
		conf:     deps.Conf,
		logger:   deps.Logger,
		validate: deps.Validate,
	}

	rg := g.Group("/reminders")

	// authed by the cron shared secret, not JWT: the trigger is a scheduler
	rg.POST("/cron", api.cronTrigger)

	sg := rg.Group("/settings", jwt)
	sg.GET("", api.settingsRetrieve)
	sg.PUT("", api.settingsUpdate)
}

type CronResponse struct {
	Success bool                 `json:"success"`
	Summary *reminder.RunSummary `json:"summary,omitempty"`
	Message string               `json:"message,omitempty"`
}

// cronTrigger runs one dispatcher pass. It relies entirely on the dedup
// ledger for idempotency under at-least-once scheduler invocation; per-user
// dispatch failures are reported in the summary without failing the call.
func (api *reminderApi) cronTrigger(ctx echo.Context) error {
	secret := api.conf.Reminder.CronSecret
	if secret == "" {
		// fail closed: never dispatch without a configured trigger secret
		return ctx.JSON(http.StatusInternalServerError, CronResponse{Message: "reminder cron secret is not configured"})
	}

	provided := ctx.Request().Header.Get(cronSecretHeader)
	if provided == "" {
		auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			provided = strings.TrimSpace(auth[7:])
		}
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return ctx.JSON(http.StatusUnauthorized, CronResponse{Message: "Unauthorized"})
	}

	summary, err := api.svc.Run(ctx.Request().Context())
	if err != nil {
		api.logger.Error(fmt.Sprintf("reminder run failed: %v", err), err)
		return ctx.JSON(http.StatusInternalServerError, CronResponse{Message: err.Error()})
	}
	return ctx.JSON(http.StatusOK, CronResponse{Success: true, Summary: summary})
}

type SettingsRequest struct {
	OptedIn *bool `json:"opted_in" validate:"required"`
}

func (r *SettingsRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(r)
}

func (api *reminderApi) settingsRetrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.GetSettings(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *reminderApi) settingsUpdate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	data := new(SettingsRequest)
	if err = ctx.Bind(data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.SetOptIn(ctx.Request().Context(), claims.Subject, *data.OptedIn)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s)
}
