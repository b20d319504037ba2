package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/reminder"
)

const testCronSecret = "cr0n-s3cret"

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// fakeReminderService counts invocations so tests can assert the dispatcher
// is never run on rejected cron calls.
type fakeReminderService struct {
	runCalls int
	summary  *reminder.RunSummary
	runErr   error
	settings map[string]reminder.Settings
}

var _ reminder.ServiceInterface = (*fakeReminderService)(nil)

func (svc *fakeReminderService) Run(context.Context) (*reminder.RunSummary, error) {
	svc.runCalls++
	if svc.runErr != nil {
		return nil, svc.runErr
	}
	return svc.summary, nil
}

func (svc *fakeReminderService) GetSettings(_ context.Context, userID string) (reminder.Settings, error) {
	if s, ok := svc.settings[userID]; ok {
		return s, nil
	}
	return reminder.Settings{UserID: userID}, nil
}

func (svc *fakeReminderService) SetOptIn(_ context.Context, userID string, optIn bool) (reminder.Settings, error) {
	if userID == "" {
		return reminder.Settings{}, core.NewValidationError(
			errors.New("invalid user id"),
			core.FieldError{Field: "user_id", Error: "this field is required"},
		)
	}
	s := reminder.Settings{UserID: userID, OptedIn: optIn, UpdatedAt: time.Now().UTC()}
	if svc.settings == nil {
		svc.settings = make(map[string]reminder.Settings)
	}
	svc.settings[userID] = s
	return s, nil
}

func newTestServer(t *testing.T, svc reminder.ServiceInterface, cronSecret string) (Server, *core.Config) {
	t.Helper()

	conf := &core.Config{AppName: "Darasa", TestMode: true, SecretKey: "s3cret"}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Reminder.CronSecret = cronSecret

	validate := validator.New()
	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	require.True(t, found)
	core.InitValidators(validate, translator)

	app := NewServer("", ServerDeps{
		Conf:        conf,
		Logger:      nopLogger{},
		ReminderSvc: svc,
		Validate:    validate,
		Translator:  translator,
	})
	return app, conf
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, userID string) string {
	t.Helper()
	token, err := GenerateToken(conf, GetLearnerClaims(conf, userID, userID+"@test.te", "Test"))
	require.NoError(t, err)
	return token
}

func Test_cronTrigger(t *testing.T) {
	summary := &reminder.RunSummary{
		RunID:          "run-1",
		StartedAt:      time.Now().UTC(),
		UsersEvaluated: 3,
		UsersReminded:  1,
		UsersSkipped:   2,
		Failures:       []reminder.DispatchFailure{},
	}

	t.Run("valid secret runs the dispatcher", func(t *testing.T) {
		svc := &fakeReminderService{summary: summary}
		app, _ := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", "")
		req.Header.Set(cronSecretHeader, testCronSecret)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp CronResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, "run-1", resp.Summary.RunID)
		assert.Equal(t, 1, resp.Summary.UsersReminded)
		assert.Equal(t, 1, svc.runCalls)
	})

	t.Run("bearer token fallback", func(t *testing.T) {
		svc := &fakeReminderService{summary: summary}
		app, _ := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", testCronSecret)
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.runCalls)
	})

	t.Run("wrong secret is rejected before dispatch", func(t *testing.T) {
		svc := &fakeReminderService{summary: summary}
		app, _ := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", "")
		req.Header.Set(cronSecretHeader, "nope")
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, svc.runCalls)
	})

	t.Run("missing secret is rejected", func(t *testing.T) {
		svc := &fakeReminderService{summary: summary}
		app, _ := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", "")
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, 0, svc.runCalls)
	})

	t.Run("unconfigured secret fails closed", func(t *testing.T) {
		svc := &fakeReminderService{summary: summary}
		app, _ := newTestServer(t, svc, "" /* no secret */)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", "")
		req.Header.Set(cronSecretHeader, testCronSecret)
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, 0, svc.runCalls)
	})

	t.Run("run failure returns 500", func(t *testing.T) {
		svc := &fakeReminderService{runErr: errors.New("settings store unreachable")}
		app, _ := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPost, "/v1/reminders/cron", "")
		req.Header.Set(cronSecretHeader, testCronSecret)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var resp CronResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Message, "settings store unreachable")
	})
}

func Test_getContextClaims_missingClaimsSignalsShutdown(t *testing.T) {
	// claims can only be absent when the JWT middleware chain is broken
	e := echo.New()
	ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := getContextClaims(ctx)
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err))
}

func Test_settingsRetrieve(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		app, _ := newTestServer(t, &fakeReminderService{}, testCronSecret)

		req, rec := newAuthRequest(http.MethodGet, "/v1/reminders/settings", "")
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("defaults to opted out", func(t *testing.T) {
		app, conf := newTestServer(t, &fakeReminderService{}, testCronSecret)

		req, rec := newAuthRequest(http.MethodGet, "/v1/reminders/settings", getToken(t, conf, "u1"))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var s reminder.Settings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, "u1", s.UserID)
		assert.False(t, s.OptedIn)
	})
}

func Test_settingsUpdate(t *testing.T) {
	t.Run("requires auth", func(t *testing.T) {
		app, _ := newTestServer(t, &fakeReminderService{}, testCronSecret)

		req, rec := newAuthRequest(http.MethodPut, "/v1/reminders/settings", "", []byte(`{"opted_in":true}`))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("opted_in is required", func(t *testing.T) {
		app, conf := newTestServer(t, &fakeReminderService{}, testCronSecret)

		req, rec := newAuthRequest(http.MethodPut, "/v1/reminders/settings", getToken(t, conf, "u1"), []byte(`{}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Contains(t, fldErrs, "opted_in")
	})

	t.Run("domain validation maps to field errors", func(t *testing.T) {
		app, conf := newTestServer(t, &fakeReminderService{}, testCronSecret)

		req, rec := newAuthRequest(http.MethodPut, "/v1/reminders/settings", getToken(t, conf, "" /* blank subject */), []byte(`{"opted_in":true}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fldErrs map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fldErrs))
		assert.Equal(t, "this field is required", fldErrs["user_id"])
	})

	t.Run("opts the learner in", func(t *testing.T) {
		svc := &fakeReminderService{}
		app, conf := newTestServer(t, svc, testCronSecret)

		req, rec := newAuthRequest(http.MethodPut, "/v1/reminders/settings", getToken(t, conf, "u1"), []byte(`{"opted_in":true}`))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var s reminder.Settings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
		assert.Equal(t, "u1", s.UserID)
		assert.True(t, s.OptedIn)
		assert.True(t, svc.settings["u1"].OptedIn)
	})
}
