package portal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housemanship_bot/internal/domain/auth"
	"housemanship_bot/internal/domain/vacancy"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *test.Hook) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	c := NewClient(Config{
		VacanciesURL: srv.URL + "/vacancies",
		LoginURL:     srv.URL + "/login",
		OTPURL:       srv.URL + "/otp",
		Timeout:      2 * time.Second,
	}, logrus.NewEntry(logger))
	return c, hook
}

func TestFetchVacancies(t *testing.T) {
	c, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/vacancies", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok-1", body["jwt"])
		assert.Equal(t, float64(1), body["tid"])

		_, _ = io.WriteString(w, `[
			{"centerName": "LUTH", "officer_left": "3"},
			{"centerName": "UCH", "officer_left": 1},
			{"centerName": "ABUTH", "officer_left": "n/a"},
			{"centerName": "LUTH", "officer_left": "9"},
			{"centerName": "  ", "officer_left": "2"}
		]`)
	})

	got, err := c.FetchVacancies(context.Background(), "tok-1")

	require.NoError(t, err)
	assert.Equal(t, vacancy.Snapshot{
		{CenterName: "LUTH", SlotsLeft: 3},
		{CenterName: "UCH", SlotsLeft: 1},
		{CenterName: "ABUTH", SlotsLeft: 0},
	}, got)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["center"] == "ABUTH" {
			warned = true
		}
	}
	assert.True(t, warned, "unparsable slot count is logged")
}

func TestFetchVacancies_EmptyList(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	got, err := c.FetchVacancies(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchVacancies_Unauthorized(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	})

	_, err := c.FetchVacancies(context.Background(), "old")

	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "vacancies", statusErr.Endpoint)
}

func TestFetchVacancies_ServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.FetchVacancies(context.Background(), "tok")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.False(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestFetchVacancies_BadJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	})

	_, err := c.FetchVacancies(context.Background(), "tok")
	assert.ErrorContains(t, err, "decode vacancies response")
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     *auth.LoginResult
		wantErr  bool
	}{
		{
			name:     "direct token",
			response: `{"jwt": "abc"}`,
			want:     &auth.LoginResult{JWT: "abc"},
		},
		{
			name:     "otp challenge",
			response: `{"status": "OTP_REQUIRED", "email": "d@example.com", "message": "Your code is 123.456789"}`,
			want:     &auth.LoginResult{OTPRequired: true, Email: "d@example.com", Message: "Your code is 123.456789"},
		},
		{
			name:     "neither",
			response: `{"status": "OK"}`,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/login", r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				var body loginRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "d@example.com", body.Email)
				assert.Equal(t, "pw", body.Password)
				_, _ = io.WriteString(w, tt.response)
			})

			got, err := c.Login(context.Background(), "d@example.com", "pw")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/otp", r.URL.Path)
		var body otpRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.OTPCode != "456789" {
			http.Error(w, `{"message":"invalid code"}`, http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"jwt": "verified"}`)
	})

	tok, err := c.VerifyOTP(context.Background(), "d@example.com", "456789")
	require.NoError(t, err)
	assert.Equal(t, "verified", tok)

	_, err = c.VerifyOTP(context.Background(), "d@example.com", "000000")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
}
