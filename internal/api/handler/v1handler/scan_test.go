package v1handler_test

import (
	"context"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"exposureshield/internal/api/handler/v1handler"
	mockexposure "exposureshield/internal/exposure/mock"
	"exposureshield/pkg/domain"
	"exposureshield/pkg/serrors"
	mockstorage "exposureshield/pkg/storage/mock"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func ptr[T any](v T) *T { return &v }

func TestDomainVerdictToResponse(t *testing.T) {
	date := time.Date(2019, 4, 22, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   domain.ExposureVerdict
		want string
	}{
		{
			name: "exposed",
			in: domain.ExposureVerdict{
				Exposed:      ptr(true),
				PasswordHits: 3,
				EmailRecords: []domain.EmailExposureRecord{{
					SourceName: "Deezer", Domain: "deezer.com", BreachDate: &date, DataClasses: []string{"Email addresses"},
				}},
				Advice: []string{"a"},
				Sources: map[domain.Source]domain.SourceStatus{
					domain.SourcePasswordCorpus: domain.SourceStatusFound,
				},
				RetryAfter: 5 * time.Second,
			},
			want: `{"exposed":true,"status":"exposed","passwordHits":3,
				"emailRecords":[{"sourceName":"Deezer","domain":"deezer.com","breachDate":"2019-04-22T00:00:00Z","dataClasses":["Email addresses"]}],
				"advice":["a"],"sources":{"password_corpus":"found"}}`,
		},
		{
			name: "inconclusive",
			in: domain.ExposureVerdict{
				Advice:     []string{"b"},
				RetryAfter: 1500 * time.Millisecond,
				Sources: map[domain.Source]domain.SourceStatus{
					domain.SourceRemoteDirectory: domain.SourceStatusRateLimited,
				},
			},
			want: `{"exposed":null,"status":"inconclusive","passwordHits":0,"emailRecords":[],"advice":["b"],
				"sources":{"remote_directory":"rate_limited"},"retryAfter":2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(v1handler.DomainVerdictToResponse(tt.in))
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestScan(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := mockexposure.NewMockAggregator(ctrl)
	logs := mockstorage.NewMockAllStorage(ctrl)
	secret := []byte("scan-log-secret")

	h := newRouter(v1handler.Deps{Exposure: agg, ScanLogs: logs}, v1handler.Options{ScanLogSecret: secret})

	agg.EXPECT().Evaluate(gomock.Any(), domain.ExposureQuery{Email: "alice@example.com", Password: "hunter2"}).
		Return(domain.ExposureVerdict{
			Exposed:      ptr(false),
			EmailRecords: []domain.EmailExposureRecord{},
			Advice:       []string{"Turn on 2FA for your email."},
		}, nil)
	logs.EXPECT().StoreScanLog(gomock.Any(), domain.ScanLog{
		EmailHash: v1handler.HashEmail(secret, "alice@example.com"),
		Status:    domain.VerdictClear,
		ClientIP:  "198.51.100.7",
	}).Return(nil)

	rec := do(h, http.MethodPost, "/scan", `{"email":"alice@example.com","password":"hunter2"}`, "198.51.100.7")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Empty(t, rec.Header().Get("Retry-After"))

	var res v1handler.ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Exposed)
	require.False(t, *res.Exposed)
	require.Equal(t, domain.VerdictClear, res.Status)
	require.NotContains(t, rec.Body.String(), "hunter2")
}

func TestScan_InconclusiveSetsRetryAfter(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := mockexposure.NewMockAggregator(ctrl)
	h := newRouter(v1handler.Deps{Exposure: agg}, v1handler.Options{})

	agg.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(domain.ExposureVerdict{
		Advice:     []string{"try again later"},
		RetryAfter: 7 * time.Second,
	}, nil)

	rec := do(h, http.MethodPost, "/scan", `{"email":"bob@example.com"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "7", rec.Header().Get("Retry-After"))
	require.Contains(t, rec.Body.String(), `"exposed":null`)
}

func TestScan_ScanLogFailureDoesNotFailTheRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	agg := mockexposure.NewMockAggregator(ctrl)
	logs := mockstorage.NewMockAllStorage(ctrl)
	h := newRouter(v1handler.Deps{Exposure: agg, ScanLogs: logs}, v1handler.Options{})

	agg.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(domain.ExposureVerdict{Exposed: ptr(true), PasswordHits: 1}, nil)
	logs.EXPECT().StoreScanLog(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ domain.ScanLog) error {
		require.NoError(t, ctx.Err())

		return serrors.With(serrors.ErrUnavailable, "disk full")
	})

	rec := do(h, http.MethodPost, "/scan", `{"email":"bob@example.com","password":"x"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestScan_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"invalid json", `{"email":`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"missing email", `{"password":"x"}`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid email", `{"email":"nope"}`, nil, http.StatusBadRequest, "BAD_REQUEST"},
		{"body too large", `{"email":"a@example.com","password":"` + strings.Repeat("x", 2048) + `"}`, nil,
			http.StatusBadRequest, "BAD_REQUEST"},
		{
			"misconfigured directory", `{"email":"a@example.com"}`,
			serrors.With(serrors.ErrMisconfigured, "hibp api key rejected"),
			http.StatusServiceUnavailable, "MISCONFIGURED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			agg := mockexposure.NewMockAggregator(ctrl)
			if tt.err != nil {
				agg.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(domain.ExposureVerdict{}, tt.err)
			}
			h := newRouter(v1handler.Deps{Exposure: agg}, v1handler.Options{MaxBodyBytes: 1024})

			rec := do(h, http.MethodPost, "/scan", tt.body, "")
			require.Equal(t, tt.status, rec.Code)

			var res v1handler.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Equal(t, tt.code, res.Code)
			require.NotContains(t, res.Message, "hibp")
		})
	}
}

func TestScan_FormBodies(t *testing.T) {
	urlEncoded := func() (string, string) {
		return "application/x-www-form-urlencoded",
			url.Values{"email": {"carol@example.com"}, "password": {"hunter2"}}.Encode()
	}
	multipartBody := func() (string, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("email", "carol@example.com")
		_ = mw.WriteField("password", "hunter2")
		_ = mw.Close()

		return mw.FormDataContentType(), buf.String()
	}

	for name, body := range map[string]func() (string, string){
		"url encoded": urlEncoded,
		"multipart":   multipartBody,
	} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			agg := mockexposure.NewMockAggregator(ctrl)
			h := newRouter(v1handler.Deps{Exposure: agg}, v1handler.Options{})

			agg.EXPECT().Evaluate(gomock.Any(), domain.ExposureQuery{Email: "carol@example.com", Password: "hunter2"}).
				Return(domain.ExposureVerdict{Exposed: ptr(true), PasswordHits: 4}, nil)

			contentType, payload := body()
			req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(payload))
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			require.Contains(t, rec.Body.String(), `"passwordHits":4`)
		})
	}
}

func TestScan_FormValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newRouter(v1handler.Deps{Exposure: mockexposure.NewMockAggregator(ctrl)}, v1handler.Options{})

	req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader("password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "email is required")
}
