package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"claim-dossier/config"
	"claim-dossier/models"
	"claim-dossier/storage"
)

type fakeEnqueuer struct {
	claimID, requesterID string
	err                  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, claimID, requesterID string) (string, error) {
	f.claimID, f.requesterID = claimID, requesterID
	if f.err != nil {
		return "", f.err
	}
	return "job-new", nil
}

type fakeReader struct {
	claims map[string]bool
	job    *models.DossierJob
	result *models.ClaimResult
}

func (f *fakeReader) GetClaim(ctx context.Context, id string) (*models.Claim, error) {
	if !f.claims[id] {
		return nil, fmt.Errorf("%w: %s", models.ErrClaimNotFound, id)
	}
	return &models.Claim{ID: id}, nil
}

func (f *fakeReader) LatestJob(ctx context.Context, claimID string) (*models.DossierJob, error) {
	if f.job == nil {
		return nil, fmt.Errorf("%w: claim %s", storage.ErrJobNotFound, claimID)
	}
	return f.job, nil
}

func (f *fakeReader) GetClaimResult(ctx context.Context, claimID string) (*models.ClaimResult, error) {
	return f.result, nil
}

func newTestRouter(enq jobEnqueuer, reader dossierReader, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/", apiKeyAuthMiddleware(cfg))
	setupDossierRoutes(api, enq, reader, zap.NewNop())
	return router
}

func serve(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartDossier(t *testing.T) {
	cases := []struct {
		name     string
		claims   map[string]bool
		job      *models.DossierJob
		enqErr   error
		wantCode int
	}{
		{"unknown claim", map[string]bool{}, nil, nil, http.StatusNotFound},
		{"first run", map[string]bool{"c1": true}, nil, nil, http.StatusAccepted},
		{"previous run finished", map[string]bool{"c1": true}, &models.DossierJob{ID: "old", Status: models.JobFailed}, nil, http.StatusAccepted},
		{"run active", map[string]bool{"c1": true}, &models.DossierJob{ID: "old", Status: models.JobRunning}, nil, http.StatusConflict},
		{"queued run", map[string]bool{"c1": true}, &models.DossierJob{ID: "old", Status: models.JobQueued}, nil, http.StatusConflict},
		{"enqueue fails", map[string]bool{"c1": true}, nil, errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enq := &fakeEnqueuer{err: tc.enqErr}
			router := newTestRouter(enq, &fakeReader{claims: tc.claims, job: tc.job}, &config.Config{})

			w := serve(router, http.MethodPost, "/claims/c1/dossier", `{"requester_id":"u1"}`, nil)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantCode == http.StatusAccepted {
				var body map[string]string
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["job_id"] != "job-new" {
					t.Fatalf("unexpected body %s", w.Body.String())
				}
				if enq.claimID != "c1" || enq.requesterID != "u1" {
					t.Fatalf("enqueued %q by %q", enq.claimID, enq.requesterID)
				}
			}
		})
	}
}

func TestStartDossierWithoutBody(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := newTestRouter(enq, &fakeReader{claims: map[string]bool{"c1": true}}, &config.Config{})
	if w := serve(router, http.MethodPost, "/claims/c1/dossier", "", nil); w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestDossierStatus(t *testing.T) {
	sign := -1
	reader := &fakeReader{
		job:    &models.DossierJob{ID: "j1", Status: models.JobSucceeded, Progress: 100, Attempts: 1},
		result: &models.ClaimResult{ClaimID: "c1", Outcome: models.OutcomeContradicted, VerdictSign: &sign},
	}
	router := newTestRouter(&fakeEnqueuer{}, reader, &config.Config{})

	w := serve(router, http.MethodGet, "/claims/c1/dossier", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got dossierStatus
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Step != "Complete" || got.Status != models.JobSucceeded || got.Result == nil || *got.Result.VerdictSign != -1 {
		t.Fatalf("unexpected status %+v", got)
	}

	reader.job = &models.DossierJob{ID: "j2", Status: models.JobRunning, Progress: 62}
	w = serve(router, http.MethodGet, "/claims/c1/dossier", "", nil)
	got = dossierStatus{}
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Step != "Extracting evidence" || got.Result != nil {
		t.Fatalf("unexpected running status %+v", got)
	}

	reader.job = nil
	if w := serve(router, http.MethodGet, "/claims/c1/dossier", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("status without job = %d", w.Code)
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	router := newTestRouter(&fakeEnqueuer{}, &fakeReader{job: &models.DossierJob{ID: "j"}}, &config.Config{APISecretKey: "secret"})
	if w := serve(router, http.MethodGet, "/claims/c1/dossier", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d", w.Code)
	}
	if w := serve(router, http.MethodGet, "/claims/c1/dossier", "", map[string]string{"X-API-KEY": "secret"}); w.Code != http.StatusOK {
		t.Fatalf("valid key: status = %d", w.Code)
	}
}
