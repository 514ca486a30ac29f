package cars_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/machinemu/machinemu/internal/cars"
	"github.com/machinemu/machinemu/internal/rbac"
	_ "github.com/machinemu/machinemu/testing"
)

type stubVerifier struct {
	identity rbac.Identity
}

func (s stubVerifier) Verify(token string) (rbac.Identity, error) {
	return s.identity, nil
}

func newCarsRouter(t *testing.T, repo cars.RepositoryPort, perms ...rbac.Permission) http.Handler {
	t.Helper()
	grants := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		grants[p.String()] = struct{}{}
	}
	guard := rbac.Middleware{Verifier: stubVerifier{identity: rbac.Identity{UserID: 5, UserName: "tester", Permissions: grants}}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := cars.NewHandler(logger, cars.NewService(repo), guard, nil)

	r := chi.NewRouter()
	r.Route("/api/cars", func(r chi.Router) {
		r.Use(guard.Authenticate)
		handler.MountRoutes(r)
	})
	return r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer token")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestListIsOpenToAnyAuthenticatedCaller(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusStopped, Gas: 50})
	router := newCarsRouter(t, repo) // no permissions at all

	res := do(router, http.MethodGet, "/api/cars/", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestCreateRequiresManagePermission(t *testing.T) {
	repo := newMemoryRepo()
	router := newCarsRouter(t, repo, rbac.PermStartCar)

	res := do(router, http.MethodPost, "/api/cars/", `{"name":"Car C"}`)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without ManageCars, got %d", res.Code)
	}

	router = newCarsRouter(t, repo, rbac.PermManageCars)
	res = do(router, http.MethodPost, "/api/cars/", `{"name":"Car C"}`)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201 with ManageCars, got %d: %s", res.Code, res.Body.String())
	}
}

func TestStartRequiresItsOwnPermission(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusStopped, Gas: 50, ConsumptionPerKM: 0.1})

	// ManageCars alone does not grant operating the car.
	router := newCarsRouter(t, repo, rbac.PermManageCars)
	res := do(router, http.MethodPost, "/api/cars/1/start", "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without StartCar, got %d", res.Code)
	}

	router = newCarsRouter(t, repo, rbac.PermStartCar)
	res = do(router, http.MethodPost, "/api/cars/1/start", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 with StartCar, got %d: %s", res.Code, res.Body.String())
	}
}

func TestStatusEndpointGated(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusRunning, Gas: 50})

	router := newCarsRouter(t, repo)
	res := do(router, http.MethodGet, "/api/cars/1/status", "")
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without GetCarStatus, got %d", res.Code)
	}

	router = newCarsRouter(t, repo, rbac.PermGetCarStatus)
	res = do(router, http.MethodGet, "/api/cars/1/status", "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), cars.StatusRunning) {
		t.Fatalf("expected status in body, got %s", res.Body.String())
	}
}

func TestRefuelValidation(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusStopped, Gas: 10})
	router := newCarsRouter(t, repo, rbac.PermManageCars)

	res := do(router, http.MethodPost, "/api/cars/1/refuel", `{"amount":-4}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative amount, got %d", res.Code)
	}

	res = do(router, http.MethodPost, "/api/cars/1/refuel", `{"amount":4}`)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
}
