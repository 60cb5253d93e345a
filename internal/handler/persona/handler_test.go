package persona

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"

	personaModel "github.com/lumate/voicecoach/internal/model/persona"
)

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	New(personaModel.NewMemoryCatalog(personaModel.Seed())).RegisterRoutes(r)
	return r
}

func TestHandleList(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var entries []listEntry
	if err := sonic.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 personas, got %d", len(entries))
	}
	if entries[0].Index != 0 || entries[0].Name != "Scott" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[2].Index != 2 || entries[2].Name != "Julie" {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}
}

func TestHandleGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/personas/1", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var p personaModel.Persona
	if err := sonic.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if p.Name != "Kelly" {
		t.Fatalf("expected Kelly, got %q", p.Name)
	}
}

func TestHandleGetOutOfRange(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/personas/9", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleGetNonNumeric(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/personas/first", nil)
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
