package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"leadtracker/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestService_AppendRequiresScopeAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventLeadCreated}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{Scope: "s"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestService_RecordTakesActorFromContext(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "u1", "sales")
	ctx = WithClientIP(ctx, "1.2.3.4")
	if err := svc.Record(ctx, Event{Scope: "s", Type: EventLeadUpdated, LeadID: "l1", Field: "status"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	e := evs[0]
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set")
	}
	if e.ActorUserID != "u1" || e.ActorRole != "sales" {
		t.Fatalf("expected actor captured, got %q/%q", e.ActorUserID, e.ActorRole)
	}
	if e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
}

func TestClientIPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ClientIPMiddleware())
	var got string
	r.GET("/", func(c *gin.Context) { got = ClientIPFromContext(c.Request.Context()) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "10.0.0.7" {
		t.Fatalf("expected client ip, got %q", got)
	}
}
