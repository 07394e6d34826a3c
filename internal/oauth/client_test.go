package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/GregMSThompson/potsync-backend/internal/errs"
	"github.com/GregMSThompson/potsync-backend/internal/models"
)

type fakeCreds struct {
	prefixes []string
}

func (f *fakeCreds) ClientCredentials(_ context.Context, prefix string) (string, string, error) {
	f.prefixes = append(f.prefixes, prefix)
	return "client-1", "secret-1", nil
}

func newTestClient(tokenURL string) (*Client, *fakeCreds) {
	creds := &fakeCreds{}
	c := NewClient(creds, "https://sync.example.com")
	c.tokenURLOverride = tokenURL
	return c, creds
}

func TestExchangeSendsCodeGrant(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		form = r.PostForm
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600}`))
	}))
	defer srv.Close()

	c, creds := newTestClient(srv.URL)
	p, _ := Lookup(models.ProviderMonzo)

	tokens, err := c.Exchange(context.Background(), p, "code-9")
	if err != nil {
		t.Fatalf("exchange error: %v", err)
	}
	if tokens.AccessToken != "at-1" || tokens.RefreshToken != "rt-1" || tokens.ExpiresIn != 3600 {
		t.Fatalf("unexpected tokens: %+v", tokens)
	}
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "code-9" {
		t.Fatalf("unexpected grant form: %v", form)
	}
	if form.Get("redirect_uri") != "https://sync.example.com/auth/callback/monzo" {
		t.Fatalf("unexpected redirect_uri %q", form.Get("redirect_uri"))
	}
	if len(creds.prefixes) != 1 || creds.prefixes[0] != "monzo" {
		t.Fatalf("wrong secret prefix lookup: %v", creds.prefixes)
	}
}

func TestRefreshByTypeUsesSharedTrueLayerApp(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form = r.PostForm
		w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":7200}`))
	}))
	defer srv.Close()

	c, creds := newTestClient(srv.URL)

	if _, err := c.RefreshByType(context.Background(), models.ProviderAmex, "rt-old"); err != nil {
		t.Fatalf("refresh error: %v", err)
	}
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "rt-old" {
		t.Fatalf("unexpected grant form: %v", form)
	}
	if creds.prefixes[0] != "truelayer" {
		t.Fatalf("amex must use the shared truelayer registration, got %q", creds.prefixes[0])
	}
}

func TestTokenEndpointOutageIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	p, _ := Lookup(models.ProviderHalifax)

	_, err := c.Refresh(context.Background(), p, "rt-old")
	if !errs.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if errs.IsPermanentAuth(err) {
		t.Fatalf("outage must not read as revoked access: %v", err)
	}
}

func TestTokenGrantRejectionIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	p, _ := Lookup(models.ProviderMonzo)

	_, err := c.Exchange(context.Background(), p, "code-stale")
	if !errs.IsPermanentAuth(err) {
		t.Fatalf("expected permanent auth error, got %v", err)
	}
}

func TestEmptyAccessTokenIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"refresh_token":"rt-3"}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(srv.URL)
	p, _ := Lookup(models.ProviderMonzo)

	if _, err := c.Exchange(context.Background(), p, "code-1"); !errs.IsPermanentAuth(err) {
		t.Fatalf("expected permanent auth error, got %v", err)
	}
}

func TestClientAuthorizeURLUsesStoredClientID(t *testing.T) {
	c, _ := newTestClient("")
	p, _ := Lookup(models.ProviderMonzo)

	raw, err := c.AuthorizeURL(context.Background(), p, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("authorize url error: %v", err)
	}
	if !strings.Contains(raw, "client_id=client-1") {
		t.Fatalf("url missing stored client id: %s", raw)
	}
}
