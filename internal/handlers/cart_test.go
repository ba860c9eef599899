package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gitshopapp/storefront/internal/cart"
	"github.com/gitshopapp/storefront/internal/session"
)

func TestGetCart_StartsAnonymousSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	rec := httptest.NewRecorder()

	env.identified(env.handlers.GetCart).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	owner := env.carts.lastOwner()
	if owner.AnonymousID == "" || owner.MemberID != "" {
		t.Fatalf("owner = %+v", owner)
	}

	var body cartResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.CartID != "" || len(body.Lines) != 0 || body.Totals.Total != "0.00" {
		t.Fatalf("unexpected empty cart body: %+v", body)
	}
}

func TestGetCart_ReusesSessionAcrossRequests(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	handler := env.identified(env.handlers.GetCart)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	first := env.carts.lastOwner()

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if second := env.carts.lastOwner(); second != first {
		t.Fatalf("owner changed between requests: %+v -> %+v", first, second)
	}
}

func TestGetCart_MemberToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer "+env.memberToken(t, "member-7", ""))
	rec := httptest.NewRecorder()

	env.identified(env.handlers.GetCart).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if owner := env.carts.lastOwner(); owner.MemberID != "member-7" || owner.AnonymousID != "" {
		t.Fatalf("owner = %+v", owner)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("members should not get an anonymous session")
	}
}

func TestGetCart_InvalidTokenIsUnauthorized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()

	env.identified(env.handlers.GetCart).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.carts.owners) != 0 {
		t.Fatal("cart service should not be called")
	}
}

func TestAddCartLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantQty    string
		wantBody   string
	}{
		{
			name:       "numeric quantity",
			body:       `{"sku":"MUG-1","quantity":2}`,
			wantStatus: http.StatusOK,
			wantQty:    "2",
		},
		{
			name:       "string quantity",
			body:       `{"sku":"MUG-1","quantity":"3"}`,
			wantStatus: http.StatusOK,
			wantQty:    "3",
		},
		{
			name:       "fractional quantity reaches validation",
			body:       `{"sku":"MUG-1","quantity":2.5}`,
			serviceErr: &cart.ValidationError{Field: "quantity", Code: cart.CodeNotAnInt},
			wantStatus: http.StatusUnprocessableEntity,
			wantQty:    "2.5",
			wantBody:   `{"errors":[{"field":"quantity","code":"not_an_int"}]}`,
		},
		{
			name:       "out of range",
			body:       `{"sku":"MUG-1","quantity":100}`,
			serviceErr: &cart.ValidationError{Field: "quantity", Code: cart.CodeOutOfRange},
			wantStatus: http.StatusUnprocessableEntity,
			wantQty:    "100",
			wantBody:   `{"errors":[{"field":"quantity","code":"out_of_range"}]}`,
		},
		{
			name:       "unknown sku",
			body:       `{"sku":"NOPE","quantity":1}`,
			serviceErr: cart.SKUNotFound,
			wantStatus: http.StatusOK,
			wantQty:    "1",
			wantBody:   `{"error":"sku-not-found"}`,
		},
		{
			name:       "malformed body",
			body:       `{"sku":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"invalid-request"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.carts.err = tt.serviceErr

			req := httptest.NewRequest(http.MethodPost, "/cart/lines", jsonBody(tt.body))
			rec := httptest.NewRecorder()
			env.identified(env.handlers.AddCartLine).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env.carts.lastQty != tt.wantQty {
				t.Fatalf("quantity passed = %q, want %q", env.carts.lastQty, tt.wantQty)
			}
			if tt.wantBody != "" {
				if got := rec.Body.String(); got != tt.wantBody+"\n" {
					t.Fatalf("body = %q, want %q", got, tt.wantBody)
				}
			}
		})
	}
}

func TestSelectShippingAndApplyDiscount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.identified(env.handlers.SelectShippingMethod).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPut, "/cart/shipping", jsonBody(`{"shipping_method_id":"usps-ground"}`)))
	if rec.Code != http.StatusOK || env.carts.lastMethod != "usps-ground" {
		t.Fatalf("shipping: status = %d, method = %q", rec.Code, env.carts.lastMethod)
	}

	rec = httptest.NewRecorder()
	env.identified(env.handlers.ApplyDiscountCode).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/cart/discounts", jsonBody(`{"code":"save10"}`)))
	if rec.Code != http.StatusOK || env.carts.lastCode != "save10" {
		t.Fatalf("discount: status = %d, code = %q", rec.Code, env.carts.lastCode)
	}

	env.carts.err = cart.DiscountCodeNotFound
	rec = httptest.NewRecorder()
	env.identified(env.handlers.ApplyDiscountCode).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/cart/discounts", jsonBody(`{"code":"BOGUS"}`)))
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"error\":\"discount-code-not-found\"}\n" {
		t.Fatalf("unknown code: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestMergeCart(t *testing.T) {
	t.Parallel()

	t.Run("requires member", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		rec := httptest.NewRecorder()
		handler := env.identified(env.handlers.RequireMember(http.HandlerFunc(env.handlers.MergeCart)).ServeHTTP)
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/merge", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.carts.mergeMember != "" {
			t.Fatal("merge should not run without a member")
		}
	})

	t.Run("merges anonymous session cart", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		env.carts.mergeMoved = 2

		// Browse anonymously first to get a session.
		browse := httptest.NewRecorder()
		env.identified(env.handlers.GetCart).ServeHTTP(browse, httptest.NewRequest(http.MethodGet, "/cart", nil))
		anonymousID := env.carts.lastOwner().AnonymousID
		sessionCookie := browse.Result().Cookies()[0]

		req := httptest.NewRequest(http.MethodPost, "/cart/merge", nil)
		req.AddCookie(sessionCookie)
		req.Header.Set("Authorization", "Bearer "+env.memberToken(t, "member-1", ""))
		rec := httptest.NewRecorder()
		handler := env.identified(env.handlers.RequireMember(http.HandlerFunc(env.handlers.MergeCart)).ServeHTTP)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if env.carts.mergeMember != "member-1" || env.carts.mergeAnon != anonymousID {
			t.Fatalf("merge called with %q, %q", env.carts.mergeMember, env.carts.mergeAnon)
		}

		var body struct {
			MovedLines int `json:"moved_lines"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.MovedLines != 2 {
			t.Fatalf("moved lines = %d, err = %v", body.MovedLines, err)
		}

		cleared := rec.Result().Cookies()
		if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
			t.Fatalf("expected session cookie to be cleared, got %+v", cleared)
		}
	})
}
