package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/shopkit/errors"
	"github.com/kbukum/shopkit/pipeline"
)

type product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type cartItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type apiError struct {
	Error string `json:"error"`
}

// recorder answers with a fixed status and body and keeps the last request.
type recorder struct {
	status int
	body   any
	last   *pipeline.Request
}

func (r *recorder) dispatcher() *pipeline.Dispatcher {
	return pipeline.NewDispatcher(pipeline.ExecutorFunc(func(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
		r.last = req
		data, _ := json.Marshal(r.body)
		return &pipeline.Response{StatusCode: r.status, Body: data, Headers: http.Header{"Content-Type": {"application/json"}}}, nil
	}), nil)
}

func TestGet_DecodesTypedResponse(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: product{ID: "42", Name: "Mug", Price: 9.5}}

	resp, err := Get[product](context.Background(), rec.dispatcher(), "/products/42",
		WithSession(),
		WithQuery(map[string]string{"lang": "en"}),
		WithHeaders(map[string]string{"Accept-Language": "en"}),
		WithTimeout(time.Second),
		WithRequestID("req-7"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := product{ID: "42", Name: "Mug", Price: 9.5}
	if diff := cmp.Diff(want, resp.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	req := rec.last
	if req.Method != http.MethodGet || !req.RequiresSession || req.Query.Get("lang") != "en" ||
		req.Headers.Value("accept-language") != "en" || req.Timeout != time.Second || req.ID != "req-7" {
		t.Errorf("options not applied: %+v", req)
	}
}

func TestPost_EncodesStructBody(t *testing.T) {
	rec := &recorder{status: http.StatusCreated, body: map[string]int{"count": 1}}

	resp, err := Post[map[string]int](context.Background(), rec.dispatcher(), "/cart/items", cartItem{SKU: "A1", Quantity: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated || resp.Data["count"] != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	want := map[string]any{"sku": "A1", "quantity": float64(2)}
	if diff := cmp.Diff(want, rec.last.BodyParameters); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestPost_RejectsNonObjectBody(t *testing.T) {
	rec := &recorder{status: http.StatusOK}
	_, err := Post[struct{}](context.Background(), rec.dispatcher(), "/cart", []string{"a"})
	if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if rec.last != nil {
		t.Error("request must not be sent")
	}
}

func TestDelete_ErrorWithTypedPayload(t *testing.T) {
	rec := &recorder{status: http.StatusNotFound, body: apiError{Error: "no such item"}}

	resp, err := Delete[apiError](context.Background(), rec.dispatcher(), "/cart/items/9")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if resp == nil || resp.Data.Error != "no such item" {
		t.Errorf("expected decoded error payload, got %+v", resp)
	}
}

func TestPutPatch_Methods(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: map[string]string{}}
	d := rec.dispatcher()

	if _, err := Put[map[string]string](context.Background(), d, "/profile", map[string]any{"name": "Ada"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.last.Method != http.MethodPut {
		t.Errorf("expected PUT, got %s", rec.last.Method)
	}
	if _, err := Patch[map[string]string](context.Background(), d, "/profile", nil); err != nil {
		t.Fatalf("patch: %v", err)
	}
	if rec.last.Method != http.MethodPatch || rec.last.BodyParameters != nil {
		t.Errorf("unexpected patch request %+v", rec.last)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found", errors.NotFound(nil), IsNotFound, true},
		{"unauthorized is auth", errors.Unauthorized(nil), IsAuth, true},
		{"closed session is auth", errors.SessionClosed(), IsAuth, true},
		{"refresh failure is auth", errors.SessionRefreshFailed(nil), IsAuth, true},
		{"update required", errors.AppUpdateRequired(426), IsUpdateRequired, true},
		{"transport retryable", errors.Transport(nil), IsRetryable, true},
		{"update not retryable", errors.AppUpdateRequired(426), IsRetryable, false},
		{"plain error", context.Canceled, IsRetryable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
