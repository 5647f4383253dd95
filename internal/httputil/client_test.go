package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type state struct {
	TrialNo int  `json:"trial_no"`
	Playing bool `json:"playing"`
}

func TestNewStandardClient_Default(t *testing.T) {
	c := NewStandardClient(nil)
	if c.Client != http.DefaultClient {
		t.Error("expected http.DefaultClient when nil is passed")
	}
}

func TestJSONClient_Get(t *testing.T) {
	mock := NewMockHTTPClient().AddResponse(http.StatusOK, `{"trial_no":4,"playing":true}`)
	c := NewJSONClient("http://viewer:8080/", mock)

	var got state
	if err := c.Get(context.Background(), "/api/state", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != (state{TrialNo: 4, Playing: true}) {
		t.Errorf("got %+v", got)
	}

	req := mock.LastRequest()
	if req.URL.String() != "http://viewer:8080/api/state" {
		t.Errorf("url = %s", req.URL)
	}
	if req.Method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.Method)
	}
}

func TestJSONClient_PostBody(t *testing.T) {
	var gotBody string
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		gotBody = string(b)
		if ct := req.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		rec := httptest.NewRecorder()
		WriteJSONOK(rec, state{TrialNo: 1})
		return rec.Result(), nil
	}
	c := NewJSONClient("http://viewer", mock)

	var got state
	if err := c.Post(context.Background(), "/api/goto", map[string]int{"trial": 1}, &got); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotBody != `{"trial":1}` {
		t.Errorf("body = %s", gotBody)
	}
	if got.TrialNo != 1 {
		t.Errorf("trial_no = %d, want 1", got.TrialNo)
	}
}

func TestJSONClient_APIError(t *testing.T) {
	mock := NewMockHTTPClient().
		AddResponse(http.StatusConflict, `{"error":"already at the last trial"}`).
		AddResponse(http.StatusBadGateway, "upstream gone\n")
	c := NewJSONClient("http://viewer", mock)

	err := c.Post(context.Background(), "/api/next", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "already at the last trial" {
		t.Errorf("got %+v", apiErr)
	}

	err = c.Get(context.Background(), "/api/state", nil)
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream gone" {
		t.Errorf("non-JSON error body: got %v", err)
	}
}

func TestJSONClient_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	mock := NewMockHTTPClient().AddErrorResponse(boom)
	c := NewJSONClient("http://viewer", mock)

	err := c.Post(context.Background(), "/api/play", nil, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("request count = %d, want 1", mock.RequestCount())
	}
}

func TestStandardClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, state{TrialNo: 9})
	}))
	defer srv.Close()

	c := NewJSONClient(srv.URL, NewStandardClient(srv.Client()))
	var got state
	if err := c.Get(context.Background(), "/", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TrialNo != 9 {
		t.Errorf("trial_no = %d, want 9", got.TrialNo)
	}
}
