package testutil

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	if fakeT.Failed() {
		t.Error("expected no failure for matching status codes")
	}
}

func TestAssertNoError_NilErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertNoError(fakeT, nil)
	if fakeT.Failed() {
		t.Error("expected no failure for nil error")
	}
}

func TestAssertError_WithErr(t *testing.T) {
	fakeT := &testing.T{}
	AssertError(fakeT, errors.New("something wrong"))
	if fakeT.Failed() {
		t.Error("expected no failure when error is present")
	}
}

func TestNewTestRequest_MethodAndPath(t *testing.T) {
	req := NewTestRequest(http.MethodPost, "/api/next")
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.Path != "/api/next" {
		t.Errorf("path = %s, want /api/next", req.URL.Path)
	}
}

func TestDecodeJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteString(`{"trial_no":3}`)
	var got struct {
		TrialNo int `json:"trial_no"`
	}
	DecodeJSON(t, rec, &got)
	if got.TrialNo != 3 {
		t.Errorf("trial_no = %d, want 3", got.TrialNo)
	}
}

func TestTempDBPath(t *testing.T) {
	p := TempDBPath(t)
	if filepath.Ext(p) != ".db" {
		t.Errorf("path = %s, want a .db file", p)
	}
	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		t.Errorf("parent dir missing: %v", err)
	}
}

func TestFloat32LE(t *testing.T) {
	got := Float32LE(1, -2)
	want := []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x00, 0xc0}
	if !bytes.Equal(got, want) {
		t.Errorf("Float32LE = % x, want % x", got, want)
	}
	if len(Float32LE()) != 0 {
		t.Error("empty input should encode to an empty payload")
	}
}

func TestWriteFloat32File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.wheel.bytes")
	WriteFloat32File(t, path, 0.5)
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, Float32LE(0.5)) {
		t.Errorf("file = % x", b)
	}
}
