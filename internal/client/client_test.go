package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
	"github.com/voltgrid/ocpi-gateway/internal/testutil"
)

const credential = "cGFydG5lci1zZWNyZXQ="

type result struct {
	Result string `json:"result"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_PostAccepted(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "command_result_accepted")
	defer cleanup()

	c := New(WithHTTPClient(testutil.VCRHTTPClient(recorder)), WithLogger(quietLogger()))

	reply, err := c.Post(context.Background(),
		"https://emsp.example.com/ocpi/emsp/2.2.1/commands/START_SESSION/3f2b8c1e",
		credential, result{Result: "ACCEPTED"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if reply.StatusCode != ocpi.StatusSuccess {
		t.Errorf("StatusCode = %d, want 1000", reply.StatusCode)
	}
}

func TestClient_PostPartnerErrors(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "command_result_rejected")
	defer cleanup()

	c := New(WithHTTPClient(testutil.VCRHTTPClient(recorder)), WithLogger(quietLogger()))
	ctx := context.Background()

	reply, err := c.Post(ctx, "https://emsp.example.com/ocpi/emsp/2.2.1/commands/STOP_SESSION/9a7d0e44",
		credential, result{Result: "FAILED"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Post() error = %v, want *StatusError", err)
	}
	if statusErr.Code != ocpi.StatusInvalidParameters || statusErr.Message != "Unknown command uid" {
		t.Errorf("StatusError = %+v", statusErr)
	}
	if reply == nil || reply.StatusCode != ocpi.StatusInvalidParameters {
		t.Errorf("reply = %+v, want the decoded envelope", reply)
	}

	_, err = c.Post(ctx, "https://emsp.example.com/ocpi/emsp/2.2.1/commands/STOP_SESSION/unreachable",
		credential, result{Result: "FAILED"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Post() error = %v, want HTTP 503", err)
	}
}

func TestClient_WrongCredentialFindsNoRecording(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "command_result_accepted")
	defer cleanup()

	c := New(WithHTTPClient(testutil.VCRHTTPClient(recorder)), WithLogger(quietLogger()))
	_, err := c.Post(context.Background(),
		"https://emsp.example.com/ocpi/emsp/2.2.1/commands/START_SESSION/3f2b8c1e",
		"wrong", result{Result: "ACCEPTED"})
	if err == nil {
		t.Fatal("expected error for unrecorded credential")
	}
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"status_code":1000,"timestamp":"2024-03-01T10:00:00Z"}`))
	}))
	defer srv.Close()

	c := New(WithLogger(quietLogger()))
	if _, err := c.Post(context.Background(), srv.URL, "abc", result{Result: "ACCEPTED"}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if gotAuth != "Token abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Token abc")
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(WithTimeout(50*time.Millisecond), WithLogger(quietLogger()))
	_, err := c.Post(context.Background(), srv.URL, "abc", result{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Post() error = %v, want deadline exceeded", err)
	}
}

func TestClient_MalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	if _, err := New(WithLogger(quietLogger())).Post(context.Background(), srv.URL, "abc", result{}); err == nil {
		t.Fatal("expected decode error")
	}
}
