package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSMSClient_Send_Success(t *testing.T) {
	t.Parallel()

	type gotReq struct {
		Method         string
		ContentType    string
		IdempotencyKey string
		User           string
		Pass           string
		Body           []byte
	}

	var captured gotReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Method = r.Method
		captured.ContentType = r.Header.Get("Content-Type")
		captured.IdempotencyKey = r.Header.Get("Idempotency-Key")
		captured.User, captured.Pass, _ = r.BasicAuth()

		b, _ := io.ReadAll(r.Body)
		captured.Body = b

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"status":"queued","sid":"SM123abc"}`))
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "AC0001", "secret-token", "+12065550000")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sid, err := c.Send(ctx, "+12065551234", "hello")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if sid != "SM123abc" {
		t.Fatalf("expected sid %q, got %q", "SM123abc", sid)
	}

	if captured.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %q", captured.Method)
	}
	if captured.ContentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", captured.ContentType)
	}
	if captured.IdempotencyKey == "" {
		t.Fatalf("expected an Idempotency-Key header")
	}
	if captured.User != "AC0001" || captured.Pass != "secret-token" {
		t.Fatalf("unexpected basic auth: %q / %q", captured.User, captured.Pass)
	}

	var req sendRequest
	if err := json.Unmarshal(captured.Body, &req); err != nil {
		t.Fatalf("failed to decode request json: %v body=%q", err, string(captured.Body))
	}
	if req.From != "+12065550000" {
		t.Fatalf("expected from %q, got %q", "+12065550000", req.From)
	}
	if req.To != "+12065551234" {
		t.Fatalf("expected to %q, got %q", "+12065551234", req.To)
	}
	if req.Body != "hello" {
		t.Fatalf("expected body %q, got %q", "hello", req.Body)
	}
}

func TestSMSClient_Send_RejectedStatus_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad credentials"))
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "AC0001", "wrong", "+12065550000")

	_, err := c.Send(context.Background(), "+12065551234", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	msg := err.Error()
	if !strings.Contains(msg, "unexpected status code: 401") {
		t.Fatalf("expected error to mention status code, got: %v", err)
	}
	if !strings.Contains(msg, `body="bad credentials"`) {
		t.Fatalf("expected error to include body, got: %v", err)
	}
}

func TestSMSClient_Send_InvalidJSON_ReturnsErrorWithBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("THIS IS NOT JSON"))
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "AC0001", "token", "+12065550000")

	_, err := c.Send(context.Background(), "+12065551234", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to decode json") {
		t.Fatalf("expected decode error, got: %v", err)
	}
}

func TestSMSClient_Send_MissingSID_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "AC0001", "token", "+12065550000")

	_, err := c.Send(context.Background(), "+12065551234", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "missing sid") {
		t.Fatalf("expected missing sid error, got: %v", err)
	}
}

func TestSMSClient_Send_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued","sid":"SM1"}`))
	}))
	defer srv.Close()

	c := NewSMSClient(srv.URL, "AC0001", "token", "+12065550000")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Send(ctx, "+12065551234", "hi")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(strings.ToLower(err.Error()), "context") &&
		!strings.Contains(strings.ToLower(err.Error()), "deadline") {
		t.Fatalf("expected context/deadline error, got: %v", err)
	}
}
