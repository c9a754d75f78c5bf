package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, 5*time.Second, zaptest.NewLogger(t)), server
}

func TestClient_Start_Success(t *testing.T) {
	var got StartRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("Expected path /translate, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"message": "Translation process initiated", "taskId": got.TaskID})
	})

	err := client.Start(context.Background(), &StartRequest{
		TaskID:         "task-1",
		UserID:         "user-1",
		FileName:       "paper.pdf",
		PDFContent:     "JVBERi0=",
		TargetLanguage: "de",
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got.TaskID != "task-1" || got.PDFContent != "JVBERi0=" {
		t.Errorf("Request body not forwarded faithfully: %+v", got)
	}
}

func TestClient_Start_StructuredError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"overloaded"}`))
	})

	err := client.Start(context.Background(), &StartRequest{TaskID: "task-1"})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if svcErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", svcErr.StatusCode)
	}
	if svcErr.Message != "overloaded" {
		t.Errorf("Expected message %q, got %q", "overloaded", svcErr.Message)
	}
}

func TestClient_Start_RawBodyTruncated(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 1000)))
	})

	err := client.Start(context.Background(), &StartRequest{TaskID: "task-1"})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if len(svcErr.Message) > maxErrorBody+3 {
		t.Errorf("Error message not truncated: %d chars", len(svcErr.Message))
	}
	if !strings.HasSuffix(svcErr.Message, "...") {
		t.Errorf("Expected truncation marker, got %q", svcErr.Message[len(svcErr.Message)-10:])
	}
}

func TestClient_Start_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, time.Second, zaptest.NewLogger(t))

	err := client.Start(context.Background(), &StartRequest{TaskID: "task-1"})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Expected ErrNetwork, got %v", err)
	}
}

func TestClient_RetrieveArtifact_ContentDisposition(t *testing.T) {
	pdf := []byte("%PDF-1.4 fake artifact")
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate-pdf" {
			t.Errorf("Expected path /generate-pdf, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="server_named.pdf"`)
		w.Write(pdf)
	})

	artifact, err := client.RetrieveArtifact(context.Background(), &ArtifactRequest{
		TranslatedContent: "Hallo\n\nWelt",
		OriginalFileName:  "paper.pdf",
		TargetLanguage:    "de",
	})
	if err != nil {
		t.Fatalf("RetrieveArtifact failed: %v", err)
	}
	if artifact.FileName != "server_named.pdf" {
		t.Errorf("Expected server-provided filename, got %q", artifact.FileName)
	}
	if string(artifact.Data) != string(pdf) {
		t.Error("Artifact bytes do not match response body")
	}
}

func TestClient_RetrieveArtifact_SynthesizedFileName(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4"))
	})

	artifact, err := client.RetrieveArtifact(context.Background(), &ArtifactRequest{
		TranslatedContent: "Bonjour",
		OriginalFileName:  "my paper.pdf",
		TargetLanguage:    "fr",
	})
	if err != nil {
		t.Fatalf("RetrieveArtifact failed: %v", err)
	}
	if artifact.FileName != "my paper_translated_fr.pdf" {
		t.Errorf("Expected synthesized filename, got %q", artifact.FileName)
	}
}

func TestClient_RetrieveArtifact_Error(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Could not create PDF: font missing"}`))
	})

	_, err := client.RetrieveArtifact(context.Background(), &ArtifactRequest{OriginalFileName: "a.pdf", TargetLanguage: "en"})

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Expected ServiceError, got %v", err)
	}
	if !strings.Contains(svcErr.Message, "font missing") {
		t.Errorf("Expected structured message, got %q", svcErr.Message)
	}
}
