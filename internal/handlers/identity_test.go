package handlers

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/AnshRaj112/converse-backend/internal/services"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"Bearer  spaced ", "spaced"},
		{"bearer abc123", ""},
		{"Basic abc123", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := extractBearerToken(tc.header); got != tc.want {
			t.Fatalf("header %q: got=%q want=%q", tc.header, got, tc.want)
		}
	}
}

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
	}{
		{fmt.Errorf("empty content: %w", services.ErrValidation), 400},
		{services.ErrNotParticipant, 403},
		{fmt.Errorf("conversation x: %w", services.ErrNotFound), 404},
		{fmt.Errorf("connection refused"), 500},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		if rec.Code != tc.wantStatus {
			t.Fatalf("err %v: status got=%d want=%d", tc.err, rec.Code, tc.wantStatus)
		}

		var body map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid JSON body: %v", err)
		}
		if body["success"] != false {
			t.Fatalf("expected success=false, got %v", body["success"])
		}
	}
}

func TestAuthorizationErrorLeaksNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, services.ErrNotParticipant)

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["message"] != "not a participant of this conversation" {
		t.Fatalf("authorization message must stay generic, got %q", body["message"])
	}
}
