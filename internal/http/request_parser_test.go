package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"explicit month", url.Values{"month": {"January"}}, "January"},
		{"trimmed", url.Values{"month": {"  July "}}, "July"},
		{"missing defaults to now", url.Values{}, "March"},
		{"blank defaults to now", url.Values{"month": {"   "}}, "March"},
		{"unknown label kept", url.Values{"month": {"Q1"}}, "Q1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseMonth(tt.query, now); got != tt.want {
				t.Errorf("ParseMonth() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"transactionId": "123", "description": "test", "amount": 42.5, "isPaid": true}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("transactionId"); id != "123" {
		t.Errorf("Get('transactionId') = %q, want '123'", id)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if paid := parser.Get("isPaid"); paid != "true" {
		t.Errorf("Get('isPaid') = %q, want 'true'", paid)
	}
	if missing := parser.Get("card"); missing != "" {
		t.Errorf("Get('card') = %q, want empty", missing)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "transactionId=456&description=form+test&account=%09Main%00"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("transactionId"); id != "456" {
		t.Errorf("Get('transactionId') = %q, want '456'", id)
	}
	if desc := parser.Get("description"); desc != "form test" {
		t.Errorf("Get('description') = %q, want 'form test'", desc)
	}
	if acc := parser.Get("account"); acc != "Main" {
		t.Errorf("Get('account') = %q, want control characters stripped", acc)
	}
}

func TestRequestBodyParser_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"id":`))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if parser.IsJSON() {
		t.Error("IsJSON() should be false after a failed parse")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_TransactionInput(t *testing.T) {
	body := url.Values{
		"description":  {" Coffee "},
		"amount":       {"4.50"},
		"type":         {"expense"},
		"isPaid":       {"on"},
		"account":      {"Checking"},
		"card":         {"Visa"},
		"installments": {"1/3"},
		"month":        {"March"},
	}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(httptest.NewRecorder(), req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	in := parser.TransactionInput("u1")

	if in.Description != "Coffee" || in.Amount != "4.50" || in.Type != "expense" {
		t.Errorf("unexpected core fields: %+v", in)
	}
	if in.IsPaid != "on" || in.Account != "Checking" || in.Card != "Visa" || in.Installments != "1/3" {
		t.Errorf("unexpected optional fields: %+v", in)
	}
	if in.Month != "March" || in.UserID != "u1" {
		t.Errorf("unexpected scope: %+v", in)
	}
}

func TestRequireMethod(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		allowed []string
		wantErr bool
	}{
		{"POST allowed", http.MethodPost, []string{http.MethodPost}, false},
		{"DELETE allowed with multiple", http.MethodDelete, []string{http.MethodDelete, http.MethodPost}, false},
		{"GET not allowed", http.MethodGet, []string{http.MethodPost}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireMethod(req, tt.allowed...)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequireDeleteOrPOST(t *testing.T) {
	tests := []struct {
		method  string
		wantErr bool
	}{
		{http.MethodPost, false},
		{http.MethodDelete, false},
		{http.MethodGet, true},
		{http.MethodPut, true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/test", nil)
			result := RequireDeleteOrPOST(req)

			if tt.wantErr && result == nil {
				t.Error("Expected error response but got nil")
			}
			if !tt.wantErr && result != nil {
				t.Error("Expected nil but got error response")
			}
		})
	}
}

func TestRequestBodyParser_BodyLimit(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		tooLarge bool
	}{
		{"at limit", maxBodyBytes, false},
		{"one byte over", maxBodyBytes + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "description=" + strings.Repeat("a", tt.size-len("description="))
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))

			err := NewRequestBodyParser(httptest.NewRecorder(), req).Parse()
			if tt.tooLarge {
				if !BodyTooLarge(err) {
					t.Fatalf("Parse() error = %v, want body too large", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
		})
	}
}
