package main

import (
	"errors"
	"testing"
)

func TestExtractRootDomain(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://example.com", "example.com"},
		{"https://www.example.com", "example.com"},
		{"https://www.example.com/some/path?q=1", "example.com"},
		{"http://sub.example.co.uk", "sub.example.co.uk"},
		{"https://www.www.example.com", "www.example.com"},
		{"https://example.com:8080/page", "example.com"},
	}

	for _, tc := range cases {
		got, err := extractRootDomain(tc.input)
		if err != nil {
			t.Errorf("extractRootDomain(%q) returned error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("extractRootDomain(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExtractRootDomainRejectsInvalid(t *testing.T) {
	cases := []string{
		"",
		"not a url",
		"example.com",
		"/just/a/path",
		"https://",
	}

	for _, input := range cases {
		_, err := extractRootDomain(input)
		if err == nil {
			t.Errorf("extractRootDomain(%q) should have failed", input)
			continue
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("extractRootDomain(%q) error = %v, want ErrInvalidInput", input, err)
		}
	}
}
