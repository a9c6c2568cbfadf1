package extractor

import (
	"errors"
	"strings"
	"testing"
)

func TestIsReadable(t *testing.T) {
	cases := []struct {
		name  string
		pages []string
		want  bool
	}{
		{"too short", []string{"Balance 10"}, false},
		{"garbage", []string{strings.Repeat("éüÿā", 30)}, false},
		{"no statement words", []string{strings.Repeat("lorem ipsum dolor ", 5)}, false},
		{"statement", []string{"Opening balance 1,000.00\n30/05 Direct debit Florist -120.00\nClosing balance 880.00"}, true},
	}
	for _, tc := range cases {
		if got := IsReadable(tc.pages); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPDFTextRejectsBadInput(t *testing.T) {
	if _, err := PDFText(nil); !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
	if _, err := PDFText([]byte("definitely not a pdf")); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name, ct string
		want     Kind
	}{
		{"export.csv", "", KindText},
		{"notes", "text/plain", KindText},
		{"statement.JSON", "application/json", KindText},
		{"may.pdf", "", KindPDF},
		{"blob", "application/pdf", KindPDF},
		{"receipt.jpg", "image/jpeg", KindBinary},
	}
	for _, tc := range cases {
		if got := Classify(tc.name, tc.ct); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMimeType(t *testing.T) {
	if got := MimeType("scan.pdf", ""); got != "application/pdf" {
		t.Fatalf("unexpected %q", got)
	}
	if got := MimeType("photo.png", "image/png"); got != "image/png" {
		t.Fatalf("unexpected %q", got)
	}
	if got := MimeType("mystery", ""); got != "application/octet-stream" {
		t.Fatalf("unexpected %q", got)
	}
}
