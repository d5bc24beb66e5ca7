package vfm

import (
	"testing"

	"vfm-go/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		wantType model.FileType
		wantExt  string
	}{
		{"report.pdf", model.FileTypeDocument, "pdf"},
		{"Report.PDF", model.FileTypeDocument, "pdf"},
		{"archive.tar.gz", model.FileTypeOther, "gz"},
		{"photo.jpg", model.FileTypeOther, "jpg"},
		{"README", model.FileTypeOther, "readme"},
		{"PDF", model.FileTypeDocument, "pdf"},
		{".bashrc", model.FileTypeOther, "bashrc"},
		{"trailing.", model.FileTypeOther, ""},
		{"", model.FileTypeOther, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotExt := Classify(tt.name)
			if gotType != tt.wantType || gotExt != tt.wantExt {
				t.Errorf("Classify(%q) = %q, %q; want %q, %q", tt.name, gotType, gotExt, tt.wantType, tt.wantExt)
			}
		})
	}
}

func TestBaseAndJoinName(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		base string
	}{
		{"report.pdf", "pdf", "report"},
		{"Report.PDF", "pdf", "Report"},
		{"README", "", "README"},
		{"README", "readme", "README"},
		{"a.b.c", "c", "a.b"},
		{".pdf", "pdf", ".pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseName(tt.name, tt.ext); got != tt.base {
				t.Errorf("BaseName(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.base)
			}
		})
	}

	if got := JoinName("final", "pdf"); got != "final.pdf" {
		t.Errorf("JoinName() = %q, want %q", got, "final.pdf")
	}
	if got := JoinName("README", ""); got != "README" {
		t.Errorf("JoinName() = %q, want %q", got, "README")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{4 * 1024 * 1024, "4.0 MB"},
		{MaxUploadSize, "10.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{5 << 50, "5120.0 TB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.bytes); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
