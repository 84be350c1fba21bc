package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"resume.pdf":        "resume.pdf",
		" resume.pdf ":      "resume.pdf",
		"a/b/resume.pdf":    "a_b_resume.pdf",
		"a\\b\\resume.docx": "a_b_resume.docx",
	}
	for in, want := range cases {
		got, err := SanitizeFileName(in)
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFileNameRejectsBadNames(t *testing.T) {
	for _, in := range []string{"", "   ", "../../etc/passwd", "a..b"} {
		if _, err := SanitizeFileName(in); err == nil {
			t.Fatalf("SanitizeFileName(%q) should fail", in)
		}
	}
}
