package audioext

import "testing"

func TestMimeFromFormatName(t *testing.T) {
	cases := []struct {
		formatName string
		want       string
	}{
		{"flac", "audio/flac"},
		{"mp3", "audio/mpeg"},
		{"ogg", "audio/ogg"},
		{"mov,mp4,m4a,3gp,3g2,mj2", "audio/mp4"},
		{"wav", "audio/wav"},
		{"", "application/octet-stream"},
		{"asf", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := mimeFromFormatName(tc.formatName); got != tc.want {
			t.Errorf("mimeFromFormatName(%q) = %q, want %q", tc.formatName, got, tc.want)
		}
	}
}

func TestMimeFromFormatNameIgnoresExtensionlessPath(t *testing.T) {
	// Regression test: real callers probe extensionless temp files
	// (os.CreateTemp("", "sonar-probe-*")), so mime must never be derived
	// from the probed path's extension.
	if got := mimeFromFormatName("mp3"); got != "audio/mpeg" {
		t.Errorf("mimeFromFormatName(%q) = %q, want audio/mpeg", "mp3", got)
	}
}
