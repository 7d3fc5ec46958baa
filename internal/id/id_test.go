package id

import "testing"

func TestRoundTrip(t *testing.T) {
	original := New(NamespaceArtist, 42)
	parsed, err := Parse(original.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != original {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestParseAsRejectsWrongNamespace(t *testing.T) {
	trackID := New(NamespaceTrack, 7)
	if _, err := ParseAs(trackID.String(), NamespaceArtist); err == nil {
		t.Fatal("expected error parsing a track id as an artist id")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{"", "noprefix", "artist_", "bogus_1", "_5"}
	for _, c := range cases {
		if _, err := Parse(c); err == nil {
			t.Errorf("Parse(%q): expected error, got none", c)
		}
	}
}

func TestParseAsAccepts(t *testing.T) {
	want := New(NamespacePlaylist, 123456)
	got, err := ParseAs(want.String(), NamespacePlaylist)
	if err != nil {
		t.Fatalf("ParseAs: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
