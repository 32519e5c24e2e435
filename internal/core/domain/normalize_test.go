package domain

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "exact",
			input: "Hello",
			want:  "hello",
		},
		{
			name:  "dash suffix",
			input: "Track - Remastered 2011",
			want:  "track",
		},
		{
			name:  "bracket suffix",
			input: "Song (Live)",
			want:  "song",
		},
		{
			name:  "square bracket suffix",
			input: "Song [Radio Edit]",
			want:  "song",
		},
		{
			name:  "punctuation",
			input: "AC/DC",
			want:  "ac dc",
		},
		{
			name:  "not suffix",
			input: "Live Forever",
			want:  "live forever",
		},
		{
			name:  "surrounding whitespace",
			input: "  Daft Punk ",
			want:  "daft punk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCatalogTrack_DedupKey(t *testing.T) {
	a := CatalogTrack{ID: "1", Title: "One More Time", Artists: []string{"Daft Punk"}}
	b := CatalogTrack{ID: "2", Title: "One More Time (Remastered)", Artists: []string{"DAFT PUNK ", "Romanthony"}}
	c := CatalogTrack{ID: "3", Title: "One More Time", Artists: []string{"Someone Else"}}

	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("expected equal keys, got %q and %q", a.DedupKey(), b.DedupKey())
	}
	if a.DedupKey() == c.DedupKey() {
		t.Fatalf("expected different keys for different artists")
	}
}
