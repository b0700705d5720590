package biblio

import "testing"

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple title",
			input: "Effects of Gait Training",
			want:  "effects of gait training",
		},
		{
			name:  "punctuation stripped",
			input: "Gait training: a randomized, controlled trial.",
			want:  "gait training a randomized controlled trial",
		},
		{
			name:  "whitespace collapsed",
			input: "  Gait\ttraining \n in children  ",
			want:  "gait training in children",
		},
		{
			name:  "unicode letters kept",
			input: "Étude de la marche",
			want:  "étude de la marche",
		},
		{
			name:  "digits kept",
			input: "GMFCS levels I-III",
			want:  "gmfcs levels iiii",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitle(tt.input); got != tt.want {
				t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeDOI(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain doi lowercased",
			input: "10.1038/Nature12373",
			want:  "10.1038/nature12373",
		},
		{
			name:  "https url prefix",
			input: "https://doi.org/10.1038/nature12373",
			want:  "10.1038/nature12373",
		},
		{
			name:  "DOI prefix",
			input: "DOI:10.1038/nature12373",
			want:  "10.1038/nature12373",
		},
		{
			name:  "surrounding whitespace",
			input: "  10.1038/nature12373 ",
			want:  "10.1038/nature12373",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDOI(tt.input); got != tt.want {
				t.Errorf("NormalizeDOI(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetTitleRecomputesKey(t *testing.T) {
	r := NewRecord("doc.pdf", "Original Title")
	if r.TitleNorm != "original title" {
		t.Fatalf("TitleNorm = %q, want %q", r.TitleNorm, "original title")
	}

	r.SetTitle("A Different Title!")
	if r.TitleNorm != "a different title" {
		t.Errorf("TitleNorm after SetTitle = %q, want %q", r.TitleNorm, "a different title")
	}
}
