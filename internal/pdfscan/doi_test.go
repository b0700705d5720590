package pdfscan

import "testing"

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain doi",
			text: "available at doi 10.1038/nature12373 online",
			want: "10.1038/nature12373",
		},
		{
			name: "trailing period stripped",
			text: "See 10.1016/j.gaitpost.2020.01.012.",
			want: "10.1016/j.gaitpost.2020.01.012",
		},
		{
			name: "first valid match wins",
			text: "10.1/x then 10.1093/brain/awaa123",
			want: "10.1093/brain/awaa123",
		},
		{
			name: "no doi",
			text: "plain text without identifiers",
			want: "",
		},
		{
			name: "empty text",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindDOI(tt.text); got != tt.want {
				t.Errorf("FindDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
