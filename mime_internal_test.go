package formatkit

import "testing"

func TestToMIMEFormatName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Json", "json"},
		{"internal capital", "TarGzip", "tar-gzip"},
		{"single underscore", "Nifti_Gzip", "nifti.gzip"},
		{"double underscore", "Png__Metadata", "png+metadata"},
		{"leading digit escape", "_7Zip", "7-zip"},
		{"lowercase run", "Bmp", "bmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toMIMEFormatName(tt.in)
			if err != nil {
				t.Fatalf("toMIMEFormatName(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("toMIMEFormatName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToMIMEFormatNameTripleUnderscore(t *testing.T) {
	if _, err := toMIMEFormatName("Bad___Name"); !IsDefinition(err) {
		t.Fatalf("expected definition error, got %v", err)
	}
}

func TestFromMIMEFormatNameRoundTrip(t *testing.T) {
	names := []string{"Json", "TarGzip", "Nifti_Gzip", "Png__Metadata", "_7Zip", "Csv"}
	for _, name := range names {
		mimeName, err := toMIMEFormatName(name)
		if err != nil {
			t.Fatalf("toMIMEFormatName(%q): %v", name, err)
		}
		if got := fromMIMEFormatName(mimeName); got != name {
			t.Errorf("round trip of %q via %q = %q", name, mimeName, got)
		}
	}
}
