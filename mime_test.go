package formatkit_test

import (
	"testing"

	formatkit "github.com/gobeaver/formatkit"
	"github.com/gobeaver/formatkit/application"
	"github.com/gobeaver/formatkit/generic"
	"github.com/gobeaver/formatkit/image"
	"github.com/gobeaver/formatkit/text"
)

func TestToMIMEOfficial(t *testing.T) {
	tests := []struct {
		format *formatkit.Format
		want   string
	}{
		{application.Json, "application/json"},
		{application.Zip, "application/zip"},
		{image.Png, "image/png"},
		{text.Csv, "text/csv"},
	}
	for _, tt := range tests {
		got, err := formatkit.ToMIME(tt.format, true)
		if err != nil {
			t.Fatalf("ToMIME(%s, official): %v", tt.format, err)
		}
		if got != tt.want {
			t.Errorf("ToMIME(%s, official) = %q, want %q", tt.format, got, tt.want)
		}
	}
}

func TestToMIMEOfficialRejectsCompound(t *testing.T) {
	if _, err := formatkit.ToMIME(formatkit.List{Item: application.Json}, true); !formatkit.IsRecognition(err) {
		t.Fatalf("list as official: expected recognition error, got %v", err)
	}
	union := formatkit.Union{Members: []formatkit.Type{application.Json, application.Yaml}}
	if _, err := formatkit.ToMIME(union, true); !formatkit.IsRecognition(err) {
		t.Fatalf("union as official: expected recognition error, got %v", err)
	}
	if _, err := formatkit.ToMIME(application.Zip.Of(application.Json), true); !formatkit.IsRecognition(err) {
		t.Fatalf("classified as official: expected recognition error, got %v", err)
	}
}

func TestMIMELikeRoundTrip(t *testing.T) {
	types := []formatkit.Type{
		application.Json,
		application.Zip,
		application.Zip.Of(application.Json),
		application.TarGzip.Of(text.Csv),
		generic.DirectoryOf(application.Json),
		image.Png,
		formatkit.List{Item: application.Json},
		formatkit.List{Item: application.Zip.Of(application.Json)},
		formatkit.Union{Members: []formatkit.Type{application.Json, application.Yaml}},
	}
	for _, typ := range types {
		mime, err := formatkit.ToMIME(typ, false)
		if err != nil {
			t.Fatalf("ToMIME(%v): %v", typ, err)
		}
		back, err := formatkit.FromMIME(mime)
		if err != nil {
			t.Fatalf("FromMIME(%q): %v", mime, err)
		}
		if !typesEqual(typ, back) {
			t.Errorf("round trip of %v via %q yielded %v", typ, mime, back)
		}
	}
}

// typesEqual leans on classified-type identity: equal parametrizations
// are the same descriptor value.
func typesEqual(a, b formatkit.Type) bool {
	switch av := a.(type) {
	case *formatkit.Format:
		bv, ok := b.(*formatkit.Format)
		return ok && av == bv
	case formatkit.List:
		bv, ok := b.(formatkit.List)
		return ok && typesEqual(av.Item, bv.Item)
	case formatkit.Union:
		bv, ok := b.(formatkit.Union)
		if !ok || len(av.Members) != len(bv.Members) {
			return false
		}
		for i := range av.Members {
			if !typesEqual(av.Members[i], bv.Members[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func TestFromMIMECatchAll(t *testing.T) {
	// Tar has no official registration, so the application/x- catch-all
	// finds it by name across namespaces.
	typ, err := formatkit.FromMIME("application/x-tar")
	if err != nil {
		t.Fatalf("FromMIME(application/x-tar): %v", err)
	}
	if typ != application.Tar {
		t.Errorf("FromMIME(application/x-tar) = %v, want %v", typ, application.Tar)
	}
}

func TestFromMIMEErrors(t *testing.T) {
	tests := []struct {
		name string
		mime string
	}{
		{"no slash", "not-a-mime"},
		{"unknown namespace", "nowhere/json"},
		{"unknown format", "application/does-not-exist"},
		{"unknown catch-all", "application/x-does-not-exist"},
		{"unknown classifier", "application/does-not-exist+zip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := formatkit.FromMIME(tt.mime); !formatkit.IsRecognition(err) {
				t.Fatalf("FromMIME(%q): expected recognition error, got %v", tt.mime, err)
			}
		})
	}
}

func TestClassifiedMIMEUsesClassifierNamespace(t *testing.T) {
	mime, err := formatkit.ToMIME(generic.DirectoryOf(application.Json), false)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "application/json+directory" {
		t.Errorf("DirectoryOf(Json) rendered as %q", mime)
	}
}

func TestFromMIMEMalformedIdentifier(t *testing.T) {
	tests := []struct {
		name string
		mime string
	}{
		{"empty", ""},
		{"empty format name", "application/"},
		{"empty namespace", "/json"},
		{"bare catch-all prefix", "application/x-"},
		{"extra slash", "application/json/extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := formatkit.FromMIME(tt.mime); !formatkit.IsRecognition(err) {
				t.Fatalf("FromMIME(%q): expected recognition error, got %v", tt.mime, err)
			}
		})
	}
}
