package urlutil

import (
	"net/url"
	"testing"
)

func TestNormalize(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/")

	tests := []struct {
		name    string
		raw     string
		base    *url.URL
		want    string
		wantErr bool
	}{
		{name: "absolute unchanged", raw: "https://example.com/page", want: "https://example.com/page"},
		{name: "fragment stripped", raw: "https://example.com/page#section", want: "https://example.com/page"},
		{name: "scheme lowercased", raw: "HTTPS://example.com/page", want: "https://example.com/page"},
		{name: "host lowercased", raw: "https://EXAMPLE.com/page", want: "https://example.com/page"},
		{name: "default https port dropped", raw: "https://example.com:443/page", want: "https://example.com/page"},
		{name: "default http port dropped", raw: "http://example.com:80/page", want: "http://example.com/page"},
		{name: "custom port kept", raw: "https://example.com:8443/page", want: "https://example.com:8443/page"},
		{name: "empty path becomes root", raw: "https://example.com", want: "https://example.com/"},
		{name: "relative resolved", raw: "guide", base: base, want: "https://example.com/docs/guide"},
		{name: "rooted relative resolved", raw: "/about", base: base, want: "https://example.com/about"},
		{name: "query preserved", raw: "https://example.com/search?q=go", want: "https://example.com/search?q=go"},
		{name: "relative without base", raw: "guide", wantErr: true},
		{name: "ftp rejected", raw: "ftp://example.com/file", wantErr: true},
		{name: "javascript rejected", raw: "javascript:void(0)", wantErr: true},
		{name: "empty rejected", raw: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.base)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := "HTTPS://Example.COM:443/Docs/Page#frag"
	once, err := Normalize(raw, nil)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Normalize(once, nil)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("second pass changed result: %q -> %q", once, twice)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("https://example.com"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	if err := Validate("ftp://example.com"); err == nil {
		t.Error("ftp scheme accepted")
	}
	if err := Validate("https://"); err == nil {
		t.Error("hostless URL accepted")
	}
}

func TestRegistrableDomain(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.example.com", "example.com"},
		{"deep.sub.example.co.uk", "example.co.uk"},
		{"localhost", "localhost"},
		{"127.0.0.1", "127.0.0.1"},
	}
	for _, tt := range tests {
		if got := RegistrableDomain(tt.host); got != tt.want {
			t.Errorf("RegistrableDomain(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestSameSite(t *testing.T) {
	if !SameSite("https://www.example.com/a", "https://blog.example.com/b") {
		t.Error("subdomains of one registrable domain reported as different sites")
	}
	if SameSite("https://example.com", "https://example.org") {
		t.Error("different registrable domains reported as same site")
	}
}
