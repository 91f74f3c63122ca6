package validation

import "testing"

func TestIsValidWalletNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{name: "valid 11 digits", number: "03001234567", want: true},
		{name: "ten digits", number: "0300123456", want: false},
		{name: "twelve digits", number: "030012345678", want: false},
		{name: "wrong prefix", number: "04001234567", want: false},
		{name: "letters", number: "03abc234567", want: false},
		{name: "empty", number: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidWalletNumber(tt.number); got != tt.want {
				t.Fatalf("IsValidWalletNumber(%q) = %v, want %v", tt.number, got, tt.want)
			}
		})
	}
}

func TestNormalizeOrderNumber(t *testing.T) {
	if got := NormalizeOrderNumber("  mms-00007 "); got != "MMS-00007" {
		t.Fatalf("NormalizeOrderNumber = %q, want MMS-00007", got)
	}
}

func TestIsValidOrderNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"MMS-00001", true},
		{"MMS-123456", true},
		{"MMS-001", false},
		{"XYZ-00001", false},
		{"mms-00001", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidOrderNumber(tt.number); got != tt.want {
			t.Fatalf("IsValidOrderNumber(%q) = %v, want %v", tt.number, got, tt.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" A@X.COM "); got != "a@x.com" {
		t.Fatalf("NormalizeEmail = %q, want a@x.com", got)
	}
}
