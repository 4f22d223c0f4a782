package config

import "testing"

func TestSplitCSV(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"*", []string{"*"}},
		{"https://a.com,https://b.com", []string{"https://a.com", "https://b.com"}},
		{"https://a.com, https://b.com ", []string{"https://a.com", "https://b.com"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := splitCSV(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitCSV(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestValidateRejectsMissingDSN(t *testing.T) {
	cfg := Config{WorkerIDLeaseTTL: 60, WorkerIDRenewInterval: 30, MaxWorkerID: 1023}
	if err := cfg.validate(); err == nil {
		t.Error("validate() expected error for missing PostgresDSN, got nil")
	}
}

func TestValidateRejectsRenewalNotLessThanLease(t *testing.T) {
	cfg := Config{PostgresDSN: "postgres://x", WorkerIDLeaseTTL: 30, WorkerIDRenewInterval: 30, MaxWorkerID: 1023}
	if err := cfg.validate(); err == nil {
		t.Error("validate() expected error when renewal interval >= lease ttl, got nil")
	}
}
