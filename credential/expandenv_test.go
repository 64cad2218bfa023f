package credential

import (
	"strings"
	"testing"
)

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("QC_HOME", "/home/a")
	t.Setenv("QC_NAME", "creds")

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr string
	}{
		{"braced", "${QC_HOME}/.querycache", "/home/a/.querycache", ""},
		{"bare", "$QC_HOME/$QC_NAME.db", "/home/a/creds.db", ""},
		{"escaped dollar", "$$QC_HOME", "$QC_HOME", ""},
		{"no vars", "plain.db", "plain.db", ""},
		{"missing", "${QC_MISSING_B}/${QC_MISSING_A}", "", "QC_MISSING_A, QC_MISSING_B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvStrict(tt.in)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ExpandEnvStrict() error = %v, want mention of %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExpandEnvStrict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandEnvStrict() = %q, want %q", got, tt.want)
			}
		})
	}
}
