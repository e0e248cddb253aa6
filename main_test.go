package main

import "testing"

func TestExtractConfigFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no flag", []string{"run"}, ""},
		{"separate value", []string{"run", "-config", "/etc/kicker.json"}, "/etc/kicker.json"},
		{"equals form", []string{"run", "-config=/etc/kicker.json"}, "/etc/kicker.json"},
		{"double dash", []string{"run", "--config", "/etc/kicker.json"}, "/etc/kicker.json"},
		{"flag without value", []string{"run", "-config"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractConfigFlag(tt.args); got != tt.want {
				t.Errorf("extractConfigFlag(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
