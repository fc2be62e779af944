package util

import "testing"

func TestParseMemory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{name: "empty", input: "", want: 0},
		{name: "gigabytes", input: "4G", want: 4096},
		{name: "gibibytes lowercase", input: "2gib", want: 2048},
		{name: "megabytes", input: "512M", want: 512},
		{name: "fractional", input: "1.5G", want: 1536},
		{name: "kilobytes", input: "2048K", want: 2},
		{name: "bare bytes", input: "1048576", want: 1},
		{name: "spaces", input: " 8 GB ", want: 8192},
		{name: "unknown unit", input: "4X", wantErr: true},
		{name: "no number", input: "G", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMemory(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMemory(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMemory(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMemory(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestDockerMemory(t *testing.T) {
	got, err := DockerMemory("4G")
	if err != nil {
		t.Fatalf("DockerMemory failed: %v", err)
	}
	if got != "4096m" {
		t.Errorf("expected 4096m, got %s", got)
	}

	got, err = DockerMemory("")
	if err != nil {
		t.Fatalf("DockerMemory failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty limit, got %s", got)
	}
}
