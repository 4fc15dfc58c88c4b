package main

import "testing"

func TestConfigFromArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
		ok   bool
	}{
		{nil, "", false},
		{[]string{"--port", "80"}, "", false},
		{[]string{"--config", "/etc/a.yaml"}, "/etc/a.yaml", true},
		{[]string{"-config=/tmp/b.yaml"}, "/tmp/b.yaml", true},
		{[]string{"--voice", "echo", "--config=c.yaml"}, "c.yaml", true},
		{[]string{"--config"}, "", false},
	}
	for _, tt := range tests {
		got, ok := configFromArgs(tt.args)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("configFromArgs(%v) = %q, %v; want %q, %v", tt.args, got, ok, tt.want, tt.ok)
		}
	}
}
