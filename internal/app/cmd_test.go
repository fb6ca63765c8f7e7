package app

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
	}{
		{name: "引数なしはserve", args: []string{}, want: CommandServe},
		{name: "nilはserve", args: nil, want: CommandServe},
		{name: "serve", args: []string{"serve"}, want: CommandServe},
		{name: "migrate", args: []string{"migrate"}, want: CommandMigrate},
		{name: "healthcheck", args: []string{"healthcheck"}, want: CommandHealthcheck},
		{name: "余分な引数は無視", args: []string{"migrate", "--flag", "value"}, want: CommandMigrate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if err != nil {
				t.Fatalf("ParseCommand(%v) error = %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseCommand_Unknown_ReturnsUsage(t *testing.T) {
	_, err := ParseCommand([]string{"worker"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), `"worker"`) || !strings.Contains(err.Error(), Usage) {
		t.Errorf("error = %v, want command name and usage", err)
	}
}

func TestRun_UnknownCommand_ReturnsError(t *testing.T) {
	if err := Run(&strings.Builder{}, []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
