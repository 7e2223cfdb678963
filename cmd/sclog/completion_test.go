package main

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestCompleteEventTypes(t *testing.T) {
	allTypes := []string{
		"actor_death",
		"door_state_changed",
		"jump_drive_state_changed",
		"quantum_travel_attempt",
		"unmatched",
		"vehicle_destroyed",
		"zone_alert",
	}

	tests := []struct {
		name       string
		toComplete string
		flagVals   []string
		want       []string
	}{
		{
			name:       "empty input returns all types",
			toComplete: "",
			want:       allTypes,
		},
		{
			name:       "prefix filters",
			toComplete: "a",
			want:       []string{"actor_death"},
		},
		{
			name:       "prefix matching several types",
			toComplete: "zone_",
			want:       []string{"zone_alert"},
		},
		{
			name:       "comma prefix preserves already typed values",
			toComplete: "actor_death,zo",
			want:       []string{"actor_death,zone_alert"},
		},
		{
			name:       "excludes already typed values",
			toComplete: "door_state_changed,d",
			want:       nil,
		},
		{
			name:       "excludes values from flag",
			toComplete: "",
			flagVals:   []string{"actor_death", "unmatched", "zone_alert"},
			want:       []string{"door_state_changed", "jump_drive_state_changed", "quantum_travel_attempt", "vehicle_destroyed"},
		},
		{
			name:       "case insensitive matching",
			toComplete: "QUANT",
			want:       []string{"quantum_travel_attempt"},
		},
		{
			name:       "trims whitespace",
			toComplete: "  veh  ",
			want:       []string{"vehicle_destroyed"},
		},
		{
			name:       "no match returns empty",
			toComplete: "xyz",
			want:       nil,
		},
		{
			name:       "all types used returns empty",
			toComplete: strings.Join(allTypes, ",") + ",",
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a fresh command with the flag for each test
			cmd := &cobra.Command{}
			cmd.Flags().StringSlice("include-types", nil, "")

			if tt.flagVals != nil {
				if err := cmd.Flags().Set("include-types", strings.Join(tt.flagVals, ",")); err != nil {
					t.Fatalf("failed to set flag: %v", err)
				}
			}

			complete := completeEventTypes("include-types")
			got, dir := complete(cmd, nil, tt.toComplete)

			expectedDir := cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
			if dir != expectedDir {
				t.Errorf("directive = %v, want %v", dir, expectedDir)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("candidates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlagValueCompletion(t *testing.T) {
	tests := []struct {
		name string
		cmd  *cobra.Command
		flag string
		want []string
	}{
		{"tail format", tailCmd, "format", []string{"jsonl", "pretty"}},
		{"parse format", parseCmd, "format", []string{"jsonl", "pretty"}},
		{"log level", rootCmd, "log-level", []string{"debug", "info", "warn", "error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			complete, ok := tt.cmd.GetFlagCompletionFunc(tt.flag)
			if !ok {
				t.Fatalf("no completion registered for --%s", tt.flag)
			}
			got, dir := complete(tt.cmd, nil, "")
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("candidates = %v, want %v", got, tt.want)
			}
			if dir != cobra.ShellCompDirectiveNoFileComp {
				t.Errorf("directive = %v, want NoFileComp", dir)
			}
		})
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			completionCmd.SetOut(&buf)
			defer completionCmd.SetOut(nil)

			if err := completionCmd.RunE(completionCmd, []string{shell}); err != nil {
				t.Fatalf("completion %s error = %v", shell, err)
			}
			if !strings.Contains(buf.String(), "sclog") {
				t.Errorf("completion %s output does not mention sclog", shell)
			}
		})
	}
}
