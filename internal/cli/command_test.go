package cli

import (
	"flag"
	"io"
	"strings"
	"testing"
)

func TestParseEnvVar(t *testing.T) {
	cases := []struct {
		raw     string
		want    EnvVar
		wantErr string
	}{
		{raw: "FOO=bar", want: EnvVar{Key: "FOO", Value: "bar"}},
		{raw: "EMPTY=", want: EnvVar{Key: "EMPTY", Value: ""}},
		{raw: "URL=a=b", want: EnvVar{Key: "URL", Value: "a=b"}},
		{raw: "=value", wantErr: "key cannot be empty"},
		{raw: "NOEQUALS", wantErr: "expected KEY=VALUE"},
		{raw: "BAD-KEY=1", wantErr: "invalid environment variable key"},
	}
	for _, tc := range cases {
		got, err := ParseEnvVar(tc.raw)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("ParseEnvVar(%q): expected error containing %q, got %v", tc.raw, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseEnvVar(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseEnvVar(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestCommandFlagsParseRepeatedEnv(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddCommandFlags(fs)

	if err := fs.Parse([]string{"--work-dir", "/src/app", "--env", "A=1", "--env", "B=two words", "make"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := "cd '/src/app' && export A='1' B='two words' && make test"
	if got := flags.Apply("make test"); got != want {
		t.Fatalf("Apply = %q, want %q", got, want)
	}
}

func TestCommandFlagsRejectInvalidEnv(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	AddCommandFlags(fs)

	if err := fs.Parse([]string{"--env", "=oops"}); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestCommandFlagsApply(t *testing.T) {
	cases := []struct {
		flags *CommandFlags
		want  string
	}{
		{flags: nil, want: "ls"},
		{flags: &CommandFlags{}, want: "ls"},
		{flags: &CommandFlags{WorkDir: "  "}, want: "ls"},
		{flags: &CommandFlags{WorkDir: "it's here"}, want: `cd 'it'"'"'s here' && ls`},
		{flags: &CommandFlags{Env: EnvVars{{Key: "Q", Value: "a'b"}}}, want: `export Q='a'"'"'b' && ls`},
	}
	for _, tc := range cases {
		if got := tc.flags.Apply("ls"); got != tc.want {
			t.Fatalf("Apply = %q, want %q", got, tc.want)
		}
	}
}
