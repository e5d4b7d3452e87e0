package main

import (
	"database/sql"
	"reflect"
	"testing"
)

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_run_usage(t *testing.T) {
	cli := &commandLine{}

	tests := []cliTest{
		{name: "no args", wantErr: errHelp},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: errHelp},
		{name: "migrate without goose command", args: []string{"migrate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"admin"}, tt.args...)
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := &commandLine{}

	var gotCommand, gotDir string
	var gotArgs []string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	}

	tests := []struct {
		name     string
		args     []string
		wantCmd  string
		wantArgs []string
	}{
		{name: "up", args: []string{"admin", "migrate", "up"}, wantCmd: "up", wantArgs: []string{}},
		{name: "status", args: []string{"admin", "migrate", "status"}, wantCmd: "status", wantArgs: []string{}},
		{name: "up-to forwards extra args", args: []string{"admin", "migrate", "up-to", "2"}, wantCmd: "up-to", wantArgs: []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(tt.args); err != nil {
				t.Fatalf("run() error = %v", err)
			}
			if gotCommand != tt.wantCmd {
				t.Errorf("command = %v, want %v", gotCommand, tt.wantCmd)
			}
			if gotDir != "migrations" {
				t.Errorf("dir = %v, want migrations", gotDir)
			}
			if !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Errorf("args = %v, want %v", gotArgs, tt.wantArgs)
			}
		})
	}
}
