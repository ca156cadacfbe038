package main

import (
	"reflect"
	"testing"
)

func TestParseManual(t *testing.T) {
	got, err := parseManual("1:2, 3:0")
	if err != nil {
		t.Fatalf("parseManual: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"1": 2, "3": 0}) {
		t.Errorf("unexpected counts %v", got)
	}
	for _, bad := range []string{"1", "1:x", "1:-2"} {
		if _, err := parseManual(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	cmd := newMonitorCmd()
	want := map[string]bool{"status": false, "extend": false, "delete": false, "check": false}
	for _, sub := range cmd.Commands() {
		want[sub.Name()] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("monitor %s is not registered", name)
		}
	}
	if newPayCmd().Flags().Lookup("start") == nil {
		t.Error("pay needs a --start flag")
	}
}
