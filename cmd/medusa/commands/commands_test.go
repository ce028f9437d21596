package commands

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitNames(t *testing.T) {
	got := splitNames("room1, room2,,kitchen ")
	want := []string{"room1", "room2", "kitchen"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("found %v, wanted %v", got, want)
	}
}

func TestParseArgs(t *testing.T) {
	defer func() { jsonArgs = false }()

	args, err := parseArgs([]string{"42", "true"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(args, []interface{}{"42", "true"}) {
		t.Fatalf("unexpected args: %v", args)
	}

	jsonArgs = true
	args, err = parseArgs([]string{"120", `["42"]`, `"x"`})
	if err != nil {
		t.Fatal(err)
	}
	want := []interface{}{float64(120), []interface{}{"42"}, "x"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("found %v, wanted %v", args, want)
	}

	if _, err := parseArgs([]string{"{"}); err == nil {
		t.Fatal("expected error on invalid JSON")
	}
}

func freePort(t *testing.T) int {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestHead_apiBindError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	trPort := freePort(t)
	path := filepath.Join(t.TempDir(), "medusa.properties")
	props := fmt.Sprintf("transport.host = 127.0.0.1\ntransport.port = %d\napi.host = 127.0.0.1\napi.port = %d\n",
		trPort, busy.Addr().(*net.TCPAddr).Port)
	if err := os.WriteFile(path, []byte(props), 0o644); err != nil {
		t.Fatal(err)
	}

	defer func(old string) { configPath = old }(configPath)
	configPath = path

	if err := headCmd.RunE(headCmd, nil); err == nil {
		t.Fatal("expected error on busy api port")
	}

	// the transport has been closed on the way out
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", trPort))
	if err != nil {
		t.Fatalf("transport port still bound: %v", err)
	}
	l.Close()
}
