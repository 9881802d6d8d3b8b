package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/oakmontlabs/stereobench/api"
	"github.com/oakmontlabs/stereobench/internal/config"
	"github.com/oakmontlabs/stereobench/internal/store"
)

func saveServerGlobals(t *testing.T) func() {
	t.Helper()

	oldOsExit := osExit
	oldStderrWriter := stderrWriter
	oldLoadConfig := loadConfig
	oldOpenStore := openStore
	oldNewServer := newServer
	oldRunServer := runServer

	return func() {
		osExit = oldOsExit
		stderrWriter = oldStderrWriter
		loadConfig = oldLoadConfig
		openStore = oldOpenStore
		newServer = oldNewServer
		runServer = oldRunServer
	}
}

func memConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Type: "memory"},
		Server:  config.ServerConfig{Addr: ":8080"},
	}
}

func TestRunMain_Success(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	cfg := memConfig()
	var gotConfigPath string
	loadConfig = func(path string) (*config.Config, error) {
		gotConfigPath = path
		return cfg, nil
	}

	var st *store.Store
	openStore = func(c *config.Config) (*store.Store, error) {
		if c != cfg {
			t.Fatalf("openStore: cfg mismatch")
		}
		var err error
		st, err = store.NewStore(":memory:")
		return st, err
	}

	newServer = func(c *config.Config, gotStore *store.Store) (*api.Server, error) {
		if c != cfg {
			t.Fatalf("newServer: cfg mismatch")
		}
		if gotStore != st {
			t.Fatalf("newServer: store mismatch")
		}
		return &api.Server{}, nil
	}

	var gotAddr string
	runCalled := 0
	runServer = func(srv *api.Server, addr string) error {
		if srv == nil {
			t.Fatalf("runServer: nil server")
		}
		runCalled++
		gotAddr = addr
		return nil
	}

	code := runMain([]string{"-addr", "127.0.0.1:9999", "-config", "cfg.yaml"})
	if code != 0 {
		t.Fatalf("exit: got %d want %d; stderr=%q", code, 0, stderrBuf.String())
	}
	if gotConfigPath != "cfg.yaml" {
		t.Fatalf("configPath: got %q want %q", gotConfigPath, "cfg.yaml")
	}
	if runCalled != 1 || gotAddr != "127.0.0.1:9999" {
		t.Fatalf("Run: called=%d addr=%q", runCalled, gotAddr)
	}
}

func TestRunMain_AddrFromConfig(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	cfg := memConfig()
	cfg.Server.Addr = ":9090"
	loadConfig = func(string) (*config.Config, error) { return cfg, nil }
	openStore = func(*config.Config) (*store.Store, error) { return store.NewStore(":memory:") }
	newServer = func(*config.Config, *store.Store) (*api.Server, error) { return &api.Server{}, nil }

	var gotAddr string
	runServer = func(_ *api.Server, addr string) error {
		gotAddr = addr
		return nil
	}

	if code := runMain(nil); code != 0 {
		t.Fatalf("exit: got %d want %d", code, 0)
	}
	if gotAddr != ":9090" {
		t.Fatalf("addr: got %q want %q", gotAddr, ":9090")
	}
}

func TestRunMain_FlagParseError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadCalled := 0
	loadConfig = func(string) (*config.Config, error) {
		loadCalled++
		return &config.Config{}, nil
	}

	if code := runMain([]string{"-nope"}); code != 2 {
		t.Fatalf("exit: got %d want %d", code, 2)
	}
	if loadCalled != 0 {
		t.Fatalf("Load: called=%d want %d", loadCalled, 0)
	}
	if stderrBuf.Len() == 0 {
		t.Fatalf("expected parse error output")
	}
}

func TestRunMain_HelpFlag(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrWriter = &bytes.Buffer{}

	loadCalled := 0
	loadConfig = func(string) (*config.Config, error) {
		loadCalled++
		return &config.Config{}, nil
	}

	if code := runMain([]string{"-h"}); code != 0 {
		t.Fatalf("exit: got %d want %d", code, 0)
	}
	if loadCalled != 0 {
		t.Fatalf("Load: called=%d want %d", loadCalled, 0)
	}
}

func TestRunMain_ConfigLoadError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) {
		return nil, errors.New("boom")
	}
	openStore = func(*config.Config) (*store.Store, error) {
		t.Fatalf("Open called unexpectedly")
		return nil, nil
	}

	if code := runMain([]string{"-config", "x.yaml"}); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "boom") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_StoreOpenError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return memConfig(), nil }
	openStore = func(*config.Config) (*store.Store, error) {
		return nil, errors.New("storefail")
	}

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "storefail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_NewServerError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return memConfig(), nil }
	openStore = func(*config.Config) (*store.Store, error) { return store.NewStore(":memory:") }
	newServer = func(*config.Config, *store.Store) (*api.Server, error) {
		return nil, errors.New("srvfail")
	}

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "srvfail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestRunMain_RunError(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrBuf := &bytes.Buffer{}
	stderrWriter = stderrBuf

	loadConfig = func(string) (*config.Config, error) { return memConfig(), nil }
	openStore = func(*config.Config) (*store.Store, error) { return store.NewStore(":memory:") }
	newServer = func(*config.Config, *store.Store) (*api.Server, error) { return &api.Server{}, nil }
	runServer = func(*api.Server, string) error { return errors.New("runfail") }

	if code := runMain(nil); code != 1 {
		t.Fatalf("exit: got %d want %d", code, 1)
	}
	if !strings.Contains(stderrBuf.String(), "runfail") {
		t.Fatalf("stderr: got %q", stderrBuf.String())
	}
}

func TestMain_ExitCodePropagates(t *testing.T) {
	restore := saveServerGlobals(t)
	t.Cleanup(restore)

	stderrWriter = &bytes.Buffer{}

	loadConfig = func(string) (*config.Config, error) { return memConfig(), nil }
	openStore = func(*config.Config) (*store.Store, error) { return store.NewStore(":memory:") }
	newServer = func(*config.Config, *store.Store) (*api.Server, error) { return &api.Server{}, nil }
	runServer = func(*api.Server, string) error { return nil }

	oldArgs := append([]string(nil), os.Args...)
	t.Cleanup(func() { os.Args = oldArgs })
	os.Args = []string{"server", "-addr", "127.0.0.1:9999"}

	exitCode := -1
	osExit = func(code int) { exitCode = code }

	main()

	if exitCode != 0 {
		t.Fatalf("exit: got %d want %d", exitCode, 0)
	}
}
