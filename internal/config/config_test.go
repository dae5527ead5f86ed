package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bincrafters/envy/internal/config"
	"github.com/bincrafters/envy/pkg/envvar"
)

const sample = `
[env]
CONAN_LOGIN_USERNAME = bincrafters-user
CONAN_PASSWORD = hunter2
MixedCase = kept

[encrypted]
CONAN_PASSWORD

[account]
travis = acme
azure_project = conan
github = acme-gh

[endpoint]
circle = http://localhost:8080

[token]
azure = ${ENVY_TEST_AZURE_PAT}
`

func TestParse(t *testing.T) {
	root, err := config.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	expEnv := envvar.Set{
		"CONAN_LOGIN_USERNAME": "bincrafters-user",
		"CONAN_PASSWORD":       "hunter2",
		"MixedCase":            "kept",
	}
	if diff := cmp.Diff(expEnv, root.Env); diff != "" {
		t.Fatalf("env (-want,+got):\n%s", diff)
	}

	if diff := cmp.Diff(envvar.NewNames("CONAN_PASSWORD"), root.Encrypted); diff != "" {
		t.Fatalf("encrypted (-want,+got):\n%s", diff)
	}

	expAccounts := config.Accounts{Travis: "acme", AzureProject: "conan", GitHub: "acme-gh"}
	if diff := cmp.Diff(expAccounts, root.Accounts); diff != "" {
		t.Fatalf("accounts (-want,+got):\n%s", diff)
	}

	if got := root.Endpoints.Endpoint("circle"); got != "http://localhost:8080" {
		t.Fatalf("unexpected circle endpoint %q", got)
	}
	if got := root.Accounts.Account("appveyor"); got != "" {
		t.Fatalf("expected no appveyor account, got %q", got)
	}
}

func TestParseEmpty(t *testing.T) {
	root, err := config.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(root.Env) != 0 || len(root.Encrypted) != 0 || len(root.Tokens) != 0 {
		t.Fatalf("expected empty configuration, got %+v", root)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := config.Parse([]byte("[env\nA = 1")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocate(t *testing.T) {
	t.Run("working directory", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "custom.ini")
		writeFile(t, path, "[env]\n")

		got, err := config.Locate(path)
		if err != nil {
			t.Fatal(err)
		}
		if got != path {
			t.Fatalf("expected %v, got %v", path, got)
		}
	})

	t.Run("user config dir", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", xdg)
		t.Setenv("HOME", xdg)
		t.Chdir(t.TempDir())

		if dir, err := os.UserConfigDir(); err != nil || dir != xdg {
			t.Skip("user config dir not driven by XDG_CONFIG_HOME on this platform")
		}

		exp := filepath.Join(xdg, "envy", config.DefaultFilename)
		if err := os.MkdirAll(filepath.Dir(exp), 0o755); err != nil {
			t.Fatal(err)
		}
		writeFile(t, exp, sample)

		root, err := config.Load("")
		if err != nil {
			t.Fatal(err)
		}
		if root.Path != exp {
			t.Fatalf("expected %v, got %v", exp, root.Path)
		}
		if root.Env["CONAN_PASSWORD"] != "hunter2" {
			t.Fatalf("unexpected env %v", root.Env)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Chdir(t.TempDir())

		_, err := config.Load("nope.ini")
		if !errors.Is(err, config.ErrConfigMissing) {
			t.Fatalf("expected ErrConfigMissing, got %v", err)
		}
	})
}

func TestCredentials(t *testing.T) {
	root, err := config.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	creds := root.Credentials().WithDir(dir)

	t.Setenv("ENVY_TEST_AZURE_PAT", "from-config")
	t.Setenv("AZURE_TOKEN", "from-env")
	t.Setenv("TRAVIS_TOKEN", "from-env")
	t.Setenv("CIRCLE_TOKEN", "")
	t.Setenv("APPVEYOR_TOKEN", "")
	writeFile(t, filepath.Join(dir, "travis.token"), "from-file\n")
	writeFile(t, filepath.Join(dir, "circle.token"), "  from-file\n")

	cases := []struct {
		provider string
		exp      string
	}{
		{provider: "azure", exp: "from-config"},
		{provider: "travis", exp: "from-env"},
		{provider: "circle", exp: "from-file"},
	}

	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			got, err := creds.Token(t.Context(), tc.provider)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.exp {
				t.Fatalf("expected %q, got %q", tc.exp, got)
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := creds.Token(t.Context(), "appveyor")
		if !errors.Is(err, config.ErrCredentialMissing) {
			t.Fatalf("expected ErrCredentialMissing, got %v", err)
		}
		for _, option := range []string{"[token]", "APPVEYOR_TOKEN", "appveyor.token"} {
			if !strings.Contains(err.Error(), option) {
				t.Errorf("error %q does not mention %v", err, option)
			}
		}
	})

	t.Run("unset reference falls through", func(t *testing.T) {
		t.Setenv("ENVY_TEST_AZURE_PAT", "")
		got, err := creds.Token(t.Context(), "azure")
		if err != nil {
			t.Fatal(err)
		}
		if got != "from-env" {
			t.Fatalf("expected env token, got %q", got)
		}
	})
}

func TestMergeEnv(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	writeFile(t, first, "A=file1\nB=file1\n# comment\nQUOTED=\"with spaces\"\n")
	writeFile(t, second, "B=file2\nC=file2\n")

	base := envvar.Set{"A": "config", "D": "config"}

	got, err := config.MergeEnv(base, []string{first, second}, []string{"C=cli", "E=x=y", "EMPTY="})
	if err != nil {
		t.Fatal(err)
	}

	exp := envvar.Set{
		"A":      "file1",
		"B":      "file2",
		"C":      "cli",
		"D":      "config",
		"E":      "x=y",
		"EMPTY":  "",
		"QUOTED": "with spaces",
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}

	if base["A"] != "config" {
		t.Fatal("base set was modified")
	}
}

func TestMergeEnvErrors(t *testing.T) {
	if _, err := config.MergeEnv(nil, []string{filepath.Join(t.TempDir(), "missing.env")}, nil); err == nil {
		t.Fatal("expected error for missing env file")
	}

	for _, bad := range []string{"NOVALUE", "=value", " =value"} {
		if _, err := config.MergeEnv(nil, nil, []string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}
