package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mabhi256/xmx/internal/demo"
)

// run executes the root command with a shell that skips completion setup.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SHELL", "/bin/sh")
	t.Setenv("HOME", t.TempDir())
	modifierFlag = ""
	inspectOpts = inspectOptions{steps: 200, seed: 1, keep: 16, auditLines: 5}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPatternName(t *testing.T) {
	out, err := run(t, "pattern", "name", "com.acme.*", "com.acme.shop.Cart", "org.other.Cart")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "✅ com.acme.shop.Cart") || !strings.Contains(out, "❌ org.other.Cart") {
		t.Errorf("output:\n%s", out)
	}
}

func TestPatternNameRejectsBadPattern(t *testing.T) {
	if _, err := run(t, "pattern", "name", "^(unclosed$", "x"); err == nil {
		t.Error("malformed regex must fail")
	}
}

func TestPatternMethod(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		matches int
		misses  int
	}{
		{
			name:    "visibility and parameters",
			args:    []string{"public int addItem(String, int)", "addItem(Ljava/lang/String;I)I", "addItem(I)I", "-m", "public"},
			matches: 1,
			misses:  1,
		},
		{
			name:    "visibility excludes private",
			args:    []string{"public * *(...)", "total()I", "-m", "private"},
			matches: 0,
			misses:  1,
		},
		{
			name:    "getter mask",
			args:    []string{"* get*()", "getTotal()I", "setTotal(I)V", "getItem(I)I"},
			matches: 1,
			misses:  2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"pattern", "method"}, tt.args...)...)
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.Count(out, "✅"); got != tt.matches {
				t.Errorf("matches: got %d, want %d\n%s", got, tt.matches, out)
			}
			if got := strings.Count(out, "❌"); got != tt.misses {
				t.Errorf("misses: got %d, want %d\n%s", got, tt.misses, out)
			}
		})
	}
}

func TestPatternMethodInputErrors(t *testing.T) {
	if _, err := run(t, "pattern", "method", "* *(...)", "total()I", "-m", "sealed"); err == nil {
		t.Error("unknown modifier must fail")
	}
	if _, err := run(t, "pattern", "method", "* *(...)", "total"); err == nil {
		t.Error("signature without descriptor must fail")
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(demo.DefaultConfig), 0644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.json")
	doc := `{"apps": [{"pattern": "shop", "classes": [
		{"pattern": "Cart", "methods": [{"pattern": "* ge%t()"}]},
		{"pattern": "foo bar"}
	]}]}`
	if err := os.WriteFile(bad, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "config", "validate", good, "-q")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if !strings.Contains(out, "is valid") {
		t.Errorf("output:\n%s", out)
	}

	out, err = run(t, "config", "validate", bad, "-q")
	if err == nil {
		t.Fatal("invalid patterns must fail validation")
	}
	if !strings.Contains(out, "2 sections disabled") {
		t.Errorf("output:\n%s", out)
	}
}

func TestInspect(t *testing.T) {
	out, err := run(t, "inspect", "--steps", "40", "--seed", "3", "--audit", "2", "-q")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Managed classes", demo.CartClass, "Tracked instances", "Timing advice", "addItem", "Recent audit"} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q", want)
		}
	}
}

func TestInspectClassFilter(t *testing.T) {
	out, err := run(t, "inspect", "--steps", "5", "--class", "*Proxy*", "-q")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, demo.ProxyClass) {
		t.Errorf("proxy class missing:\n%s", out)
	}
	if strings.Contains(out, "│ "+demo.CartClass+" ") {
		t.Errorf("filter must hide the cart class:\n%s", out)
	}
}

func TestNoteLogKeepsRecent(t *testing.T) {
	n := &noteLog{}
	for i := range maxNotes + 3 {
		n.add(strings.Repeat("x", i+1))
	}
	lines := n.lines()
	if len(lines) != maxNotes {
		t.Fatalf("got %d notes", len(lines))
	}
	if len(lines[0]) != 4 {
		t.Errorf("oldest kept note: %q", lines[0])
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "xmx version dev") {
		t.Errorf("output: %q", out)
	}
}

func TestInstallCompletions(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	shells := []struct {
		shell string
		path  string
	}{
		{"/bin/bash", ".local/share/bash-completion/completions/xmx"},
		{"/usr/bin/zsh", ".zsh/completions/_xmx"},
		{"/usr/bin/fish", ".config/fish/completions/xmx.fish"},
	}
	for _, tt := range shells {
		t.Run(filepath.Base(tt.shell), func(t *testing.T) {
			t.Setenv("SHELL", tt.shell)
			if completionsExist(rootCmd) {
				t.Fatal("fresh home must not have completions")
			}
			if err := installCompletions(rootCmd); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(filepath.Join(home, tt.path))
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(string(data), "xmx") {
				t.Error("completion script does not mention the command")
			}
			if !completionsExist(rootCmd) {
				t.Error("installed completions not detected")
			}
		})
	}

	t.Setenv("SHELL", "/bin/tcsh")
	if isShellSupported() {
		t.Error("tcsh is not supported")
	}
}
