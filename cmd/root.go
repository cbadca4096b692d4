package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "xmx",
	Short: "Managed-object registry and advice weaving agent",
	Long: `xmx weaves configured advice into application methods and keeps a registry of
managed instances that can be browsed live or inspected from the command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "install" || cmd.Name() == "version" || cmd.Name() == "help" {
			return
		}

		if !isShellSupported() {
			return // Skip auto-setup for unsupported shells
		}

		if !completionsExist(cmd.Root()) {
			fmt.Println("🔧 First run detected, setting up xmx...")
			if installCompletions(cmd.Root()) == nil {
				fmt.Println("✅ Shell completions installed")
				fmt.Println("💡 Restart your shell to enable tab completion")
			} else {
				fmt.Println("⚠️  Auto-setup failed. Run 'xmx install' to try again.")
			}
		}
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install shell completions",
	Run: func(cmd *cobra.Command, args []string) {
		if !isInPath() {
			printPathInstructions()
			return
		}

		if !isShellSupported() {
			fmt.Printf("❌ Shell completion not supported for: %s\n", detectShell())
			fmt.Printf("Supported shells: %s\n", strings.Join(supportedShells, ", "))
			return
		}

		if completionsExist(cmd.Root()) {
			fmt.Println("✅ Already configured!")
			return
		}

		fmt.Println("📦 Installing completions...")
		if err := installCompletions(cmd.Root()); err != nil {
			fmt.Printf("❌ Failed: %v\n", err)
		} else {
			fmt.Println("✅ Done! Restart your shell to enable tab completion.")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func completionsExist(root *cobra.Command) bool {
	target, ok := completionTargets(root)[detectShell()]
	if !ok {
		return false
	}
	_, err := os.Stat(target.path())
	return err == nil
}

var supportedShells = []string{"bash", "zsh", "fish", "powershell"}

func isShellSupported() bool {
	return slices.Contains(supportedShells, detectShell())
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	if shell == "" || shell == "." {
		return "bash"
	}
	return shell
}

// completionTarget is where one shell expects the completion script.
type completionTarget struct {
	dir      string
	file     string
	generate func(io.Writer) error
	activate string
}

func (t completionTarget) path() string {
	return filepath.Join(t.dir, t.file)
}

func completionTargets(root *cobra.Command) map[string]completionTarget {
	home, _ := os.UserHomeDir()
	bashDir := filepath.Join(home, ".local/share/bash-completion/completions")
	zshDir := filepath.Join(home, ".zsh/completions")

	return map[string]completionTarget{
		"bash": {
			dir:      bashDir,
			file:     "xmx",
			generate: root.GenBashCompletion,
			activate: "source " + filepath.Join(bashDir, "xmx"),
		},
		"zsh": {
			dir:      zshDir,
			file:     "_xmx",
			generate: root.GenZshCompletion,
			activate: fmt.Sprintf("fpath=(%s $fpath) && autoload -U compinit && compinit", zshDir),
		},
		"fish": {
			dir:      filepath.Join(home, ".config/fish/completions"),
			file:     "xmx.fish",
			generate: func(w io.Writer) error { return root.GenFishCompletion(w, true) },
			activate: "complete --do-complete=xmx",
		},
		"powershell": {
			dir:      home,
			file:     "xmx_completion.ps1",
			generate: root.GenPowerShellCompletionWithDesc,
			activate: ". " + filepath.Join(home, "xmx_completion.ps1"),
		},
	}
}

func installCompletions(root *cobra.Command) error {
	shell := detectShell()
	target, ok := completionTargets(root)[shell]
	if !ok {
		return fmt.Errorf("unsupported shell: %s", shell)
	}

	if err := os.MkdirAll(target.dir, 0755); err != nil {
		return err
	}
	file, err := os.Create(target.path())
	if err != nil {
		return err
	}
	defer file.Close()

	if err := target.generate(file); err != nil {
		return err
	}

	fmt.Printf("🔄 Run this command to enable completions in the current shell:\n")
	fmt.Printf("   %s\n", target.activate)
	return nil
}

func isInPath() bool {
	execPath, err := os.Executable()
	if err != nil {
		return false
	}

	pathEnv := os.Getenv("PATH")
	paths := strings.Split(pathEnv, string(os.PathListSeparator))
	execDir := filepath.Dir(execPath)

	return slices.Contains(paths, execDir)
}

func printPathInstructions() {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	fmt.Printf("❌ xmx not in PATH. Binary location: %s\n\n", execPath)

	if runtime.GOOS == "windows" {
		fmt.Printf("Add to PATH: %s\n", execDir)
	} else {
		fmt.Printf("Add to shell profile: export PATH=\"%s:$PATH\"\n", execDir)
		fmt.Printf("Or copy to: /usr/local/bin\n")
	}
}

func init() {
	rootCmd.AddCommand(installCmd)

	rootCmd.PersistentFlags().BoolVarP(&debugLog, "debug", "d", false, "Write a JSON debug log next to the console output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only log warnings and errors")
}
