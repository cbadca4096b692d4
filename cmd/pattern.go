package cmd

import (
	"fmt"
	"strings"

	"github.com/mabhi256/xmx/internal/model"
	"github.com/mabhi256/xmx/internal/pattern"
	"github.com/spf13/cobra"
)

var modifierFlag string

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Test name and method patterns",
}

var patternNameCmd = &cobra.Command{
	Use:   "name PATTERN NAME...",
	Short: "Match class, application or field names against a pattern",
	Long: `Patterns are masks with * wildcards, anchored ^regular expressions$ or "quoted" literals.
Unqualified patterns are matched against the simple name of a qualified class name.

Examples:
  xmx pattern name 'com.acme.*' com.acme.shop.Cart
  xmx pattern name Cart com.acme.shop.Cart
  xmx pattern name '^.*\$\$Proxy$' 'com.acme.shop.Cart$$Proxy'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pattern.CompileName(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pattern %s (%s)\n", p, p.Kind())
		for _, name := range args[1:] {
			printMatch(cmd, name, p.MatchTypeName(name))
		}
		return nil
	},
}

var patternMethodCmd = &cobra.Command{
	Use:   "method PATTERN SIGNATURE...",
	Short: "Match method signatures against a method pattern",
	Long: `Signatures are a method name followed by its JVM descriptor. Modifiers are
given with --modifiers and apply to every signature.

Examples:
  xmx pattern method 'public int addItem(String, int)' 'addItem(Ljava/lang/String;I)I' -m public
  xmx pattern method '* get*()' 'getTotal()I' 'setTotal(I)V'
  xmx pattern method 'static * *(...)|* <init>(...)' 'reserve(Ljava/lang/String;I)Z' -m public,static`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		matcher, err := pattern.CompileMethod(args[0])
		if err != nil {
			return err
		}
		mods, err := parseModifiers(modifierFlag)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Pattern %s\n", matcher)
		for _, sig := range args[1:] {
			spec, err := parseSignature(sig, mods)
			if err != nil {
				return err
			}
			printMatch(cmd, spec.String(), matcher.Matches(spec))
		}
		return nil
	},
}

func printMatch(cmd *cobra.Command, input string, ok bool) {
	if ok {
		fmt.Fprintf(cmd.OutOrStdout(), "  ✅ %s\n", input)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "  ❌ %s\n", input)
	}
}

var modifierNames = map[string]model.Modifiers{
	"public":       model.AccPublic,
	"private":      model.AccPrivate,
	"protected":    model.AccProtected,
	"static":       model.AccStatic,
	"final":        model.AccFinal,
	"synchronized": model.AccSynchronized,
	"native":       model.AccNative,
	"abstract":     model.AccAbstract,
	"strictfp":     model.AccStrict,
}

func parseModifiers(s string) (model.Modifiers, error) {
	var mods model.Modifiers
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		flag, ok := modifierNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
		mods |= flag
	}
	return mods, nil
}

// parseSignature splits "name(desc)ret" into a method spec.
func parseSignature(sig string, mods model.Modifiers) (model.MethodSpec, error) {
	i := strings.IndexByte(sig, '(')
	if i <= 0 {
		return model.MethodSpec{}, fmt.Errorf("signature %q: want name(descriptor)return", sig)
	}
	spec, err := model.MethodSpecFromDescriptor(sig[:i], uint16(mods), sig[i:])
	if err != nil {
		return model.MethodSpec{}, fmt.Errorf("signature %q: %w", sig, err)
	}
	return spec, nil
}

func init() {
	rootCmd.AddCommand(patternCmd)
	patternCmd.AddCommand(patternNameCmd)
	patternCmd.AddCommand(patternMethodCmd)

	patternMethodCmd.Flags().StringVarP(&modifierFlag, "modifiers", "m", "", "Comma-separated modifiers, e.g. public,static")
	patternMethodCmd.RegisterFlagCompletionFunc("modifiers", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"public", "protected", "private", "static", "final", "synchronized"}, cobra.ShellCompDirectiveNoFileComp
	})
}
