package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type Limits struct {
	MaxString int // generic string max length (flag values, args)
	AllowNL   bool
	AllowTab  bool
}

func DefaultLimits() Limits {
	return Limits{
		MaxString: 4096,
		AllowNL:   false,
		AllowTab:  false,
	}
}

// ValidateString rejects invalid UTF-8, NUL bytes, control runes and
// oversized values. Empty strings are always valid.
func ValidateString(name, s string, lim Limits) error {
	if s == "" {
		return nil
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s: invalid UTF-8", name)
	}
	if strings.ContainsRune(s, '\x00') {
		return fmt.Errorf("%s: contains NUL byte", name)
	}
	if n := utf8.RuneCountInString(s); n > lim.MaxString {
		return fmt.Errorf("%s: too long (%d > %d)", name, n, lim.MaxString)
	}
	for _, r := range s {
		if (r == '\n' && lim.AllowNL) || (r == '\t' && lim.AllowTab) {
			continue
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%s: contains non-printable/control runes", name)
		}
	}
	return nil
}

// AttachRecursive installs argument and flag checks on root and every
// subcommand, chained in front of any existing PersistentPreRunE.
func AttachRecursive(root *cobra.Command, lim Limits) {
	attach(root, lim)
	for _, c := range root.Commands() {
		AttachRecursive(c, lim)
	}
}

func attach(cmd *cobra.Command, lim Limits) {
	prev := cmd.PersistentPreRunE
	cmd.PersistentPreRunE = func(c *cobra.Command, args []string) error {
		if err := validateFlagsAndArgs(c, args, lim); err != nil {
			return err
		}
		if prev != nil {
			return prev(c, args)
		}
		return nil
	}
}

func validateFlagsAndArgs(cmd *cobra.Command, args []string, lim Limits) error {
	for i, a := range args {
		if err := ValidateString(fmt.Sprintf("arg[%d]", i), a, lim); err != nil {
			return err
		}
	}

	var firstErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if firstErr != nil {
			return
		}
		name := "flag --" + f.Name

		var values []string
		switch f.Value.Type() {
		case "string":
			v, _ := cmd.Flags().GetString(f.Name)
			values = []string{v}
		case "stringSlice":
			values, _ = cmd.Flags().GetStringSlice(f.Name)
		case "stringArray":
			values, _ = cmd.Flags().GetStringArray(f.Name)
		default:
			return
		}

		for i, v := range values {
			label := name
			if len(values) > 1 {
				label = fmt.Sprintf("%s[%d]", name, i)
			}
			if err := ValidateString(label, v, lim); err != nil {
				firstErr = err
				return
			}
		}
	})
	return firstErr
}
