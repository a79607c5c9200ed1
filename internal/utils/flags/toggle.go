package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	toggleTrueValueConstant        = "true"
	toggleFalseValueConstant       = "false"
	toggleTypeNameConstant         = "bool"
	toggleParseErrorTemplate       = "invalid toggle value %q (expected yes or no)"
	toggleTruePlaceholderConstant  = "<YES|no>"
	toggleFalsePlaceholderConstant = "<yes|NO>"
	longFlagPrefixConstant         = "--"
	shortFlagPrefixConstant        = "-"
	flagValueSeparatorConstant     = "="
)

var toggleLiterals = map[string]bool{
	"true":  true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"1":     true,
	"false": false,
	"no":    false,
	"n":     false,
	"off":   false,
	"0":     false,
}

// AddToggleFlag registers a boolean flag that accepts yes/no style values. A bare flag means yes.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	value := &toggleValue{target: target}
	value.assign(defaultValue)
	flag := flagSet.VarPF(value, name, shorthand, formatToggleUsage(usage, defaultValue))
	flag.NoOptDefVal = toggleTrueValueConstant
}

// NormalizeToggleArguments joins "--flag value" into "--flag=value" for every toggle declared in the command
// tree, so that pflag does not treat the value as a positional argument.
func NormalizeToggleArguments(rootCommand *cobra.Command, arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	toggles := collectToggles(rootCommand)
	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == longFlagPrefixConstant {
			return append(normalized, arguments[index:]...)
		}

		if toggles.expectsValue(current) && index+1 < len(arguments) && isToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagValueSeparatorConstant+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

type toggleSet struct {
	names      map[string]struct{}
	shorthands map[string]struct{}
}

func collectToggles(rootCommand *cobra.Command) toggleSet {
	toggles := toggleSet{names: map[string]struct{}{}, shorthands: map[string]struct{}{}}
	if rootCommand == nil {
		return toggles
	}

	var visit func(command *cobra.Command)
	visit = func(command *cobra.Command) {
		for _, flagSet := range []*pflag.FlagSet{command.PersistentFlags(), command.Flags()} {
			flagSet.VisitAll(func(flag *pflag.Flag) {
				if _, isToggle := flag.Value.(*toggleValue); !isToggle {
					return
				}
				toggles.names[flag.Name] = struct{}{}
				if len(flag.Shorthand) > 0 {
					toggles.shorthands[flag.Shorthand] = struct{}{}
				}
			})
		}
		for _, child := range command.Commands() {
			visit(child)
		}
	}
	visit(rootCommand)
	return toggles
}

// expectsValue reports whether the argument is a toggle written without an inline value.
func (toggles toggleSet) expectsValue(argument string) bool {
	if strings.Contains(argument, flagValueSeparatorConstant) {
		return false
	}
	if strings.HasPrefix(argument, longFlagPrefixConstant) {
		_, exists := toggles.names[strings.TrimPrefix(argument, longFlagPrefixConstant)]
		return exists
	}
	if strings.HasPrefix(argument, shortFlagPrefixConstant) && len(argument) == 2 {
		_, exists := toggles.shorthands[strings.TrimPrefix(argument, shortFlagPrefixConstant)]
		return exists
	}
	return false
}

func isToggleLiteral(argument string) bool {
	_, known := toggleLiterals[strings.ToLower(strings.TrimSpace(argument))]
	return known
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleFalsePlaceholderConstant
	if defaultValue {
		placeholder = toggleTruePlaceholderConstant
	}
	trimmed := strings.TrimSpace(description)
	if len(trimmed) == 0 {
		return fmt.Sprintf("`%s`", placeholder)
	}
	return fmt.Sprintf("`%s` %s", placeholder, trimmed)
}

type toggleValue struct {
	current bool
	target  *bool
}

func (value *toggleValue) assign(parsed bool) {
	value.current = parsed
	if value.target != nil {
		*value.target = parsed
	}
}

func (value *toggleValue) Set(rawValue string) error {
	trimmed := strings.ToLower(strings.TrimSpace(rawValue))
	if len(trimmed) == 0 {
		trimmed = toggleTrueValueConstant
	}
	parsed, known := toggleLiterals[trimmed]
	if !known {
		return fmt.Errorf(toggleParseErrorTemplate, rawValue)
	}
	value.assign(parsed)
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueValueConstant
	}
	return toggleFalseValueConstant
}

func (value *toggleValue) Type() string {
	return toggleTypeNameConstant
}
