package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	toggleFlagTypeName       = "toggle"
	toggleAcceptedLiterals   = "true, false, yes, no, on, off, 1, 0"
	errorInvalidToggleFormat = "invalid value %q for --%s; accepted values: %s"
)

var toggleLiterals = map[string]bool{
	"":      true,
	"true":  true,
	"t":     true,
	"1":     true,
	"yes":   true,
	"y":     true,
	"on":    true,
	"false": false,
	"f":     false,
	"0":     false,
	"no":    false,
	"n":     false,
	"off":   false,
}

func parseToggleLiteral(input string) (bool, bool) {
	value, known := toggleLiterals[strings.ToLower(strings.TrimSpace(input))]
	return value, known
}

// toggleValue is a boolean flag that also accepts yes/no style literals,
// either attached with "=" or as the following argument.
type toggleValue struct {
	target *bool
	name   string
}

func (value *toggleValue) Set(input string) error {
	parsed, known := parseToggleLiteral(input)
	if !known {
		return fmt.Errorf(errorInvalidToggleFormat, input, value.name, toggleAcceptedLiterals)
	}
	*value.target = parsed
	return nil
}

func (value *toggleValue) String() string {
	if value.target == nil {
		return strconv.FormatBool(false)
	}
	return strconv.FormatBool(*value.target)
}

func (value *toggleValue) Type() string {
	return toggleFlagTypeName
}

func registerToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, defaultValue bool, usage string) {
	*target = defaultValue
	flagSet.Var(&toggleValue{target: target, name: name}, name, usage)
	registered := flagSet.Lookup(name)
	registered.DefValue = strconv.FormatBool(defaultValue)
	registered.NoOptDefVal = strconv.FormatBool(true)
}

// attachToggleValues rewrites "--name literal" into "--name=literal" for toggle
// flags so a trailing literal is not mistaken for the root argument.
func attachToggleValues(command *cobra.Command, arguments []string) []string {
	toggleNames := map[string]struct{}{}
	collectToggleNames(command, toggleNames)
	if len(toggleNames) == 0 {
		return arguments
	}

	rewritten := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			rewritten = append(rewritten, arguments[index:]...)
			break
		}
		flagName, isLongFlag := strings.CutPrefix(argument, "--")
		if isLongFlag && !strings.Contains(flagName, "=") && index+1 < len(arguments) {
			if _, isToggle := toggleNames[flagName]; isToggle {
				nextArgument := arguments[index+1]
				if _, known := parseToggleLiteral(nextArgument); known && nextArgument != "" {
					rewritten = append(rewritten, argument+"="+nextArgument)
					index++
					continue
				}
			}
		}
		rewritten = append(rewritten, argument)
	}
	return rewritten
}

func collectToggleNames(command *cobra.Command, target map[string]struct{}) {
	command.Flags().VisitAll(func(flag *pflag.Flag) {
		if flag.Value.Type() == toggleFlagTypeName {
			target[flag.Name] = struct{}{}
		}
	})
	for _, child := range command.Commands() {
		collectToggleNames(child, target)
	}
}
