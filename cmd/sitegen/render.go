package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/sitegen/renderer"
)

var renderFlags struct {
	out    string
	strict bool
}

var renderCmd = &cobra.Command{
	Use:   "render <template.html> [name=value...]",
	Short: "Substitute fields into a template and print the result",
	Long: `Render replaces every {{name}} in the template with its value.

Fields are applied in argument order; when a name is given twice the first
value wins. Placeholders without a field are left as they are and reported
on stderr.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderFlags.out, "output", "o", "", "Write the document to this file instead of stdout")
	renderCmd.Flags().BoolVar(&renderFlags.strict, "strict", false, "Fail when placeholders remain unresolved")
}

func runRender(cmd *cobra.Command, args []string) error {
	body, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	if missing := renderer.Unresolved(string(body), fields); len(missing) > 0 {
		if renderFlags.strict {
			return fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: unresolved placeholders: %s\n", strings.Join(missing, ", "))
	}

	doc := renderer.Render(string(body), fields)
	if renderFlags.out != "" {
		return os.WriteFile(renderFlags.out, []byte(doc), 0o644)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
	return err
}

// parseFields turns name=value arguments into fields, keeping their order.
func parseFields(args []string) (renderer.Fields, error) {
	fields := make(renderer.Fields, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field %q: want name=value", arg)
		}
		fields = append(fields, renderer.Field{Name: name, Value: value})
	}
	return fields, nil
}
