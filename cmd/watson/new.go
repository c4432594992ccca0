package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const scaffoldMain = `syntax_category sentence
syntax truth sentence ::= "T" end

axiom trivial :
    |- T
end

theorem trivial_again :
    |- T
proof by trivial qed
`

func newNewCmd() *cobra.Command {
	var ext string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Scaffold a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(args[0], ext)
		},
	}
	cmd.Flags().StringVar(&ext, "ext", "watson", "source file extension for the scaffolded project")
	return cmd
}

func runNew(name, ext string) error {
	if _, err := os.Stat(name); err == nil {
		return &CLIError{
			Type:    "io",
			Message: fmt.Sprintf("directory %q already exists", name),
			Hint:    "choose a different project name, or remove the existing directory",
		}
	}

	srcDir := filepath.Join(name, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return &CLIError{Type: "io", Message: fmt.Sprintf("creating project directory: %s", err)}
	}

	manifest := fmt.Sprintf("root = \"src\"\next = %q\nentry = \"main\"\n", ext)
	if err := os.WriteFile(filepath.Join(name, "watson.toml"), []byte(manifest), 0o644); err != nil {
		return &CLIError{Type: "io", Message: fmt.Sprintf("writing watson.toml: %s", err)}
	}

	mainPath := filepath.Join(srcDir, "main."+ext)
	if err := os.WriteFile(mainPath, []byte(scaffoldMain), 0o644); err != nil {
		return &CLIError{Type: "io", Message: fmt.Sprintf("writing %s: %s", mainPath, err)}
	}

	fmt.Printf("created %s\n", name)
	return nil
}
