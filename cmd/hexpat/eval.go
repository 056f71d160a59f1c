package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hexpat-lang/hexpat/runtime/language"
)

func newEvalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <snippet>",
		Short: "Evaluate a function-mode snippet against a data file",
		Long: `Evaluate wraps the snippet in fn main() { ... } and executes it.
Example: hexpat eval 'return std::mem::read_unsigned(0, 4);' --data file.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := loadProvider()
			if err != nil {
				return err
			}

			lang := language.New()
			lang.AllowDangerousFunctions(allowDangerous)

			ok, result := lang.ExecuteFunction(prov, args[0])
			printConsole(lang.ConsoleLog())

			if !ok {
				return fmt.Errorf("%v", lang.Error())
			}
			if result != nil {
				fmt.Println(result)
			}
			return nil
		},
	}
}
