package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/hexpat-lang/hexpat/runtime/language"
)

func newReplCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactively evaluate snippets against a data file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := loadProvider()
			if err != nil {
				return err
			}

			rl, err := readline.New("hexpat> ")
			if err != nil {
				return err
			}
			defer rl.Close()

			lang := language.New()
			lang.AllowDangerousFunctions(allowDangerous)

			for {
				line, err := rl.Readline()
				if err == readline.ErrInterrupt {
					continue
				}
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return err
				}

				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}
				if line == ".quit" {
					return nil
				}

				ok, result := lang.ExecuteFunction(prov, line)
				printConsole(lang.ConsoleLog())
				if !ok {
					fmt.Printf("error: %v\n", lang.Error())
					continue
				}
				if result != nil {
					fmt.Println(result)
				}
			}
		},
	}
}
