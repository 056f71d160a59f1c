package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hexpat-lang/hexpat/core/pattern"
	"github.com/hexpat-lang/hexpat/runtime/language"
	"github.com/hexpat-lang/hexpat/runtime/provider"
)

func newRunCommand() *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "run <pattern-file>",
		Short: "Execute a pattern file against a data file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prov, err := loadProvider()
			if err != nil {
				return err
			}

			lang := language.New()
			for _, dir := range includeDirs {
				lang.AddIncludePath(dir)
			}
			lang.AllowDangerousFunctions(allowDangerous)

			ok := lang.ExecuteFile(prov, args[0], nil, nil)
			printConsole(lang.ConsoleLog())

			if !ok {
				return fmt.Errorf("%v", lang.Error())
			}

			for _, p := range lang.Patterns() {
				printPattern(p, 0)
			}
			for name, v := range lang.OutVariables() {
				fmt.Printf("out %s = %s\n", name, v)
			}

			if exportPath != "" {
				if err := exportCBOR(lang.Patterns(), exportPath); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "write the pattern tree as CBOR to this file")
	return cmd
}

func loadProvider() (provider.Provider, error) {
	if dataFile == "" {
		return nil, fmt.Errorf("--data is required")
	}
	data, err := os.ReadFile(dataFile)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read data file '%s'", dataFile)
	}
	return provider.NewMemory(data), nil
}

// printPattern renders one tree node per line, indented by depth.
func printPattern(p pattern.Pattern, depth int) {
	if p.Base().Hidden() {
		return
	}

	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s0x%08X [%4d] %-10s %-20s %s\n",
		indent, p.Offset(), p.Size(), p.TypeName(), p.DisplayName(), p.FormattedValue())

	for _, child := range p.Children() {
		printPattern(child, depth+1)
	}
}

// exportNode is the CBOR shape of one pattern tree node.
type exportNode struct {
	Name     string       `cbor:"name"`
	Type     string       `cbor:"type"`
	Offset   uint64       `cbor:"offset"`
	Size     uint64       `cbor:"size"`
	Value    string       `cbor:"value,omitempty"`
	Comment  string       `cbor:"comment,omitempty"`
	Children []exportNode `cbor:"children,omitempty"`
}

func toExportNode(p pattern.Pattern) exportNode {
	node := exportNode{
		Name:    p.DisplayName(),
		Type:    p.TypeName(),
		Offset:  p.Offset(),
		Size:    p.Size(),
		Value:   p.FormattedValue(),
		Comment: p.Base().Comment(),
	}
	for _, child := range p.Children() {
		node.Children = append(node.Children, toExportNode(child))
	}
	return node
}

func exportCBOR(patterns []pattern.Pattern, path string) error {
	nodes := make([]exportNode, 0, len(patterns))
	for _, p := range patterns {
		nodes = append(nodes, toExportNode(p))
	}

	data, err := cbor.Marshal(nodes)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode pattern tree")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write '%s'", path)
	}
	return nil
}
