// Inspection tool for pickled container files: prints the node tree,
// attribute values, and fully reconstructed objects.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-h5pickle/pickle"
	"github.com/robert-malhotra/go-h5pickle/store"

	// Register the interop types so their tags resolve when printing.
	_ "github.com/robert-malhotra/go-h5pickle/interop/mesh"
	_ "github.com/robert-malhotra/go-h5pickle/interop/numeric"
)

var (
	groupColor = color.New(color.FgCyan, color.Bold)
	dsColor    = color.New(color.FgGreen)
	tagColor   = color.New(color.FgYellow)
	attrColor  = color.New(color.FgMagenta)
)

func main() {
	root := &cobra.Command{
		Use:           "h5inspect",
		Short:         "Inspect pickled container files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(treeCmd(), attrsCmd(), catCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func treeCmd() *cobra.Command {
	var showAttrs bool
	cmd := &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the group and dataset hierarchy",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			printGroup(f.Root(), 0, showAttrs)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showAttrs, "attrs", "a", false, "include attributes")
	return cmd
}

func printGroup(g *store.Group, depth int, showAttrs bool) {
	indent := strings.Repeat("  ", depth)

	groupColor.Printf("%s%s", indent, g.Name())
	if tag, ok := g.Attr(pickle.AttrTypeName); ok {
		fmt.Print("  ")
		tagColor.Printf("<%v>", tag)
	}
	fmt.Println()

	if showAttrs {
		printAttrs(g, indent+"  ")
	}

	for _, member := range g.Members() {
		if child, err := g.OpenGroup(member); err == nil {
			printGroup(child, depth+1, showAttrs)
			continue
		}
		ds, err := g.OpenDataset(member)
		if err != nil {
			fmt.Printf("%s  %s: unreadable: %v\n", indent, member, err)
			continue
		}
		dsColor.Printf("%s  %s", indent, ds.Name())
		fmt.Printf("  %s%v\n", ds.Dtype(), ds.Shape())
		if showAttrs {
			printAttrs(ds, indent+"    ")
		}
	}
}

type attributed interface {
	Attrs() []string
	Attr(name string) (any, bool)
}

func printAttrs(obj attributed, indent string) {
	for _, name := range obj.Attrs() {
		v, _ := obj.Attr(name)
		attrColor.Printf("%s@%s", indent, name)
		fmt.Printf(" = %v\n", v)
	}
}

func attrsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attrs <file> [path]",
		Short: "Print the attributes of a node",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if len(args) == 1 {
				printAttrs(f.Root(), "")
				return nil
			}
			obj, err := f.Root().Open(args[1])
			if err != nil {
				return err
			}
			switch node := obj.(type) {
			case *store.Group:
				printAttrs(node, "")
			case *store.Dataset:
				printAttrs(node, "")
			default:
				return fmt.Errorf("unexpected node type %T at %q", obj, args[1])
			}
			return nil
		},
	}
}

func catCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "cat <file>",
		Short: "Reconstruct and print the stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var opts []pickle.Option
			if pattern != "" {
				opts = append(opts, pickle.WithPattern(pattern))
			}
			obj, err := pickle.Load(args[0], opts...)
			if err != nil {
				return err
			}
			spew.Dump(obj)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "load the first object matching this path pattern")
	return cmd
}
