package cmd

import (
	"io"
	"io/fs"
	"path"

	"github.com/ddddddO/gtree"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tomster/embuild/internal/tree"
	"github.com/tomster/embuild/pkg/builder"
)

func newTreeCmd(g *globals, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Prints the files a build would produce.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}

			p, err := builder.Load(builder.Options{
				Config:      cfg,
				Environment: environment(v),
				TestCommand: v.GetBool("test_command"),
				Logger:      g.logger(cmd),
			})
			if err != nil {
				return err
			}

			out, err := p.Tree()
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), p.Name(), out)
		},
	}

	cmd.Flags().StringP("environment", "e", "", `possible values are "development", "production", and "test"`)
	bindEnvironment(v, cmd.Flags())

	return cmd
}

func printTree(w io.Writer, name string, fsys fs.FS) error {
	files, err := tree.Paths(fsys)
	if err != nil {
		return err
	}

	root := gtree.NewRoot(name)
	nodes := map[string]*gtree.Node{".": root}

	var node func(dir string) *gtree.Node
	node = func(dir string) *gtree.Node {
		if n, ok := nodes[dir]; ok {
			return n
		}
		n := node(path.Dir(dir)).Add(path.Base(dir))
		nodes[dir] = n
		return n
	}

	for _, f := range files {
		node(path.Dir(f)).Add(path.Base(f))
	}

	return gtree.OutputFromRoot(w, root)
}
