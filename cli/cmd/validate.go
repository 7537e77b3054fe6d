package cmd

import (
	"fmt"
	"io"

	"github.com/sflowg/blockrunner/runtime"
	"github.com/sflowg/blockrunner/runtime/engine/yaml"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pipeline.yaml>...",
	Short: "Load pipelines and report their structure",
	Long: `Validate decodes every block and its settings without running anything.

Example:
  blockrunner validate pipelines/login.yaml
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	loader := yaml.NewPipelineLoader()
	out := cmd.OutOrStdout()

	var failed int
	for _, path := range args {
		p, err := loader.Load(path)
		if err != nil {
			fmt.Fprintf(out, "✗ %s\n  %v\n", path, err)
			failed++
			continue
		}
		describePipeline(out, path, p)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pipelines invalid", failed, len(args))
	}
	return nil
}

func describePipeline(w io.Writer, path string, p *runtime.Pipeline) {
	fmt.Fprintf(w, "✓ %s\n", path)
	fmt.Fprintf(w, "  Pipeline: %s (id: %s)\n", p.Name, p.ID)
	if p.Author != "" {
		fmt.Fprintf(w, "  Author: %s\n", p.Author)
	}
	fmt.Fprintf(w, "  Blocks: %d (%d startup)\n", countBlocks(p.Blocks), countBlocks(p.StartupBlocks))
	fmt.Fprintf(w, "  Threads: %d, proxy mode: %s, output: %s\n", p.Runner.Threads, p.Proxy.Mode, p.Output.Format)
}

// countBlocks counts every block of a tree, nested ones included.
func countBlocks(blocks []runtime.Block) int {
	n := 0
	runtime.Walk(blocks, func(runtime.Block) { n++ })
	return n
}
