package debugdump

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arneph/katara/pkg/callgraph"
	"github.com/arneph/katara/pkg/ir"
)

func TestNilDumperMethodsAreNoOps(t *testing.T) {
	var d *Dumper
	require.NotPanics(t, func() {
		d.BeginStage("load")
		d.IR(ir.NewProgram())
		d.CallGraph(nil)
	})
}

func TestDumperWritesNumberedArtifactsPerStage(t *testing.T) {
	dir := t.TempDir()
	d, err := New(dir, nil)
	require.NoError(t, err)

	prog := ir.NewProgram()
	f := prog.NewFunc("main", ir.Signature{ResultTypes: []ir.Type{ir.I64}})
	entry := f.AllocateBlock()
	f.SetEntry(entry.ID())
	entry.AppendInstr(ir.NewReturn([]ir.Value{ir.NewConstant(ir.I64, 7)}))
	prog.SetEntryFunc(f.ID())

	d.BeginStage("load")
	d.IR(prog)

	d.BeginStage("build")
	d.IR(prog)
	d.CallGraph(callgraph.Build(prog).ToGraph(prog))

	require.FileExists(t, filepath.Join(dir, "01-load.ir.txt"))
	require.FileExists(t, filepath.Join(dir, "02-build.ir.txt"))
	require.FileExists(t, filepath.Join(dir, "02-build.callgraph.dot"))

	contents, err := os.ReadFile(filepath.Join(dir, "02-build.callgraph.dot"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "digraph callgraph")
}
