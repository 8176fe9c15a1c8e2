// Package debugdump writes numbered snapshots of a compilation's
// intermediate state to a directory, for the `-d`/`--debug[=<dir>]` CLI
// flag (spec.md §6). Grounded on spec.md §6's "optional debug artifacts
// (text dumps, dot/VCG graphs)" and on pkg/callgraph's ToGraph, which
// supplies the node/edge data a renderer would consume — the renderer
// itself is a Non-goal (graph pretty-printing), so the call-graph artifact
// here is a plain text edge list, not an actual VCG/dot pretty-printer.
package debugdump

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/arneph/katara/pkg/callgraph"
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/ir/irfmt"
)

// Dumper numbers each stage begun with BeginStage and files the artifacts
// that IR and CallGraph write under that number; a stage that makes
// neither call writes no file. A nil
// *Dumper is valid and every method on it is a no-op, so driver code can
// hold a possibly-disabled Dumper without branching on whether debugging
// was requested.
type Dumper struct {
	dir     string
	log     *logrus.Logger
	stage   int
	current string
}

// New creates a Dumper writing into dir, creating it if necessary. Returns
// an error if dir cannot be created; callers that want dumping best-effort
// can log that error and fall back to a nil *Dumper instead of aborting.
func New(dir string, log *logrus.Logger) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("debugdump: creating %s: %w", dir, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dumper{dir: dir, log: log}, nil
}

// BeginStage advances the artifact counter and names the stage every
// subsequent IR/CallGraph call (until the next BeginStage) is filed under,
// so a stage that dumps both an IR snapshot and a call graph files them
// under the same number.
func (d *Dumper) BeginStage(name string) {
	if d == nil {
		return
	}
	d.stage++
	d.current = name
}

// IR writes prog's text form to "NN-stage.ir.txt". A write failure is
// logged at Warn and otherwise ignored: a debug artifact that can't be
// written must never abort the compilation it's describing.
func (d *Dumper) IR(prog *ir.Program) {
	if d == nil {
		return
	}
	path := d.path("ir.txt")
	f, err := os.Create(path)
	if err != nil {
		d.log.WithError(err).Warnf("debugdump: could not create %s", path)
		return
	}
	defer f.Close()
	if err := irfmt.Print(f, prog); err != nil {
		d.log.WithError(err).Warnf("debugdump: could not print IR to %s", path)
	}
}

// CallGraph writes g's node/edge view to "NN-stage.callgraph.dot", a plain
// directed-edge-list text in dot-like syntax (not a full VCG/dot
// pretty-printer — see package doc).
func (d *Dumper) CallGraph(g *callgraph.Graph) {
	if d == nil || g == nil {
		return
	}
	path := d.path("callgraph.dot")
	f, err := os.Create(path)
	if err != nil {
		d.log.WithError(err).Warnf("debugdump: could not create %s", path)
		return
	}
	defer f.Close()

	var sb strings.Builder
	sb.WriteString("digraph callgraph {\n")
	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "  %d [label=%q,cluster=%d];\n", n.Number, n.Title, n.Subgraph)
	}
	for _, e := range g.Edges {
		fmt.Fprintf(&sb, "  %d -> %d;\n", e.Source, e.Target)
	}
	sb.WriteString("}\n")
	if _, err := f.WriteString(sb.String()); err != nil {
		d.log.WithError(err).Warnf("debugdump: could not write %s", path)
	}
}

// path formats "NN-stage.ext" under d.dir for the current BeginStage name.
func (d *Dumper) path(ext string) string {
	name := fmt.Sprintf("%02d-%s.%s", d.stage, d.current, ext)
	return filepath.Join(d.dir, name)
}
