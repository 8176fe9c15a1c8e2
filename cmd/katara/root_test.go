package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arneph/katara/internal/driver"
)

const constReturnIR = "@0 main () => (i64) {\n" +
	"  {0}:\n" +
	"    ret #42:i64\n" +
	"}\n"

func writeIRFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.ir.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestCompileCmdReportsFuncAndByteCounts(t *testing.T) {
	path := writeIRFile(t, constReturnIR)

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"compile", path})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "compiled 1 func(s)")
}

func TestCompileCmdReadsFromStdin(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetIn(strings.NewReader(constReturnIR))
	root.SetArgs([]string{"compile", "-"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "compiled 1 func(s)")
}

func TestCompileCmdOnMissingFileReturnsError(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"compile", filepath.Join(t.TempDir(), "missing.ir.txt")})
	require.Error(t, root.Execute())
}

func TestInterpretCmdIsUnimplemented(t *testing.T) {
	path := writeIRFile(t, constReturnIR)

	root := newRootCmd()
	root.SetArgs([]string{"interpret", path})
	require.Error(t, root.Execute())
}

func TestVersionCmdPrintsVersion(t *testing.T) {
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "Katara version")
}

func TestExitCodeForMapsEachStage(t *testing.T) {
	require.Equal(t, 1, exitCodeFor(nil))
	require.Equal(t, 1, exitCodeFor(errors.New("plain error")))
	require.Equal(t, 1, exitCodeFor(&driver.StageError{Stage: driver.StageLoad, Err: errors.New("x")}))
	require.Equal(t, 2, exitCodeFor(&driver.StageError{Stage: driver.StageBuild, Err: errors.New("x")}))
	require.Equal(t, 3, exitCodeFor(&driver.StageError{Stage: driver.StageTranslate, Err: errors.New("x")}))
}
