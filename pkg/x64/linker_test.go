package x64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyPatchesWritesMultipleSitesInOrder(t *testing.T) {
	linker := NewLinker()
	buf := NewBuffer(make([]byte, 12))

	funcPatch, err := buf.ViewRange(0, 4)
	require.NoError(t, err)
	blockPatch, err := buf.ViewRange(4, 8)
	require.NoError(t, err)
	blockPatch2, err := buf.ViewRange(8, 12)
	require.NoError(t, err)

	linker.RecordFuncRef(NewFuncRef(1), funcPatch)
	linker.RecordBlockRef(NewBlockRef(2), blockPatch)
	linker.RecordBlockRef(NewBlockRef(3), blockPatch2)

	linker.RecordFuncAddr(1, 104)
	linker.RecordBlockAddr(2, 0)
	linker.RecordBlockAddr(3, 8)

	require.NoError(t, linker.ApplyPatches())
	require.Equal(t, []byte{100, 0, 0, 0}, buf.data[0:4], "100 = 104 - (0+4)")
	require.Equal(t, []byte{0xf8, 0xff, 0xff, 0xff}, buf.data[4:8], "-8 = 0 - (4+4)")
	require.Equal(t, []byte{0xfc, 0xff, 0xff, 0xff}, buf.data[8:12], "-4 = 8 - (8+4)")
}

func TestApplyPatchesFailsOnUnresolvedFuncRef(t *testing.T) {
	linker := NewLinker()
	buf := NewBuffer(make([]byte, 4))
	linker.RecordFuncRef(NewFuncRef(42), buf)

	err := linker.ApplyPatches()
	require.Error(t, err)
	var linkErr *LinkError
	require.ErrorAs(t, err, &linkErr)
}

func TestApplyPatchesFailsOnUnresolvedBlockRef(t *testing.T) {
	linker := NewLinker()
	buf := NewBuffer(make([]byte, 4))
	linker.RecordBlockRef(NewBlockRef(7), buf)

	err := linker.ApplyPatches()
	require.Error(t, err)
	var linkErr *LinkError
	require.ErrorAs(t, err, &linkErr)
}

func TestApplyPatchesNegativeOverflowFails(t *testing.T) {
	linker := NewLinker()
	buf := NewBuffer(make([]byte, 4))
	linker.RecordBlockRef(NewBlockRef(1), buf)
	linker.RecordBlockAddr(1, -(int64(1)<<40))

	err := linker.ApplyPatches()
	require.Error(t, err)
}

func TestApplyPatchesNoPatchesSucceeds(t *testing.T) {
	linker := NewLinker()
	require.NoError(t, linker.ApplyPatches())
}

func TestRecordFuncAddrOverwritesPriorValue(t *testing.T) {
	linker := NewLinker()
	buf := NewBuffer(make([]byte, 4))
	linker.RecordFuncRef(NewFuncRef(5), buf)

	linker.RecordFuncAddr(5, 1000)
	linker.RecordFuncAddr(5, 20)
	require.NoError(t, linker.ApplyPatches())
	require.Equal(t, []byte{16, 0, 0, 0}, buf.data, "16 = 20 - (0+4), using the last recorded address")
}
