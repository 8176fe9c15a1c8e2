package x64

import (
	"testing"

	"github.com/arneph/katara/internal/x64test"
	"github.com/stretchr/testify/require"
)

func TestMovRegImm64UsesRegEmbeddedOpcode(t *testing.T) {
	mov, err := NewMovImm(RCX, Imm64(0x1122334455667788))
	require.NoError(t, err)
	code := encodeOne(t, mov)
	require.Equal(t, byte(0xb9), code[1], "0xb8+r with r=rcx(1)")
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "MOV", len(code)))
}

func TestMovReg64Imm32SignExtendsViaRMImm(t *testing.T) {
	mov, err := NewMovImm(RAX, Imm32(-1))
	require.NoError(t, err)
	code := encodeOne(t, mov)
	require.Equal(t, []byte{0x48, 0xc7, 0xc0, 0xff, 0xff, 0xff, 0xff}, code)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "MOV", len(code)))
}

func TestMovRegMemAndMemReg(t *testing.T) {
	mem := NewMemBaseDisp(Size64, RSP, 8)
	load, err := NewMovRegMem(RAX, mem)
	require.NoError(t, err)
	loadCode := encodeOne(t, load)
	require.NoError(t, x64test.AssertMnemonicAndLen(loadCode, "MOV", len(loadCode)))

	store, err := NewMovRMReg(mem, RAX)
	require.NoError(t, err)
	storeCode := encodeOne(t, store)
	require.NoError(t, x64test.AssertMnemonicAndLen(storeCode, "MOV", len(storeCode)))
}

func TestXchgRegAShortcut(t *testing.T) {
	xchg, err := NewXchg(RBX, RAX)
	require.NoError(t, err)
	code := encodeOne(t, xchg)
	require.Equal(t, []byte{0x48, 0x93}, code, "0x90+r with r=rbx(3)")
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "XCHG", len(code)))
}

func TestXchgNoShortcutAtSize8(t *testing.T) {
	xchg, err := NewXchg(AL, BL)
	require.NoError(t, err)
	code := encodeOne(t, xchg)
	require.Equal(t, []byte{0x86, 0xd8}, code)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "XCHG", len(code)))
}

func TestPushPopReg64(t *testing.T) {
	push, err := NewPushReg(R15)
	require.NoError(t, err)
	pushCode := encodeOne(t, push)
	require.Equal(t, []byte{0x41, 0x57}, pushCode)
	require.NoError(t, x64test.AssertMnemonicAndLen(pushCode, "PUSH", len(pushCode)))

	pop, err := NewPopReg(R15)
	require.NoError(t, err)
	popCode := encodeOne(t, pop)
	require.Equal(t, []byte{0x41, 0x5f}, popCode)
	require.NoError(t, x64test.AssertMnemonicAndLen(popCode, "POP", len(popCode)))
}

func TestPushImmAndMem(t *testing.T) {
	pushImm, err := NewPushImm(Imm32(1000))
	require.NoError(t, err)
	code := encodeOne(t, pushImm)
	require.Equal(t, byte(0x68), code[0])
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "PUSH", len(code)))

	pushMem, err := NewPushMem(NewMemBase(Size64, RBP))
	require.NoError(t, err)
	code = encodeOne(t, pushMem)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "PUSH", len(code)))
}

func TestPushRejectsSize32Register(t *testing.T) {
	_, err := NewPushReg(EAX)
	require.Error(t, err)
}
