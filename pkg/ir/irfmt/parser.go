package irfmt

import (
	"io"

	"github.com/pkg/errors"

	"github.com/arneph/katara/pkg/ir"
)

var unaryOps = map[string]ir.UnaryALOp{
	"not": ir.Not,
	"neg": ir.Neg,
}

var binaryALOps = map[string]ir.BinaryALOp{
	"and": ir.And,
	"or":  ir.Or,
	"xor": ir.Xor,
	"add": ir.Add,
	"sub": ir.Sub,
	"mul": ir.Mul,
	"div": ir.Div,
	"rem": ir.Rem,
}

var compareOps = map[string]ir.CompareOp{
	"eq":  ir.Eq,
	"ne":  ir.Neq,
	"gt":  ir.Gt,
	"gte": ir.Gte,
	"lte": ir.Lte,
	"lt":  ir.Lt,
}

// parser recursive-descends over the fixed IR text form (spec.md §6),
// mirroring the original ir_processors/parser.h's grammar but driven off a
// single buffered lookahead token rather than a re-entrant Scanner object.
type parser struct {
	s   *scanner
	cur token
}

// Parse reads the fixed IR text form from r and reconstructs the
// Program it denotes. The first func and the first block of each func, in
// the order they appear in the text, become the program's entry func and
// each func's entry block respectively: the text form carries no separate
// entry marker, matching the convention every hand-built fixture in this
// codebase already follows.
func Parse(r io.Reader) (*ir.Program, error) {
	p := &parser{s: newScanner(r)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	prog := ir.NewProgram()
	first := true
	for p.cur.kind != tokEOF {
		if err := p.parseFunc(prog, first); err != nil {
			return nil, err
		}
		first = false
	}
	return prog, nil
}

func (p *parser) advance() error {
	t, err := p.s.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expect(k tokenKind) error {
	if p.cur.kind != k {
		return errors.Errorf("irfmt: expected %s, got %s", k, p.cur.kind)
	}
	return p.advance()
}

func (p *parser) parseFunc(prog *ir.Program, isFirst bool) error {
	if err := p.expect(tokAt); err != nil {
		return err
	}
	if p.cur.kind != tokNumber {
		return errors.Errorf("irfmt: expected func id, got %s", p.cur.kind)
	}
	id := ir.FuncID(p.cur.num)
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.kind != tokIdent {
		return errors.Errorf("irfmt: expected func name, got %s", p.cur.kind)
	}
	name := p.cur.text
	if err := p.advance(); err != nil {
		return err
	}

	argTypes, err := p.parseFuncArgs()
	if err != nil {
		return err
	}
	if err := p.expect(tokArrow); err != nil {
		return err
	}
	resultTypes, err := p.parseTypeList()
	if err != nil {
		return err
	}
	if err := p.expect(tokLBrace); err != nil {
		return err
	}

	f := prog.DefineFunc(id, name, ir.Signature{ArgTypes: argTypes, ResultTypes: resultTypes})

	firstBlock := true
	for p.cur.kind == tokLBrace {
		if err := p.parseBlock(f, &firstBlock); err != nil {
			return err
		}
	}
	if err := p.expect(tokRBrace); err != nil {
		return err
	}
	if isFirst {
		prog.SetEntryFunc(f.ID())
	}
	return nil
}

// parseFuncArgs parses the "(%0:t0, %1:t1, ...)" argument header, checking
// that each printed arg id matches its position: Func always numbers its
// args 0..n-1 in order (NewFunc's allocateComputed calls), so a mismatch
// means the text was not produced by this package's own printer.
func (p *parser) parseFuncArgs() ([]ir.Type, error) {
	if err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var types []ir.Type
	idx := uint64(0)
	for p.cur.kind != tokRParen {
		if err := p.expect(tokPercent); err != nil {
			return nil, err
		}
		if p.cur.kind != tokNumber {
			return nil, errors.Errorf("irfmt: expected arg id, got %s", p.cur.kind)
		}
		if p.cur.num != idx {
			return nil, errors.Errorf("irfmt: func arg id %d out of sequence, want %d", p.cur.num, idx)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
		idx++
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return types, nil
}

// parseTypeList parses a parenthesized, comma-separated list of bare type
// names, used for a func's result-type header.
func (p *parser) parseTypeList() ([]ir.Type, error) {
	if err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var types []ir.Type
	for p.cur.kind != tokRParen {
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return types, nil
}

func (p *parser) parseTypeName() (ir.Type, error) {
	if p.cur.kind != tokIdent {
		return ir.Unknown, errors.Errorf("irfmt: expected type name, got %s", p.cur.kind)
	}
	typ, ok := ir.ParseType(p.cur.text)
	if !ok {
		return ir.Unknown, errors.WithStack(&ir.StructuralError{Msg: "irfmt: unknown type \"" + p.cur.text + "\""})
	}
	if err := p.advance(); err != nil {
		return ir.Unknown, err
	}
	return typ, nil
}

func (p *parser) parseBlock(f *ir.Func, firstBlock *bool) error {
	if err := p.expect(tokLBrace); err != nil {
		return err
	}
	if p.cur.kind != tokNumber {
		return errors.Errorf("irfmt: expected block id, got %s", p.cur.kind)
	}
	id := ir.BlockID(p.cur.num)
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expect(tokRBrace); err != nil {
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}

	blk := f.DefineBlock(id)
	if *firstBlock {
		f.SetEntry(id)
		*firstBlock = false
	}

	for p.cur.kind != tokLBrace && p.cur.kind != tokRBrace {
		if err := p.parseInstr(f, blk); err != nil {
			return err
		}
	}
	return nil
}

func isValueStart(k tokenKind) bool {
	return k == tokHash || k == tokPercent || k == tokAt
}

func (p *parser) parseInstr(f *ir.Func, b *ir.Block) error {
	switch p.cur.kind {
	case tokIdent:
		switch p.cur.text {
		case "jmp":
			return p.parseJump(f, b)
		case "jcc":
			return p.parseJumpCond(f, b)
		case "ret":
			return p.parseReturn(f, b)
		case "call":
			return p.parseCall(f, b, nil)
		default:
			return errors.Errorf("irfmt: unexpected mnemonic %q", p.cur.text)
		}
	case tokPercent:
		results, err := p.parseResultList(f)
		if err != nil {
			return err
		}
		if err := p.expect(tokEqual); err != nil {
			return err
		}
		if p.cur.kind != tokIdent {
			return errors.Errorf("irfmt: expected mnemonic, got %s", p.cur.kind)
		}
		mnemonic := p.cur.text
		switch mnemonic {
		case "mov":
			return p.parseMov(f, b, results)
		case "phi":
			return p.parsePhi(f, b, results)
		case "call":
			return p.parseCall(f, b, results)
		}
		if len(results) != 1 {
			return errors.Errorf("irfmt: %q takes exactly one result, got %d", mnemonic, len(results))
		}
		if op, ok := unaryOps[mnemonic]; ok {
			return p.parseUnaryAL(f, b, op, results[0])
		}
		if op, ok := binaryALOps[mnemonic]; ok {
			return p.parseBinaryAL(f, b, op, results[0])
		}
		if op, ok := compareOps[mnemonic]; ok {
			return p.parseCompare(f, b, op, results[0])
		}
		return errors.Errorf("irfmt: unknown mnemonic %q", mnemonic)
	default:
		return errors.Errorf("irfmt: unexpected token %s starting instruction", p.cur.kind)
	}
}

// parseResultList parses the "%r0:t0, %r1:t1, ..." prefix before the '='
// of a result-producing instruction. Call is the only instruction that may
// print zero or more than one result; every other kind has exactly one.
func (p *parser) parseResultList(f *ir.Func) ([]ir.Computed, error) {
	var results []ir.Computed
	for {
		cv, err := p.parseComputedRef(f)
		if err != nil {
			return nil, err
		}
		results = append(results, cv)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return results, nil
}

// parseComputedRef parses a single "%id:type" value reference and registers
// its id with f so a later AllocateValue never reissues it.
func (p *parser) parseComputedRef(f *ir.Func) (ir.Computed, error) {
	if err := p.expect(tokPercent); err != nil {
		return ir.Computed{}, err
	}
	if p.cur.kind != tokNumber {
		return ir.Computed{}, errors.Errorf("irfmt: expected value id, got %s", p.cur.kind)
	}
	id := p.cur.num
	if err := p.advance(); err != nil {
		return ir.Computed{}, err
	}
	if err := p.expect(tokColon); err != nil {
		return ir.Computed{}, err
	}
	typ, err := p.parseTypeName()
	if err != nil {
		return ir.Computed{}, err
	}
	return f.DefineComputed(typ, ir.ComputedID(id)), nil
}

func (p *parser) parseBlockValue() (ir.BlockValue, error) {
	if err := p.expect(tokLBrace); err != nil {
		return ir.BlockValue{}, err
	}
	if p.cur.kind != tokNumber {
		return ir.BlockValue{}, errors.Errorf("irfmt: expected block id, got %s", p.cur.kind)
	}
	id := p.cur.num
	if err := p.advance(); err != nil {
		return ir.BlockValue{}, err
	}
	if err := p.expect(tokRBrace); err != nil {
		return ir.BlockValue{}, err
	}
	return ir.BlockValue{Block: ir.BlockID(id)}, nil
}

func (p *parser) parseFuncConstant() (ir.Constant, error) {
	if err := p.expect(tokAt); err != nil {
		return ir.Constant{}, err
	}
	if p.cur.kind != tokNumber {
		return ir.Constant{}, errors.Errorf("irfmt: expected func id, got %s", p.cur.kind)
	}
	id := p.cur.num
	if err := p.advance(); err != nil {
		return ir.Constant{}, err
	}
	return ir.NewConstant(ir.FuncType, id), nil
}

func (p *parser) parseConstantAfterHash() (ir.Constant, error) {
	if err := p.expect(tokHash); err != nil {
		return ir.Constant{}, err
	}
	if p.cur.kind == tokIdent && (p.cur.text == "t" || p.cur.text == "f") {
		isTrue := p.cur.text == "t"
		if err := p.advance(); err != nil {
			return ir.Constant{}, err
		}
		pattern := uint64(0)
		if isTrue {
			pattern = 1
		}
		return ir.NewConstant(ir.Bool, pattern), nil
	}
	if p.cur.kind != tokNumber {
		return ir.Constant{}, errors.Errorf("irfmt: expected constant literal, got %s", p.cur.kind)
	}
	neg, mag := p.cur.neg, p.cur.num
	if err := p.advance(); err != nil {
		return ir.Constant{}, err
	}
	if err := p.expect(tokColon); err != nil {
		return ir.Constant{}, err
	}
	typ, err := p.parseTypeName()
	if err != nil {
		return ir.Constant{}, err
	}
	pattern, err := literalToPattern(typ, neg, mag)
	if err != nil {
		return ir.Constant{}, err
	}
	return ir.NewConstant(typ, pattern), nil
}

// literalToPattern inverts signedLiteral (ir/value.go): it reconstructs the
// raw bit pattern a printed "#<literal>:<type>" constant must carry so that
// re-printing it reproduces the same literal.
func literalToPattern(typ ir.Type, neg bool, mag uint64) (uint64, error) {
	if typ.Unsigned() {
		if neg {
			return 0, errors.Errorf("irfmt: negative literal for unsigned type %s", typ)
		}
		return mag, nil
	}
	bits := typ.SizeInBits()
	v := int64(mag)
	if neg {
		v = -v
	}
	pattern := uint64(v)
	if bits < 64 {
		mask := uint64(1)<<uint(bits) - 1
		pattern &= mask
	}
	return pattern, nil
}

func (p *parser) parseValue(f *ir.Func) (ir.Value, error) {
	switch p.cur.kind {
	case tokHash:
		return p.parseConstantAfterHash()
	case tokPercent:
		cv, err := p.parseComputedRef(f)
		if err != nil {
			return nil, err
		}
		return cv, nil
	case tokAt:
		return p.parseFuncConstant()
	case tokLBrace:
		bv, err := p.parseBlockValue()
		if err != nil {
			return nil, err
		}
		return bv, nil
	default:
		return nil, errors.Errorf("irfmt: unexpected token %s starting value", p.cur.kind)
	}
}

func (p *parser) parseMov(f *ir.Func, b *ir.Block, results []ir.Computed) error {
	if len(results) != 1 {
		return errors.Errorf("irfmt: mov takes exactly one result, got %d", len(results))
	}
	if err := p.advance(); err != nil { // consume "mov"
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}
	if _, err := p.parseTypeName(); err != nil { // the declared type, redundant with the result's
		return err
	}
	origin, err := p.parseValue(f)
	if err != nil {
		return err
	}
	instr, err := ir.NewMov(results[0], origin)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}

func (p *parser) parsePhi(f *ir.Func, b *ir.Block, results []ir.Computed) error {
	if len(results) != 1 {
		return errors.Errorf("irfmt: phi takes exactly one result, got %d", len(results))
	}
	if err := p.advance(); err != nil { // consume "phi"
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}
	if _, err := p.parseTypeName(); err != nil {
		return err
	}
	var args []ir.PhiArg
	for {
		val, err := p.parseValue(f)
		if err != nil {
			return err
		}
		if err := p.expect(tokColon); err != nil {
			return err
		}
		origin, err := p.parseBlockValue()
		if err != nil {
			return err
		}
		args = append(args, ir.PhiArg{Value: val, Origin: origin})
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	instr, err := ir.NewPhi(results[0], args)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}

func (p *parser) parseUnaryAL(f *ir.Func, b *ir.Block, op ir.UnaryALOp, result ir.Computed) error {
	if err := p.advance(); err != nil { // consume mnemonic
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}
	if _, err := p.parseTypeName(); err != nil {
		return err
	}
	operand, err := p.parseValue(f)
	if err != nil {
		return err
	}
	instr, err := ir.NewUnaryAL(op, result, operand)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}

func (p *parser) parseBinaryAL(f *ir.Func, b *ir.Block, op ir.BinaryALOp, result ir.Computed) error {
	if err := p.advance(); err != nil { // consume mnemonic
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}
	if _, err := p.parseTypeName(); err != nil {
		return err
	}
	a, err := p.parseValue(f)
	if err != nil {
		return err
	}
	if err := p.expect(tokComma); err != nil {
		return err
	}
	bv, err := p.parseValue(f)
	if err != nil {
		return err
	}
	instr, err := ir.NewBinaryAL(op, result, a, bv)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}

func (p *parser) parseCompare(f *ir.Func, b *ir.Block, op ir.CompareOp, result ir.Computed) error {
	if err := p.advance(); err != nil { // consume mnemonic
		return err
	}
	if err := p.expect(tokColon); err != nil {
		return err
	}
	if _, err := p.parseTypeName(); err != nil {
		return err
	}
	a, err := p.parseValue(f)
	if err != nil {
		return err
	}
	if err := p.expect(tokComma); err != nil {
		return err
	}
	bv, err := p.parseValue(f)
	if err != nil {
		return err
	}
	instr, err := ir.NewCompare(op, result, a, bv)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}

func (p *parser) parseJump(f *ir.Func, b *ir.Block) error {
	if err := p.advance(); err != nil { // consume "jmp"
		return err
	}
	dst, err := p.parseBlockValue()
	if err != nil {
		return err
	}
	instr := ir.NewJump(dst)
	b.AppendInstr(instr)
	f.LinksForTerminator(b.ID(), instr)
	return nil
}

func (p *parser) parseJumpCond(f *ir.Func, b *ir.Block) error {
	if err := p.advance(); err != nil { // consume "jcc"
		return err
	}
	cond, err := p.parseValue(f)
	if err != nil {
		return err
	}
	if err := p.expect(tokComma); err != nil {
		return err
	}
	dstTrue, err := p.parseBlockValue()
	if err != nil {
		return err
	}
	if err := p.expect(tokComma); err != nil {
		return err
	}
	dstFalse, err := p.parseBlockValue()
	if err != nil {
		return err
	}
	instr, err := ir.NewJumpCond(cond, dstTrue, dstFalse)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	f.LinksForTerminator(b.ID(), instr)
	return nil
}

func (p *parser) parseReturn(f *ir.Func, b *ir.Block) error {
	if err := p.advance(); err != nil { // consume "ret"
		return err
	}
	var args []ir.Value
	for isValueStart(p.cur.kind) {
		v, err := p.parseValue(f)
		if err != nil {
			return err
		}
		args = append(args, v)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	instr := ir.NewReturn(args)
	b.AppendInstr(instr)
	f.LinksForTerminator(b.ID(), instr)
	return nil
}

func (p *parser) parseCall(f *ir.Func, b *ir.Block, results []ir.Computed) error {
	if err := p.advance(); err != nil { // consume "call"
		return err
	}
	callee, err := p.parseValue(f)
	if err != nil {
		return err
	}
	if err := p.expect(tokLParen); err != nil {
		return err
	}
	var args []ir.Value
	for p.cur.kind != tokRParen {
		v, err := p.parseValue(f)
		if err != nil {
			return err
		}
		args = append(args, v)
		if p.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		break
	}
	if err := p.expect(tokRParen); err != nil {
		return err
	}
	instr, err := ir.NewCall(callee, results, args)
	if err != nil {
		return err
	}
	b.AppendInstr(instr)
	return nil
}
