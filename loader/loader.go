// Package loader assembles a MIPS-subset textual syntax into a
// Program the functional emulator and the timing pipeline both
// execute directly — no further decode step.
package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/oomsim/insts"
)

// TextBase is the fixed load address of the .text section.
const TextBase = 0x1000

// DataBase is the fixed load address of the .data section.
const DataBase = 0x10000

// Program is the bundle the loader hands to both execution engines.
type Program struct {
	Memory       []byte
	Instructions []*insts.Instruction
	Labels       map[string]uint32
	EntryPC      uint32
	TextBase     uint32
}

// ErrKind classifies a Program-invalid assembly error.
type ErrKind int

// Error kinds.
const (
	ErrUnknownOpcode ErrKind = iota
	ErrUnresolvedLabel
	ErrMalformedDirective
	ErrBadOperand
)

// Error is returned for any assembly-time failure. It fails before
// simulation, per the §7 "Program-invalid" error kind.
type Error struct {
	Kind ErrKind
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("loader: line %d: %s", e.Line, e.Msg)
}

var regNames = map[string]int{
	"$zero": 0, "$at": 1, "$v0": 2, "$v1": 3,
	"$a0": 4, "$a1": 5, "$a2": 6, "$a3": 7,
	"$t0": 8, "$t1": 9, "$t2": 10, "$t3": 11,
	"$t4": 12, "$t5": 13, "$t6": 14, "$t7": 15,
	"$s0": 16, "$s1": 17, "$s2": 18, "$s3": 19,
	"$s4": 20, "$s5": 21, "$s6": 22, "$s7": 23,
	"$t8": 24, "$t9": 25, "$gp": 28, "$sp": 29,
	"$fp": 30, "$ra": 31,
}

var fregNames = map[string]int{
	"$f0": 0, "$f1": 1, "$f2": 2, "$f3": 3,
	"$f4": 4, "$f5": 5, "$f6": 6, "$f7": 7,
}

var mnemonics = map[string]insts.Op{
	"add": insts.OpAdd, "addi": insts.OpAddi, "sub": insts.OpSub, "mul": insts.OpMul,
	"and": insts.OpAnd, "or": insts.OpOr, "xor": insts.OpXor,
	"sll": insts.OpSll, "srl": insts.OpSrl, "slt": insts.OpSlt,
	"li": insts.OpLi, "la": insts.OpLa, "lw": insts.OpLw, "sw": insts.OpSw,
	"beq": insts.OpBeq, "bne": insts.OpBne, "bgt": insts.OpBgt,
	"bge": insts.OpBge, "ble": insts.OpBle, "blt": insts.OpBlt,
	"j": insts.OpJ, "jal": insts.OpJal, "jr": insts.OpJr,
	"nop": insts.OpNop, "syscall": insts.OpSyscall,
	"add.s": insts.OpAddS, "mul.s": insts.OpMulS,
}

type rawLine struct {
	lineNo int
	text   string
}

// Assemble parses source into a Program. It performs two passes: the
// first resolves label addresses, the second decodes operands and
// fixes up branch/jump targets.
func Assemble(source string) (*Program, error) {
	lines := splitLines(source)

	labels := map[string]uint32{}
	var dataBytes []byte
	var textLines []rawLine

	section := ""
	pc := uint32(TextBase)
	dataAddr := uint32(DataBase)

	for _, ln := range lines {
		text := stripComment(ln.text)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if text == ".data" {
			section = "data"
			continue
		}
		if text == ".text" {
			section = "text"
			continue
		}
		if strings.HasPrefix(text, ".globl") {
			continue
		}

		if label, rest, ok := splitLabel(text); ok {
			if section == "text" {
				labels[label] = pc
			} else {
				labels[label] = dataAddr
			}
			text = strings.TrimSpace(rest)
			if text == "" {
				continue
			}
		}

		switch section {
		case "data":
			n, bytes, err := assembleDirective(ln.lineNo, text)
			if err != nil {
				return nil, err
			}
			dataBytes = append(dataBytes, bytes...)
			dataAddr += uint32(n)
		case "text":
			textLines = append(textLines, rawLine{ln.lineNo, text})
			pc += 4
		default:
			return nil, &Error{ErrMalformedDirective, ln.lineNo, "statement outside .data/.text"}
		}
	}

	instructions := make([]*insts.Instruction, len(textLines))
	pc = TextBase
	for i, rl := range textLines {
		in, err := assembleInstruction(rl.lineNo, uint32(pc), uint64(i), rl.text, labels)
		if err != nil {
			return nil, err
		}
		instructions[i] = in
		pc += 4
	}

	memSize := int(dataAddr-DataBase) + DataBase
	memory := make([]byte, memSize)
	copy(memory[DataBase:], dataBytes)

	entry, ok := labels["main"]
	if !ok {
		entry = TextBase
	}

	return &Program{
		Memory:       memory,
		Instructions: instructions,
		Labels:       labels,
		EntryPC:      entry,
		TextBase:     TextBase,
	}, nil
}

func splitLines(source string) []rawLine {
	raw := strings.Split(source, "\n")
	out := make([]rawLine, len(raw))
	for i, l := range raw {
		out[i] = rawLine{i + 1, l}
	}
	return out
}

func stripComment(s string) string {
	if idx := strings.Index(s, "#"); idx >= 0 {
		return s[:idx]
	}
	return s
}

func splitLabel(s string) (label, rest string, ok bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", s, false
	}
	return strings.TrimSpace(s[:idx]), s[idx+1:], true
}

func assembleDirective(lineNo int, text string) (int, []byte, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, nil, nil
	}
	directive := fields[0]
	arg := strings.TrimSpace(strings.TrimPrefix(text, directive))

	switch directive {
	case ".word":
		var out []byte
		for _, v := range strings.Split(arg, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 0, 64)
			if err != nil {
				return 0, nil, &Error{ErrMalformedDirective, lineNo, "bad .word operand: " + v}
			}
			out = append(out, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		}
		return len(out), out, nil
	case ".space":
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return 0, nil, &Error{ErrMalformedDirective, lineNo, "bad .space operand"}
		}
		return n, make([]byte, n), nil
	case ".asciiz":
		s, err := strconv.Unquote(strings.TrimSpace(arg))
		if err != nil {
			return 0, nil, &Error{ErrMalformedDirective, lineNo, "bad .asciiz operand"}
		}
		b := append([]byte(s), 0)
		return len(b), b, nil
	default:
		return 0, nil, &Error{ErrMalformedDirective, lineNo, "unknown directive " + directive}
	}
}

func parseReg(lineNo int, tok string) (int, error) {
	tok = strings.TrimSuffix(tok, ",")
	if r, ok := regNames[tok]; ok {
		return r, nil
	}
	return 0, &Error{ErrBadOperand, lineNo, "unknown register " + tok}
}

func parseFReg(lineNo int, tok string) (int, error) {
	tok = strings.TrimSuffix(tok, ",")
	if r, ok := fregNames[tok]; ok {
		return r, nil
	}
	return 0, &Error{ErrBadOperand, lineNo, "unknown float register " + tok}
}

func parseImm(lineNo int, tok string) (int32, error) {
	tok = strings.TrimSuffix(tok, ",")
	n, err := strconv.ParseInt(tok, 0, 32)
	if err != nil {
		return 0, &Error{ErrBadOperand, lineNo, "bad immediate " + tok}
	}
	return int32(n), nil
}

// parseMem parses an "imm(reg)" memory operand, as used by lw/sw.
func parseMem(lineNo int, tok string) (int32, int, error) {
	open := strings.Index(tok, "(")
	close := strings.Index(tok, ")")
	if open < 0 || close < open {
		return 0, 0, &Error{ErrBadOperand, lineNo, "bad memory operand " + tok}
	}
	immStr := strings.TrimSpace(tok[:open])
	var imm int32
	if immStr != "" {
		n, err := strconv.ParseInt(immStr, 0, 32)
		if err != nil {
			return 0, 0, &Error{ErrBadOperand, lineNo, "bad displacement " + immStr}
		}
		imm = int32(n)
	}
	reg, err := parseReg(lineNo, tok[open+1:close])
	if err != nil {
		return 0, 0, err
	}
	return imm, reg, nil
}

func assembleInstruction(lineNo int, pc uint32, seqNo uint64, text string, labels map[string]uint32) (*insts.Instruction, error) {
	fields := strings.Fields(text)
	mnemonic := strings.ToLower(fields[0])
	op, ok := mnemonics[mnemonic]
	if !ok {
		return nil, &Error{ErrUnknownOpcode, lineNo, "unknown opcode " + mnemonic}
	}

	in := &insts.Instruction{SeqNo: seqNo, PC: pc, Op: op, Rs1: -1, Rs2: -1, Rd: -1}
	args := fields[1:]

	switch op {
	case insts.OpAdd, insts.OpSub, insts.OpMul, insts.OpAnd, insts.OpOr, insts.OpXor, insts.OpSlt:
		if len(args) != 3 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 3 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := parseReg(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		rs2, err := parseReg(lineNo, args[2])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Rs1, in.Rs2 = int32(rd), int32(rs1), int32(rs2)
	case insts.OpAddS, insts.OpMulS:
		if len(args) != 3 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 3 operands"}
		}
		rd, err := parseFReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := parseFReg(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		rs2, err := parseFReg(lineNo, args[2])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Rs1, in.Rs2 = int32(rd), int32(rs1), int32(rs2)
	case insts.OpAddi:
		if len(args) != 3 {
			return nil, &Error{ErrBadOperand, lineNo, "addi expects 3 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := parseReg(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		imm, err := parseImm(lineNo, args[2])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Rs1, in.Imm = int32(rd), int32(rs1), imm
	case insts.OpSll, insts.OpSrl:
		if len(args) != 3 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 3 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		rs1, err := parseReg(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		shamt, err := parseImm(lineNo, args[2])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Rs1, in.Imm = int32(rd), int32(rs1), shamt
	case insts.OpLi:
		if len(args) != 2 {
			return nil, &Error{ErrBadOperand, lineNo, "li expects 2 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		imm, err := parseImm(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Imm = int32(rd), imm
	case insts.OpLa:
		if len(args) != 2 {
			return nil, &Error{ErrBadOperand, lineNo, "la expects 2 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		label := strings.TrimSuffix(args[1], ",")
		in.Rd = int32(rd)
		in.Label = label // resolved below
	case insts.OpLw, insts.OpSw:
		if len(args) != 2 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 2 operands"}
		}
		rd, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		imm, base, err := parseMem(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		in.Rd, in.Rs1, in.Imm = int32(rd), int32(base), imm
	case insts.OpBeq, insts.OpBne, insts.OpBgt, insts.OpBge, insts.OpBle, insts.OpBlt:
		if len(args) != 3 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 3 operands"}
		}
		rs1, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		rs2, err := parseReg(lineNo, args[1])
		if err != nil {
			return nil, err
		}
		in.Rs1, in.Rs2 = int32(rs1), int32(rs2)
		in.Label = strings.TrimSuffix(args[2], ",")
	case insts.OpJ, insts.OpJal:
		if len(args) != 1 {
			return nil, &Error{ErrBadOperand, lineNo, mnemonic + " expects 1 operand"}
		}
		in.Label = args[0]
	case insts.OpJr:
		if len(args) != 1 {
			return nil, &Error{ErrBadOperand, lineNo, "jr expects 1 operand"}
		}
		rs1, err := parseReg(lineNo, args[0])
		if err != nil {
			return nil, err
		}
		in.Rs1 = int32(rs1)
	case insts.OpNop, insts.OpSyscall:
		// no operands
	}

	if in.Label != "" {
		target, ok := labels[in.Label]
		if !ok {
			return nil, &Error{ErrUnresolvedLabel, lineNo, "unresolved label " + in.Label}
		}
		in.Target = target
	}

	return in, nil
}
