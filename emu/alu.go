package emu

import "math"

// ALU implements the integer and synthetic float arithmetic/logic
// operations of the MIPS subset.
type ALU struct {
	regFile *RegFile
}

// NewALU creates an ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// Add computes rd = rs1 + rs2.
func (a *ALU) Add(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)+a.regFile.ReadReg(rs2))
}

// AddImm computes rd = rs1 + imm.
func (a *ALU) AddImm(rd, rs1 int, imm int32) {
	a.regFile.WriteReg(rd, uint64(int64(a.regFile.ReadReg(rs1))+int64(imm)))
}

// Sub computes rd = rs1 - rs2.
func (a *ALU) Sub(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)-a.regFile.ReadReg(rs2))
}

// Mul computes rd = rs1 * rs2 (low 64 bits).
func (a *ALU) Mul(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)*a.regFile.ReadReg(rs2))
}

// And computes rd = rs1 & rs2.
func (a *ALU) And(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)&a.regFile.ReadReg(rs2))
}

// Or computes rd = rs1 | rs2.
func (a *ALU) Or(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)|a.regFile.ReadReg(rs2))
}

// Xor computes rd = rs1 ^ rs2.
func (a *ALU) Xor(rd, rs1, rs2 int) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)^a.regFile.ReadReg(rs2))
}

// Sll computes rd = rs1 << shamt.
func (a *ALU) Sll(rd, rs1 int, shamt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)<<shamt)
}

// Srl computes rd = rs1 >> shamt (logical).
func (a *ALU) Srl(rd, rs1 int, shamt uint32) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rs1)>>shamt)
}

// Slt computes rd = 1 if rs1 < rs2 (signed) else 0.
func (a *ALU) Slt(rd, rs1, rs2 int) {
	if int64(a.regFile.ReadReg(rs1)) < int64(a.regFile.ReadReg(rs2)) {
		a.regFile.WriteReg(rd, 1)
	} else {
		a.regFile.WriteReg(rd, 0)
	}
}

// Li loads an immediate into rd.
func (a *ALU) Li(rd int, imm int32) {
	a.regFile.WriteReg(rd, uint64(int64(imm)))
}

// La loads an address constant into rd (identical to Li at the
// register-file level; the distinction matters only to the assembler).
func (a *ALU) La(rd int, addr uint32) {
	a.regFile.WriteReg(rd, uint64(addr))
}

// AddS computes a synthetic float add in float64: f[fd] = f[fs1] + f[fs2].
func (a *ALU) AddS(fd, fs1, fs2 int) {
	v1 := math.Float64frombits(a.regFile.ReadFReg(fs1))
	v2 := math.Float64frombits(a.regFile.ReadFReg(fs2))
	a.regFile.WriteFReg(fd, math.Float64bits(v1+v2))
}

// MulS computes a synthetic float multiply in float64: f[fd] = f[fs1] * f[fs2].
func (a *ALU) MulS(fd, fs1, fs2 int) {
	v1 := math.Float64frombits(a.regFile.ReadFReg(fs1))
	v2 := math.Float64frombits(a.regFile.ReadFReg(fs2))
	a.regFile.WriteFReg(fd, math.Float64bits(v1*v2))
}
