package emu

// Register name -> architectural register number, for the MIPS subset
// this package targets.
const (
	RegZero = 0
	RegAt   = 1
	RegV0   = 2
	RegV1   = 3
	RegA0   = 4
	RegA1   = 5
	RegA2   = 6
	RegA3   = 7
	RegT0   = 8
	RegT1   = 9
	RegT2   = 10
	RegT3   = 11
	RegT4   = 12
	RegT5   = 13
	RegT6   = 14
	RegT7   = 15
	RegS0   = 16
	RegS1   = 17
	RegS2   = 18
	RegS3   = 19
	RegS4   = 20
	RegS5   = 21
	RegS6   = 22
	RegS7   = 23
	RegT8   = 24
	RegT9   = 25
	RegGp   = 28
	RegSp   = 29
	RegFp   = 30
	RegRa   = 31

	NumRegs = 32
)

// RegFile is the MIPS-subset architectural register file used by the
// functional reference emulator. The timing pipeline keeps its own
// register file with rename-map producer tags (see
// timing/pipeline.RegisterFile); this one is values-only.
type RegFile struct {
	R  [NumRegs]uint64
	F  [8]uint64 // synthetic float bank for add.s/mul.s, see insts.OpAddS
	PC uint64
}

// ReadReg reads register r. Register 0 ($zero) always reads as 0.
func (r *RegFile) ReadReg(reg int) uint64 {
	if reg == RegZero {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes value to register r. Writes to $zero are ignored.
func (r *RegFile) WriteReg(reg int, value uint64) {
	if reg == RegZero {
		return
	}
	r.R[reg] = value
}

// ReadFReg reads float register f.
func (r *RegFile) ReadFReg(f int) uint64 { return r.F[f] }

// WriteFReg writes value to float register f.
func (r *RegFile) WriteFReg(f int, value uint64) { r.F[f] = value }
