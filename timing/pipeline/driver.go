package pipeline

import (
	"fmt"
	"io"
	"math"

	"github.com/sarchlab/oomsim/emu"
	"github.com/sarchlab/oomsim/insts"
	"github.com/sarchlab/oomsim/timing/cache"
)

// loadStoreSize is the access width, in bytes, of every lw/sw in this
// MIPS subset (one 32-bit word).
const loadStoreSize = 4

// Driver is the single mutator of every other arena, orchestrating
// one cycle at a time in reverse pipeline order (commit,
// memory/broadcast, execute, issue, decode/fetch) so that each stage
// only ever reads state a strictly later stage produced last cycle.
type Driver struct {
	cfg *Config

	regFile      *RegisterFile
	floatRegFile *RegisterFile

	rob                            *ROB
	rsALU, rsFPU, rsLSU, rsBranch  *ReservationStation
	fuALU, fuFPU, fuLSU, fuBranch  *FUPool
	lsq                            *LSQ
	cdb                            *CDB
	bp                             *BranchPredictor

	icache, dcache *cache.Cache
	memory         *emu.Memory

	program  []*insts.Instruction
	textBase uint32

	pc            uint32
	iCacheStall   int // cycles remaining before a pending I-cache miss resolves
	fetchBlocked  bool // true once a syscall has been dispatched, until it commits
	halted      bool
	exitCode    int64
	fault       error

	metrics *Metrics

	trace io.Writer // optional per-commit trace sink, nil by default
}

// Option configures optional Driver behavior at construction time.
type Option func(*Driver)

// WithTraceWriter enables a trace of commit activity, one line per
// committed instruction, written to w. Off by default.
func WithTraceWriter(w io.Writer) Option {
	return func(d *Driver) { d.trace = w }
}

// NewDriver builds a Driver wired to program, starting fetch at entryPC.
func NewDriver(cfg *Config, memory *emu.Memory, program []*insts.Instruction, textBase, entryPC uint32, opts ...Option) *Driver {
	bpType := PredictorGshare
	switch cfg.BranchPredictorType {
	case "always_taken":
		bpType = PredictorAlwaysTaken
	case "bimodal":
		bpType = PredictorBimodal
	}

	d := &Driver{
		cfg:          cfg,
		regFile:      NewRegisterFile(),
		floatRegFile: NewRegisterFile(),
		rob:          NewROB(cfg.ROBCapacity),
		rsALU:        NewReservationStation(cfg.RSCapacityPerClass),
		rsFPU:        NewReservationStation(cfg.RSCapacityPerClass),
		rsLSU:        NewReservationStation(cfg.RSCapacityPerClass),
		rsBranch:     NewReservationStation(cfg.RSCapacityPerClass),
		fuALU:        NewFUPool(insts.ClassALU, cfg.ALU.Count, cfg.ALU.Latency),
		fuFPU:        NewFUPool(insts.ClassFPU, cfg.FPU.Count, cfg.FPU.Latency),
		fuLSU:        NewFUPool(insts.ClassLSU, cfg.LSU.Count, cfg.LSU.Latency),
		fuBranch:     NewFUPool(insts.ClassBranch, cfg.IssueWidth, 1),
		lsq:          NewLSQ(cfg.LSQCapacity),
		cdb:          NewCDB(cfg.CDBWidth),
		bp: NewBranchPredictor(BranchPredictorConfig{
			Type:          bpType,
			BHTSize:       uint32(cfg.BranchPredictorEntries),
			BTBSize:       uint32(cfg.BTBEntries),
			HistoryLength: uint32(cfg.HistoryLength),
		}),
		memory:   memory,
		program:  program,
		textBase: textBase,
		pc:       entryPC,
		metrics:  NewMetrics(),
		exitCode: -1,
	}
	d.icache = cache.New(cache.Config{
		Size: cfg.ICache.Size, Associativity: cfg.ICache.Associativity,
		BlockSize: cfg.ICache.BlockSize, HitLatency: 1, MissLatency: uint64(cfg.ICache.MissPenalty),
	}, cache.NewMemoryBacking(memory))
	d.dcache = cache.New(cache.Config{
		Size: cfg.DCache.Size, Associativity: cfg.DCache.Associativity,
		BlockSize: cfg.DCache.BlockSize, HitLatency: 1, MissLatency: uint64(cfg.DCache.MissPenalty),
	}, cache.NewMemoryBacking(memory))
	d.regFile.Value[emu.RegSp] = cfg.MemorySize - 64
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Halted reports whether the driver has stopped: the exit syscall
// committed, or a fault reached commit (see Fault).
func (d *Driver) Halted() bool { return d.halted }

// ExitCode returns the program's exit code once Halted is true.
func (d *Driver) ExitCode() int64 { return d.exitCode }

// Fault returns the fatal memory/arithmetic fault observed at commit, if any.
func (d *Driver) Fault() error { return d.fault }

// Drained reports whether every in-flight arena is empty — the
// condition under which Run can stop even without an explicit halt
// (the fetch stream ran off the end of the program).
func (d *Driver) Drained() bool {
	return d.rob.Empty() && d.fetchPC() >= d.programEnd()
}

func (d *Driver) programEnd() uint32 {
	return d.textBase + uint32(len(d.program))*4
}

func (d *Driver) fetchPC() uint32 { return d.pc }

// Results returns the final metrics snapshot.
func (d *Driver) Results() Results {
	return d.metrics.Results(d.bp.Stats(), d.exitCode)
}

// Tick advances the core by exactly one cycle.
func (d *Driver) Tick() {
	d.metrics.Cycles++
	d.commitStage()
	d.broadcastStage()
	d.executeStage()
	d.issueStage()
	d.frontEndStage()
	d.sampleFUUtilization()
}

// Run ticks the driver until it halts, faults, or drains, or until
// maxCycles is reached (whichever first), returning the exit code.
func (d *Driver) Run(maxCycles uint64) int64 {
	for d.metrics.Cycles < maxCycles {
		if d.halted || d.fault != nil || d.Drained() {
			break
		}
		d.Tick()
	}
	return d.exitCode
}

func (d *Driver) sampleFUUtilization() {
	d.metrics.RecordFUSample("alu", countBusy(d.fuALU), len(d.fuALU.units))
	d.metrics.RecordFUSample("fpu", countBusy(d.fuFPU), len(d.fuFPU.units))
	d.metrics.RecordFUSample("lsu", countBusy(d.fuLSU), len(d.fuLSU.units))
	d.metrics.RecordFUSample("branch", countBusy(d.fuBranch), len(d.fuBranch.units))
}

func countBusy(p *FUPool) int {
	n := 0
	for _, u := range p.units {
		if u.Busy {
			n++
		}
	}
	return n
}

// ---- commit ----

func (d *Driver) commitStage() {
commitLoop:
	for committed := 0; committed < d.cfg.CommitWidth; committed++ {
		head := d.rob.HeadEntry()
		if head == nil || !head.Completed {
			if head != nil {
				d.metrics.RecordStall("rob_head_not_complete")
			}
			break
		}
		if head.Exception != nil {
			d.fault = head.Exception
			d.halted = true
			break
		}

		if head.IsStore {
			if !d.commitStore(head) {
				break commitLoop
			}
		} else if insts.IsLoad(d.opAt(head.SeqNo)) {
			if !d.commitLoad(head) {
				break commitLoop
			}
		} else if head.DestReg >= 0 {
			rf := d.regFile
			if insts.ClassOf(d.opAt(head.SeqNo)) == insts.ClassFPU {
				rf = d.floatRegFile
			}
			rf.CommitWrite(head.DestReg, d.rob.Head(), head.Result)
		}

		if head.IsBranch {
			d.resolveBranchAtCommit(head)
		}
		if insts.IsHalt(d.opAt(head.SeqNo)) {
			result := emu.HandleSyscall(&emu.RegFile{R: [32]uint64{emu.RegV0: d.regFile.Value[emu.RegV0]}})
			if result.Exited {
				d.halted = true
				d.exitCode = result.ExitCode
				// Write committed stores still held in the write-back
				// D-cache out to memory so the final image is visible.
				d.dcache.Flush()
			}
			d.fetchBlocked = false
		}

		if d.trace != nil {
			fmt.Fprintf(d.trace, "cycle=%d commit seq=%d pc=0x%x op=%s\n",
				d.metrics.Cycles, head.SeqNo, head.PC, d.opAt(head.SeqNo))
		}

		d.rob.RetireHead()
		d.metrics.InstructionsCommitted++
		if d.halted {
			break
		}
	}
}

// opAt looks up the decoded Op for a committed SeqNo by its program
// position (SeqNo assigns sequentially in program order starting at 0).
func (d *Driver) opAt(seqNo uint64) insts.Op {
	if int(seqNo) >= len(d.program) {
		return insts.OpUnknown
	}
	return d.program[seqNo].Op
}

func (d *Driver) commitStore(head *ROBEntry) bool {
	entry, ok := d.lsq.CommitStoreHead()
	if !ok {
		d.metrics.RecordStall("store_not_ready")
		return false
	}
	if fault := d.writeMemory(entry.Addr, uint64(entry.Size), entry.Value, head.PC, head.SeqNo); fault != nil {
		head.Exception = fault
		return false
	}
	return true
}

// commitLoad frees the LSQ head for a completed load and writes its
// destination register, the load's equivalent of commitStore freeing
// the LSQ head for a store.
func (d *Driver) commitLoad(head *ROBEntry) bool {
	if _, ok := d.lsq.CommitLoadHead(); !ok {
		d.metrics.RecordStall("load_not_ready")
		return false
	}
	if head.DestReg >= 0 {
		rf := d.regFile
		if insts.ClassOf(d.opAt(head.SeqNo)) == insts.ClassFPU {
			rf = d.floatRegFile
		}
		rf.CommitWrite(head.DestReg, d.rob.Head(), head.Result)
	}
	return true
}

func (d *Driver) writeMemory(addr, size, value uint64, pc uint32, seqNo uint64) (fault error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*emu.FaultError); ok {
				fault = &Fault{Kind: FaultMemory, Addr: fe.Addr, PC: pc, SeqNo: seqNo}
				return
			}
			panic(r)
		}
	}()
	d.metrics.DCacheAccesses++
	res := d.dcache.Write(addr, int(size), value)
	if res.Hit {
		d.metrics.DCacheHits++
	}
	return nil
}

// resolveBranchAtCommit updates the predictor and, on misprediction,
// squashes every younger in-flight instruction and redirects fetch.
func (d *Driver) resolveBranchAtCommit(head *ROBEntry) {
	d.bp.Update(uint64(head.PC), head.PredictedTaken, head.ActualTaken, uint64(head.ActualTarget))

	mispredicted := head.PredictedTaken != head.ActualTaken ||
		(head.ActualTaken && head.PredictedTarget != head.ActualTarget)
	if !mispredicted {
		return
	}

	branchIdx := d.rob.Head()
	freed := d.rob.SquashYounger(branchIdx)
	squashed := make(map[uint64]bool, len(freed))
	for _, s := range freed {
		squashed[s] = true
	}
	d.rsALU.SquashSeqNos(squashed)
	d.rsFPU.SquashSeqNos(squashed)
	d.rsLSU.SquashSeqNos(squashed)
	d.rsBranch.SquashSeqNos(squashed)
	d.fuALU.SquashSeqNos(squashed)
	d.fuFPU.SquashSeqNos(squashed)
	d.fuLSU.SquashSeqNos(squashed)
	d.fuBranch.SquashSeqNos(squashed)
	d.lsq.SquashAfter(head.SeqNo)
	if head.Snapshot != nil {
		d.regFile.Restore(head.Snapshot)
		d.floatRegFile.Restore(head.Snapshot)
	}
	d.bp.RecoverHistory(head.HistorySnapshot)

	nextPC := head.PC + 4
	if head.ActualTaken {
		nextPC = head.ActualTarget
	}
	d.pc = nextPC
	d.fetchBlocked = false
}

// ---- broadcast (CDB drain + ROB/RS/LSQ writeback) ----

func (d *Driver) broadcastStage() {
	for _, msg := range d.cdb.Drain() {
		entry := d.rob.At(msg.ROBIndex)
		if !entry.Valid || entry.SeqNo != msg.SeqNo {
			continue // stale message targeting a slot a squash already reused
		}
		entry.Result = msg.Value
		entry.Completed = true
		entry.Exception = msg.Fault
		if msg.IsBranch {
			entry.ActualTaken = msg.ActualTaken
			entry.ActualTarget = msg.ActualTarget
		}
		if msg.IsStore {
			entry.StoreAddr = msg.StoreAddr
			entry.StoreValue = msg.StoreValue
		}

		d.rsALU.BroadcastCDB(msg.ROBIndex, msg.Value)
		d.rsFPU.BroadcastCDB(msg.ROBIndex, msg.Value)
		d.rsLSU.BroadcastCDB(msg.ROBIndex, msg.Value)
		d.rsBranch.BroadcastCDB(msg.ROBIndex, msg.Value)
		d.regFile.BroadcastReady(msg.ROBIndex)
		d.floatRegFile.BroadcastReady(msg.ROBIndex)

		if msg.LSQIndex >= 0 {
			lsqEntry := d.lsq.At(msg.LSQIndex)
			lsqEntry.Completed = true
			if !msg.IsStore {
				lsqEntry.Value = msg.Value
			}
		}
	}
}

// ---- execute: tick every functional unit, enqueue completions ----

func (d *Driver) executeStage() {
	d.drainFU(d.fuALU)
	d.drainFU(d.fuFPU)
	d.drainFU(d.fuLSU)
	d.drainFU(d.fuBranch)
}

func (d *Driver) drainFU(pool *FUPool) {
	for _, u := range pool.Tick() {
		d.cdb.Enqueue(CDBMessage{
			ROBIndex: u.ROBIndex, SeqNo: u.SeqNo, Value: u.Result,
			IsBranch: u.IsBranch, ActualTaken: u.ActualTaken, ActualTarget: u.ActualTarget,
			IsStore: u.IsStore, StoreAddr: u.StoreAddr, StoreValue: u.StoreValue,
			LSQIndex: u.LSQIndex, Fault: u.Fault,
		})
		pool.Release(u.ROBIndex)
	}
}

// ---- issue: dispatch ready RS entries to free functional units ----

func (d *Driver) issueStage() {
	d.issueALU()
	d.issueFPU()
	d.issueBranch()
	d.issueLSU()
}

func (d *Driver) issueALU() {
	for _, idx := range d.rsALU.ReadyEntries() {
		unit := d.fuALU.FreeUnit()
		if unit < 0 {
			d.metrics.RecordStall("alu_fu_busy")
			break
		}
		e := d.rsALU.At(idx)
		d.fuALU.Dispatch(unit, e.ROBIndex, e.SeqNo, computeALU(e), 0)
		d.rsALU.Free(idx)
	}
}

func (d *Driver) issueFPU() {
	for _, idx := range d.rsFPU.ReadyEntries() {
		unit := d.fuFPU.FreeUnit()
		if unit < 0 {
			d.metrics.RecordStall("fpu_fu_busy")
			break
		}
		e := d.rsFPU.At(idx)
		d.fuFPU.Dispatch(unit, e.ROBIndex, e.SeqNo, computeFPU(e), 0)
		d.rsFPU.Free(idx)
	}
}

func (d *Driver) issueBranch() {
	for _, idx := range d.rsBranch.ReadyEntries() {
		unit := d.fuBranch.FreeUnit()
		if unit < 0 {
			d.metrics.RecordStall("branch_fu_busy")
			break
		}
		e := d.rsBranch.At(idx)
		taken := branchTaken(e.Op, e.Op1.Value, e.Op2.Value)
		target := branchTarget(e)
		var result uint64
		if e.Op == insts.OpJal {
			result = uint64(e.PC) + 4
		}
		d.fuBranch.Dispatch(unit, e.ROBIndex, e.SeqNo, result, 0)
		fu := d.fuBranch.At(unit)
		fu.IsBranch = true
		fu.ActualTaken = taken
		fu.ActualTarget = uint32(target)
		fu.LSQIndex = -1
		d.rsBranch.Free(idx)
	}
}

func (d *Driver) issueLSU() {
	ready := d.rsLSU.ReadyEntries()
	for _, idx := range ready {
		e := d.rsLSU.At(idx)
		addr := uint64(int64(e.Op1.Value) + int64(e.Imm))
		lsqEntry := d.lsq.At(e.LSQIndex)

		if insts.IsLoad(e.Op) {
			if d.lsq.OlderUnresolvedStore(e.SeqNo) {
				d.metrics.RecordStall("raw_hazard")
				continue
			}
			lsqEntry.AddrKnown = true
			lsqEntry.Addr = addr
			lsqEntry.Size = loadStoreSize

			fr, fval := d.lsq.Forward(e.SeqNo, addr, loadStoreSize)
			if fr == ForwardPartialStall {
				d.metrics.RecordStall("raw_hazard")
				continue
			}
			unit := d.fuLSU.FreeUnit()
			if unit < 0 {
				d.metrics.RecordStall("lsu_fu_busy")
				continue
			}
			var result uint64
			var extra int
			var fault error
			if fr == ForwardHit {
				result = fval
			} else {
				result, extra, fault = d.doLoad(addr, e.PC, e.SeqNo)
			}
			d.fuLSU.Dispatch(unit, e.ROBIndex, e.SeqNo, result, extra)
			fu := d.fuLSU.At(unit)
			fu.LSQIndex = e.LSQIndex
			fu.Fault = fault
			d.rsLSU.Free(idx)
		} else {
			unit := d.fuLSU.FreeUnit()
			if unit < 0 {
				d.metrics.RecordStall("lsu_fu_busy")
				continue
			}
			lsqEntry.AddrKnown = true
			lsqEntry.Addr = addr
			lsqEntry.Size = loadStoreSize
			lsqEntry.Value = e.Op2.Value
			d.fuLSU.Dispatch(unit, e.ROBIndex, e.SeqNo, 0, 0)
			fu := d.fuLSU.At(unit)
			fu.IsStore = true
			fu.StoreAddr = addr
			fu.StoreValue = e.Op2.Value
			fu.LSQIndex = e.LSQIndex
			d.rsLSU.Free(idx)
		}
	}
}

func (d *Driver) doLoad(addr uint64, pc uint32, seqNo uint64) (value uint64, extraCycles int, fault error) {
	defer func() {
		if r := recover(); r != nil {
			if fe, ok := r.(*emu.FaultError); ok {
				fault = &Fault{Kind: FaultMemory, Addr: fe.Addr, PC: pc, SeqNo: seqNo}
				return
			}
			panic(r)
		}
	}()
	d.metrics.DCacheAccesses++
	res := d.dcache.Read(addr, loadStoreSize)
	if res.Hit {
		d.metrics.DCacheHits++
	} else {
		d.metrics.RecordStall("dcache_miss")
	}
	extraCycles = int(res.Latency) - d.cfg.LSU.Latency
	if extraCycles < 0 {
		extraCycles = 0
	}
	return res.Data, extraCycles, nil
}

func computeALU(e *RSEntry) uint64 {
	switch e.Op {
	case insts.OpAdd:
		return e.Op1.Value + e.Op2.Value
	case insts.OpAddi:
		return uint64(int64(e.Op1.Value) + int64(e.Imm))
	case insts.OpSub:
		return e.Op1.Value - e.Op2.Value
	case insts.OpMul:
		return e.Op1.Value * e.Op2.Value
	case insts.OpAnd:
		return e.Op1.Value & e.Op2.Value
	case insts.OpOr:
		return e.Op1.Value | e.Op2.Value
	case insts.OpXor:
		return e.Op1.Value ^ e.Op2.Value
	case insts.OpSll:
		return e.Op1.Value << uint(e.Imm)
	case insts.OpSrl:
		return e.Op1.Value >> uint(e.Imm)
	case insts.OpSlt:
		if int64(e.Op1.Value) < int64(e.Op2.Value) {
			return 1
		}
		return 0
	case insts.OpLi:
		return uint64(int64(e.Imm))
	case insts.OpLa:
		return uint64(e.Target)
	default:
		return 0
	}
}

func computeFPU(e *RSEntry) uint64 {
	v1 := math.Float64frombits(e.Op1.Value)
	v2 := math.Float64frombits(e.Op2.Value)
	switch e.Op {
	case insts.OpAddS:
		return math.Float64bits(v1 + v2)
	case insts.OpMulS:
		return math.Float64bits(v1 * v2)
	default:
		return 0
	}
}

func branchTaken(op insts.Op, v1, v2 uint64) bool {
	a, b := int64(v1), int64(v2)
	switch op {
	case insts.OpBeq:
		return a == b
	case insts.OpBne:
		return a != b
	case insts.OpBgt:
		return a > b
	case insts.OpBge:
		return a >= b
	case insts.OpBle:
		return a <= b
	case insts.OpBlt:
		return a < b
	default:
		return true // j, jal, jr are unconditional
	}
}

func branchTarget(e *RSEntry) uint64 {
	if e.Op == insts.OpJr {
		return e.Op1.Value
	}
	return uint64(e.Target)
}

// ---- front end: fetch, predict, rename, dispatch ----

func (d *Driver) frontEndStage() {
	if d.fetchBlocked || d.halted || d.fault != nil {
		return
	}
	if d.iCacheStall > 0 {
		d.iCacheStall--
		d.metrics.RecordStall("icache_miss")
		return
	}
	for i := 0; i < d.cfg.FetchWidth; i++ {
		if d.pc < d.textBase || d.pc >= d.programEnd() {
			break
		}
		idx := (d.pc - d.textBase) / 4
		in := d.program[idx]

		if !d.hasCapacityFor(in) {
			d.metrics.RecordStall(d.stallCauseFor(in))
			break
		}

		d.metrics.ICacheAccesses++
		res := d.icache.Read(uint64(d.pc), 4)
		if res.Hit {
			d.metrics.ICacheHits++
		} else if i == 0 {
			// Stall the whole packet until the miss resolves; later
			// slots in this cycle's fetch group are not attempted.
			d.iCacheStall = int(res.Latency) - 1
			d.metrics.RecordStall("icache_miss")
			return
		} else {
			break
		}

		var pred Prediction
		if insts.IsBranch(in.Op) {
			pred = d.bp.Predict(uint64(d.pc))
		}

		d.dispatch(in, pred)

		if insts.IsHalt(in.Op) {
			d.fetchBlocked = true
			d.pc += 4
			break
		}
		if insts.IsBranch(in.Op) && pred.Taken && pred.TargetKnown {
			// Redirect takes effect next cycle: remaining slots in this
			// fetch packet are dropped rather than fetched down the
			// predicted path early.
			d.pc = uint32(pred.Target)
			break
		}
		d.pc += 4
	}
}

func (d *Driver) hasCapacityFor(in *insts.Instruction) bool {
	if d.rob.Full() {
		return false
	}
	switch insts.ClassOf(in.Op) {
	case insts.ClassALU:
		return !d.rsALU.Full()
	case insts.ClassFPU:
		return !d.rsFPU.Full()
	case insts.ClassLSU:
		return !d.rsLSU.Full() && !d.lsq.Full()
	case insts.ClassBranch:
		return !d.rsBranch.Full()
	default:
		return true
	}
}

// stallCauseFor names the resource that blocked in from being placed.
func (d *Driver) stallCauseFor(in *insts.Instruction) string {
	if d.rob.Full() {
		return "rob_full"
	}
	if insts.ClassOf(in.Op) == insts.ClassLSU && d.lsq.Full() {
		return "lsq_full"
	}
	return "rs_full"
}

// destRegOf returns the architectural register an instruction writes,
// or -1 if it writes none. $ra is the implicit destination of jal;
// the assembler leaves Rd unset (-1) for jumps, so it is filled in here.
func destRegOf(in *insts.Instruction) int {
	switch in.Op {
	case insts.OpJal:
		return emu.RegRa
	case insts.OpSw, insts.OpBeq, insts.OpBne, insts.OpBgt, insts.OpBge, insts.OpBle, insts.OpBlt,
		insts.OpJ, insts.OpJr, insts.OpNop, insts.OpSyscall:
		return -1
	default:
		return int(in.Rd)
	}
}

func (d *Driver) readOperand(rf *RegisterFile, reg int) Operand {
	if reg < 0 {
		return Operand{Ready: true}
	}
	v, producer, ready := rf.Lookup(reg)
	return Operand{Value: v, Producer: producer, Ready: ready}
}

// operandsFor gathers (op1, op2) for in according to its class. sw
// repurposes Rd as the store-source register (see loader.assembleInstruction),
// so its "second operand" is an int-register read, not an immediate.
func (d *Driver) operandsFor(in *insts.Instruction, class insts.Class) (Operand, Operand) {
	switch class {
	case insts.ClassALU:
		op1 := d.readOperand(d.regFile, int(in.Rs1))
		switch in.Op {
		case insts.OpAddi, insts.OpLi, insts.OpLa, insts.OpSll, insts.OpSrl:
			return op1, Operand{Ready: true}
		default:
			return op1, d.readOperand(d.regFile, int(in.Rs2))
		}
	case insts.ClassFPU:
		return d.readOperand(d.floatRegFile, int(in.Rs1)), d.readOperand(d.floatRegFile, int(in.Rs2))
	case insts.ClassLSU:
		op1 := d.readOperand(d.regFile, int(in.Rs1))
		if insts.IsStore(in.Op) {
			return op1, d.readOperand(d.regFile, int(in.Rd))
		}
		return op1, Operand{Ready: true}
	case insts.ClassBranch:
		switch in.Op {
		case insts.OpJr:
			return d.readOperand(d.regFile, int(in.Rs1)), Operand{Ready: true}
		case insts.OpJ, insts.OpJal:
			return Operand{Ready: true}, Operand{Ready: true}
		default:
			return d.readOperand(d.regFile, int(in.Rs1)), d.readOperand(d.regFile, int(in.Rs2))
		}
	default:
		return Operand{Ready: true}, Operand{Ready: true}
	}
}

func (d *Driver) dispatch(in *insts.Instruction, pred Prediction) {
	class := insts.ClassOf(in.Op)
	destReg := destRegOf(in)

	robIdx := d.rob.Alloc(in, destReg)
	entry := d.rob.At(robIdx)

	var snap *Snapshot
	if insts.IsBranch(in.Op) {
		snap = BeginSnapshot()
		entry.PredictedTaken = pred.Taken
		entry.PredictedTarget = uint32(pred.Target)
		entry.HistorySnapshot = pred.HistorySnapshot
	}
	entry.Snapshot = snap

	rf := d.regFile
	if class == insts.ClassFPU {
		rf = d.floatRegFile
	}
	if destReg >= 0 {
		prevProducer, prevReady := rf.Rename(destReg, robIdx)
		if snap != nil {
			snap.RecordIfChanged(destReg, prevProducer, prevReady)
		}
		// Every older, still-unresolved branch must also be able to
		// undo this rename on a squash, not just the branch this
		// instruction happens to be (if any) — a conditional branch
		// with no destReg of its own otherwise never captures the
		// renames of the speculative instructions issued after it.
		for _, bIdx := range d.rob.LiveBranches() {
			if bIdx == robIdx {
				continue
			}
			if be := d.rob.At(bIdx); be.Snapshot != nil {
				be.Snapshot.RecordIfChanged(destReg, prevProducer, prevReady)
			}
		}
	}

	op1, op2 := d.operandsFor(in, class)
	target := in.Target

	switch class {
	case insts.ClassALU:
		d.rsALU.Alloc(RSEntry{ROBIndex: robIdx, SeqNo: in.SeqNo, Op: in.Op, Class: class, Op1: op1, Op2: op2, DestROB: robIdx, Imm: in.Imm, PC: in.PC, Target: target})
	case insts.ClassFPU:
		d.rsFPU.Alloc(RSEntry{ROBIndex: robIdx, SeqNo: in.SeqNo, Op: in.Op, Class: class, Op1: op1, Op2: op2, DestROB: robIdx, Imm: in.Imm, PC: in.PC})
	case insts.ClassBranch:
		d.rsBranch.Alloc(RSEntry{ROBIndex: robIdx, SeqNo: in.SeqNo, Op: in.Op, Class: class, Op1: op1, Op2: op2, DestROB: robIdx, Imm: in.Imm, PC: in.PC, Target: target})
	case insts.ClassLSU:
		kind := LSQLoad
		if insts.IsStore(in.Op) {
			kind = LSQStore
		}
		lsqIdx := d.lsq.Alloc(in.SeqNo, robIdx, kind)
		d.rsLSU.Alloc(RSEntry{ROBIndex: robIdx, SeqNo: in.SeqNo, Op: in.Op, Class: class, Op1: op1, Op2: op2, DestROB: robIdx, Imm: in.Imm, PC: in.PC, LSQIndex: lsqIdx})
	default:
		// ClassNone (nop, syscall): nothing to reserve; it completes
		// the moment it reaches commit.
		entry.Completed = true
	}
}
