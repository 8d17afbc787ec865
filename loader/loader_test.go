package loader_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/oomsim/insts"
	"github.com/sarchlab/oomsim/loader"
)

var _ = Describe("Assemble", func() {
	It("assembles a tight RAW chain", func() {
		src := `
.text
main:
	li $t0, 1
	addi $t1, $t0, 1
	addi $t2, $t1, 1
	addi $t3, $t2, 1
	li $v0, 10
	syscall
`
		prog, err := loader.Assemble(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions).To(HaveLen(6))
		Expect(prog.Instructions[0].Op).To(Equal(insts.OpLi))
		Expect(prog.EntryPC).To(Equal(prog.TextBase))
	})

	It("resolves a forward branch label", func() {
		src := `
.text
main:
	beq $zero, $zero, done
	addi $t0, $zero, 1
done:
	li $v0, 10
	syscall
`
		prog, err := loader.Assemble(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(prog.Instructions[0].Target).To(Equal(prog.Labels["done"]))
	})

	It("rejects an unknown opcode", func() {
		_, err := loader.Assemble(".text\nmain:\n\tfrobnicate $t0, $t1, $t2\n")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unresolved label", func() {
		_, err := loader.Assemble(".text\nmain:\n\tj nowhere\n")
		Expect(err).To(HaveOccurred())
	})

	It("lays out .data directives", func() {
		src := `
.data
values: .word 1, 2, 3
.text
main:
	li $v0, 10
	syscall
`
		prog, err := loader.Assemble(src)
		Expect(err).NotTo(HaveOccurred())
		addr := prog.Labels["values"]
		Expect(prog.Memory[addr]).To(Equal(byte(1)))
		Expect(prog.Memory[addr+4]).To(Equal(byte(2)))
	})
})
