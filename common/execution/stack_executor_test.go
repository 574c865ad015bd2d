package execution_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/scusemua/notebook-kernel/common/execution"
)

var _ = Describe("StackExecutor", func() {
	var executor *execution.StackExecutor

	BeforeEach(func() {
		executor = execution.NewStackExecutor()
	})

	DescribeTable("evaluating code",
		func(code string, expected string) {
			output, err := executor.Execute(context.Background(), code)
			Expect(err).ToNot(HaveOccurred())
			Expect(output).To(Equal(expected))
		},
		Entry("addition", "+ 1 1", "2"),
		Entry("subtraction takes the top of the stack first", "- 1 3", "2"),
		Entry("nested operators", "* 2 + 1 2", "6"),
		Entry("division", "/ 4 10", "2.5"),
		Entry("decimals", "+ 0.1 0.2", "0.3"),
		Entry("duplicate", ". 3", "3\n3"),
		Entry("swap", "- : 1 3", "-2"),
		Entry("drop", "; 1 2", "2"),
		Entry("several lines share the stack", "1\n2\n+", "3"),
		Entry("comments", "+ 1 1 # two", "2"),
		Entry("empty code", "", ""),
	)

	DescribeTable("reporting errors",
		func(code string, name string) {
			_, err := executor.Execute(context.Background(), code)
			Expect(err).To(HaveOccurred())

			var execErr *execution.Error
			Expect(errors.As(err, &execErr)).To(BeTrue())
			Expect(execErr.Name).To(Equal(name))
			Expect(execErr.Traceback).ToNot(BeEmpty())
		},
		Entry("unknown word", "+ 1 x", execution.ErrNameSyntax),
		Entry("missing operand", "+ 1", execution.ErrNameStackUnderflow),
		Entry("duplicate of nothing", ".", execution.ErrNameStackUnderflow),
		Entry("division by zero", "/ 0 1", execution.ErrNameZeroDivision),
	)

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := executor.Execute(ctx, "+ 1 1")
		Expect(err).To(MatchError(execution.ErrExecutionCancelled))
		Expect(execution.AsError(err).Name).To(Equal(execution.ErrNameCancelled))
	})

	It("should start every execution from an empty stack", func() {
		_, err := executor.Execute(context.Background(), "1 2 3")
		Expect(err).ToNot(HaveOccurred())

		output, err := executor.Execute(context.Background(), "4")
		Expect(err).ToNot(HaveOccurred())
		Expect(output).To(Equal("4"))
	})
})

var _ = Describe("Execution", func() {
	It("should wrap arbitrary errors", func() {
		err := execution.AsError(errors.New("boom"))
		Expect(err.Name).To(Equal(execution.ErrNameExecution))
		Expect(err.Value).To(Equal("boom"))
		Expect(err.Error()).To(Equal("ExecutionError: boom"))
	})

	It("should record the outcome of an execution", func() {
		exec := execution.NewExecution("msg", "+ 1 1", 1, false)
		Expect(exec.State).To(Equal(execution.Pending))

		exec.Complete("2")
		Expect(exec.State).To(Equal(execution.Completed))
		Expect(exec.Output).To(Equal("2"))

		exec.Fail(execution.NewError(execution.ErrNameSyntax, "bad"))
		Expect(exec.State).To(Equal(execution.Erred))
	})

	It("should adapt functions", func() {
		executor := execution.ExecutorFunc(func(_ context.Context, code string) (string, error) {
			return code + "!", nil
		})
		Expect(executor.Execute(context.Background(), "hi")).To(Equal("hi!"))
	})
})
