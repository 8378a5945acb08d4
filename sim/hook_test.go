package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = NewHookableBase()
		pos = &HookPos{Name: "Test"}
	})

	It("should start without hooks", func() {
		Expect(base.NumHooks()).To(Equal(0))

		base.InvokeHook(HookCtx{Pos: pos})
	})

	It("should invoke hooks in registration order", func() {
		var order []int

		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))

		base.InvokeHook(HookCtx{Pos: pos})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(order).To(Equal([]int{1, 2}))
	})

	It("should pass the context through", func() {
		var got HookCtx

		base.AcceptHook(HookFunc(func(ctx HookCtx) { got = ctx }))

		base.InvokeHook(HookCtx{
			Domain: base,
			Pos:    pos,
			Item:   42,
			Detail: "detail",
		})

		Expect(got.Domain).To(BeIdenticalTo(base))
		Expect(got.Pos).To(BeIdenticalTo(pos))
		Expect(got.Item).To(Equal(42))
		Expect(got.Detail).To(Equal("detail"))
	})
})
