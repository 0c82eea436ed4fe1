package stage_test

import (
	"contraflow/domain/stage"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Stages", func() {
	var stages stage.Stages

	BeforeEach(func() {
		stages = stage.Stages{
			{Name: "Legal Review", Type: stage.TypeReview, OwnerRole: "legal_counsel"},
			{Name: "Approval", Type: stage.TypeApproval, OwnerRole: "legal_admin"},
			{Name: "Sign", Type: stage.TypeSigning, OwnerRole: "contract_manager"},
			{Name: "Countersign", Type: stage.TypeCountersign, OwnerRole: "legal_admin"},
		}
	})

	Describe("Find", func() {
		It("should return the stage and its declared position", func() {
			s, idx, found := stages.Find("Sign")
			Expect(found).To(BeTrue())
			Expect(idx).To(Equal(2))
			Expect(s.Type).To(Equal(stage.TypeSigning))
		})
		It("should report unknown names", func() {
			_, idx, found := stages.Find("Shipping")
			Expect(found).To(BeFalse())
			Expect(idx).To(Equal(-1))
		})
	})

	Describe("NextOf and PrevOf", func() {
		It("should advance by declared order", func() {
			next, ok := stages.NextOf(0)
			Expect(ok).To(BeTrue())
			Expect(next.Name).To(Equal("Approval"))
		})
		It("should report no next stage at the end", func() {
			_, ok := stages.NextOf(len(stages) - 1)
			Expect(ok).To(BeFalse())
		})
		It("should step back one stage", func() {
			prev, ok := stages.PrevOf(2)
			Expect(ok).To(BeTrue())
			Expect(prev.Name).To(Equal("Approval"))
		})
		It("should stay at the first stage when stepping back from it", func() {
			prev, ok := stages.PrevOf(0)
			Expect(ok).To(BeTrue())
			Expect(prev.Name).To(Equal("Legal Review"))
		})
	})

	Describe("Validate", func() {
		It("should accept a well formed list", func() {
			Expect(stages.Validate()).To(BeNil())
		})
		It("should reject empty lists", func() {
			Expect(stage.Stages{}.Validate()).ToNot(BeNil())
		})
		It("should reject duplicated stage names", func() {
			dup := append(stages, stage.Stage{Name: "Sign", Type: stage.TypeSigning})
			Expect(dup.Validate()).ToNot(BeNil())
		})
		It("should reject unknown stage types", func() {
			bad := stage.Stages{{Name: "X", Type: stage.Type("shipping")}}
			Expect(bad.Validate()).ToNot(BeNil())
		})
	})

	Describe("Type", func() {
		It("should treat signing and countersign as signing types", func() {
			Expect(stage.TypeSigning.IsSigningType()).To(BeTrue())
			Expect(stage.TypeCountersign.IsSigningType()).To(BeTrue())
			Expect(stage.TypeReview.IsSigningType()).To(BeFalse())
			Expect(stage.TypeApproval.IsSigningType()).To(BeFalse())
		})
	})

	Describe("Action", func() {
		It("should accept only the closed action set", func() {
			Expect(stage.ActionApprove.IsValid()).To(BeTrue())
			Expect(stage.ActionReject.IsValid()).To(BeTrue())
			Expect(stage.ActionRework.IsValid()).To(BeTrue())
			Expect(stage.ActionSkip.IsValid()).To(BeTrue())
			Expect(stage.Action("merge").IsValid()).To(BeFalse())
		})
	})
})
