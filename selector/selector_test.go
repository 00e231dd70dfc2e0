package selector

import (
	"encoding/json"
	"errors"

	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/plan"
	"github.com/zerbitx/ramlizer/spec"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// sequence is a Source returning its values in turn
type sequence struct {
	values []int
	next   int
}

func (s *sequence) Intn(n int) int {
	v := s.values[s.next%len(s.values)] % n
	s.next++
	return v
}

func examplesBody(names ...string) *spec.Body {
	body := &spec.Body{MediaType: "application/json"}
	for i, name := range names {
		body.Examples = append(body.Examples, &spec.Example{
			Name:            name,
			StructuredValue: map[string]interface{}{"id": i + 1},
		})
	}

	return body
}

func document() *spec.Document {
	return &spec.Document{Resources: []*spec.Resource{
		{
			CompleteRelativeURI: "/users",
			Methods: []*spec.Method{
				{
					Method: "get",
					Responses: []*spec.Response{
						{Code: "200", Bodies: []*spec.Body{examplesBody("default", "alt")}},
						{Code: "404", Bodies: []*spec.Body{{MediaType: "application/json", HasExample: true, Example: map[string]interface{}{"error": "missing"}}}},
					},
				},
				{
					Method: "post",
					Responses: []*spec.Response{
						{Code: "201", Bodies: []*spec.Body{{
							MediaType: "application/json",
							Properties: []*spec.Property{
								{Name: "id"},
								{Name: "status", Enum: []string{"a", "b"}},
							},
						}}},
					},
				},
			},
		},
		{
			CompleteRelativeURI: "/pets",
			Methods: []*spec.Method{{
				Method: "get",
				Responses: []*spec.Response{
					{Code: "200", Bodies: []*spec.Body{examplesBody("cat", "dog", "fish")}},
				},
			}},
		},
	}}
}

func decode(res *Response) map[string]interface{} {
	var out map[string]interface{}
	Expect(json.Unmarshal(res.Body, &out)).To(Succeed())
	return out
}

var _ = Describe("Selector", func() {
	users := catalog.RouteKey{Method: "get", Route: "/users"}
	createUser := catalog.RouteKey{Method: "post", Route: "/users"}
	pets := catalog.RouteKey{Method: "get", Route: "/pets"}

	var (
		cat   *catalog.Catalog
		plans *plan.Store
		sel   *Selector
	)

	BeforeEach(func() {
		cat = catalog.Build([]*spec.Document{document()})
		plans = plan.Seeded(cat)
		sel = New(cat, plans, WithSource(NewSource(42)))
	})

	It("serves the planned example and switches after a reconfiguration", func() {
		res, err := sel.Select(users, "application/json")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(res.Status).To(Equal(200))
		Expect(res.MediaType).To(Equal("application/json"))
		Expect(res.Body).To(MatchJSON(`{"id":1}`))
		Expect(res.ExampleName).To(Equal("default"))
		Expect(res.Fallbacks).To(BeEmpty())

		plans.Set(users, "", "alt")

		res, err = sel.Select(users, "application/json")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(res.Body).To(MatchJSON(`{"id":2}`))
	})

	It("is deterministic while the planned example exists", func() {
		plans.Set(pets, "", "dog")

		for i := 0; i < 100; i++ {
			res, err := sel.Select(pets, "*/*")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Body).To(MatchJSON(`{"id":2}`))
		}
	})

	It("draws unknown example names from the declared set only", func() {
		plans.Set(pets, "", "parrot")

		seen := map[string]bool{}
		for i := 0; i < 300; i++ {
			res, err := sel.Select(pets, "")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.ExampleName).To(BeElementOf("cat", "dog", "fish"))
			Expect(res.Fallbacks).To(ConsistOf(FallbackRandomExample))

			Expect(decode(res)["id"]).To(BeElementOf(1.0, 2.0, 3.0))
			seen[res.ExampleName] = true
		}

		Expect(seen).To(HaveLen(3))
	})

	It("uses the injected source for random draws", func() {
		plans.Set(pets, "", "parrot")
		sel = New(cat, plans, WithSource(&sequence{values: []int{2, 0}}))

		first, _ := sel.Select(pets, "")
		second, _ := sel.Select(pets, "")

		Expect(first.ExampleName).To(Equal("fish"))
		Expect(second.ExampleName).To(Equal("cat"))
	})

	It("serves single examples as declared", func() {
		plans.Set(users, "404", "")

		res, err := sel.Select(users, "application/json")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(res.Status).To(Equal(404))
		Expect(res.StatusCode).To(Equal("404"))
		Expect(res.Body).To(MatchJSON(`{"error":"missing"}`))
	})

	It("synthesizes bodies from properties", func() {
		for i := 0; i < 50; i++ {
			res, err := sel.Select(createUser, "application/json")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res.Status).To(Equal(201))

			body := decode(res)
			Expect(body).To(HaveKeyWithValue("id", ""))
			Expect(body["status"]).To(BeElementOf("a", "b"))
		}
	})

	It("serves the first alternative when the planned code is not cataloged", func() {
		plans.Set(users, "503", "")

		res, err := sel.Select(users, "application/json")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(res.Status).To(Equal(200))
		Expect(res.Body).To(MatchJSON(`{"id":1}`))
		Expect(res.Fallbacks).To(ConsistOf(FallbackUnknownStatus))
	})

	It("serves the first alternative when the route was never planned", func() {
		sel = New(cat, plan.NewStore(), WithSource(&sequence{values: []int{1}}))

		res, err := sel.Select(users, "application/json")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(res.Status).To(Equal(200))
		Expect(res.Body).To(MatchJSON(`{"id":2}`))
		Expect(res.Fallbacks).To(ConsistOf(FallbackUnplanned, FallbackRandomExample))
	})

	It("rejects routes that are not cataloged", func() {
		_, err := sel.Select(catalog.RouteKey{Method: "delete", Route: "/users"}, "")
		Expect(err).To(MatchError(ErrNotCataloged))
	})

	Context("nothing offered is acceptable", func() {
		It("fails without a body by default", func() {
			res, err := sel.Select(users, "text/plain")

			Expect(res).To(BeNil())

			var notAcceptable *NotAcceptableError
			Expect(errors.As(err, &notAcceptable)).To(BeTrue())
			Expect(notAcceptable.Accept).To(Equal("text/plain"))
			Expect(notAcceptable.Offered).To(Equal([]string{"application/json"}))
		})

		It("serves the first offered type when lenient", func() {
			sel = New(cat, plans, WithLenientNegotiation())

			res, err := sel.Select(users, "text/plain")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(res.MediaType).To(Equal("application/json"))
			Expect(res.Fallbacks).To(ConsistOf(FallbackFirstMediaType))
		})
	})
})
