package plan

import (
	"io/ioutil"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/catalog"
	"github.com/zerbitx/ramlizer/spec"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	key := catalog.RouteKey{Method: "get", Route: "/users"}
	var store *Store

	BeforeEach(func() {
		store = NewStore()
	})

	It("reports unplanned routes without failing", func() {
		_, ok := store.Get(key)
		Expect(ok).To(BeFalse())
	})

	It("returns exactly what was set when both fields are supplied", func() {
		store.Set(key, "500", "broken")

		entry, ok := store.Get(key)
		Expect(ok).To(BeTrue())
		Expect(entry).To(Equal(Entry{StatusCode: "500", ExampleName: "broken"}))
	})

	It("leaves the other field untouched on partial updates", func() {
		store.Seed(key, Entry{StatusCode: "200", ExampleName: "default"})

		previous := store.Set(key, "", "alt")
		Expect(previous).To(Equal(Entry{StatusCode: "200", ExampleName: "default"}))

		entry, _ := store.Get(key)
		Expect(entry).To(Equal(Entry{StatusCode: "200", ExampleName: "alt"}))

		store.Set(key, "404", "")
		entry, _ = store.Get(key)
		Expect(entry).To(Equal(Entry{StatusCode: "404", ExampleName: "alt"}))
	})

	It("reports none for fields never set", func() {
		previous := store.Set(key, "201", "")
		Expect(previous).To(Equal(Entry{StatusCode: None, ExampleName: None}))

		previous = store.Set(key, "", "created")
		Expect(previous).To(Equal(Entry{StatusCode: "201", ExampleName: None}))
	})

	It("does not plan anything when no field is supplied", func() {
		store.Set(key, "", "")

		_, ok := store.Get(key)
		Expect(ok).To(BeFalse())
		Expect(store.Entries()).To(BeEmpty())
	})

	It("lists entries in the order they were first planned", func() {
		other := catalog.RouteKey{Method: "post", Route: "/users"}
		store.Set(other, "201", "")
		store.Set(key, "200", "")
		store.Set(other, "409", "")

		Expect(store.Entries()).To(Equal([]KeyedEntry{
			{Method: "post", Route: "/users", Entry: Entry{StatusCode: "409"}},
			{Method: "get", Route: "/users", Entry: Entry{StatusCode: "200"}},
		}))
	})

	It("never exposes a half applied update", func() {
		store.Seed(key, Entry{StatusCode: "200", ExampleName: "ok"})

		var wg sync.WaitGroup
		stop := make(chan struct{})
		torn := make(chan Entry, 1)

		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}

					entry, _ := store.Get(key)
					if (entry.StatusCode == "200") != (entry.ExampleName == "ok") {
						select {
						case torn <- entry:
						default:
						}
						return
					}
				}
			}()
		}

		for i := 0; i < 2000; i++ {
			if i%2 == 0 {
				store.Set(key, "500", "boom")
			} else {
				store.Set(key, "200", "ok")
			}
		}

		close(stop)
		wg.Wait()

		Expect(torn).To(BeEmpty())
	})

	Describe("Seeded", func() {
		It("plans the default of every cataloged route", func() {
			logger := logrus.New()
			logger.SetOutput(ioutil.Discard)

			doc, err := spec.LoadFile("../fixtures/users.raml")
			Expect(err).ShouldNot(HaveOccurred())

			seeded := Seeded(catalog.Build([]*spec.Document{doc}, catalog.WithLogger(logger)))

			Expect(seeded.Entries()).To(Equal([]KeyedEntry{
				{Method: "get", Route: "/users", Entry: Entry{StatusCode: "200", ExampleName: "default"}},
				{Method: "post", Route: "/users", Entry: Entry{StatusCode: "201", ExampleName: None}},
				{Method: "get", Route: "/users/{id}", Entry: Entry{StatusCode: "200", ExampleName: None}},
				{Method: "get", Route: "/reports", Entry: Entry{StatusCode: "200", ExampleName: None}},
			}))
		})
	})
})

var _ = Describe("Reconfigure", func() {
	var store *Store

	BeforeEach(func() {
		store = NewStore()
		store.Seed(catalog.RouteKey{Method: "get", Route: "/users"}, Entry{StatusCode: "200", ExampleName: "default"})
	})

	It("echoes only the supplied fields with their previous values", func() {
		outcome := store.Reconfigure(Reconfiguration{Method: "get", Route: "/users", NextExampleName: "alt"})

		Expect(outcome).To(Equal(Outcome{Route: "/users", NextExampleName: "alt", OldExampleName: "default"}))
	})

	It("is idempotent per field", func() {
		r := Reconfiguration{Method: "get", Route: "/users", NextResponseCode: "404", NextExampleName: "missing"}

		store.Reconfigure(r)
		second := store.Reconfigure(r)

		Expect(second.OldResponseCode).To(Equal(second.NextResponseCode))
		Expect(second.OldExampleName).To(Equal(second.NextExampleName))

		entry, _ := store.Get(r.Key())
		Expect(entry).To(Equal(Entry{StatusCode: "404", ExampleName: "missing"}))
	})

	It("accepts routes that were never cataloged", func() {
		outcome := store.Reconfigure(Reconfiguration{Method: "put", Route: "/nowhere", NextResponseCode: "418"})

		Expect(outcome).To(Equal(Outcome{Route: "/nowhere", NextResponseCode: "418", OldResponseCode: None}))
	})
})
