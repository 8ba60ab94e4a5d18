package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/mem/cache"
)

func get(m *Monitor, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	m.router().ServeHTTP(rec, req)

	return rec
}

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
		s *cache.Simulator
	)

	BeforeEach(func() {
		var err error

		m = NewMonitor()
		s, err = cache.MakeBuilder().
			WithTotalByteSize(16).
			WithLineSize(4).
			WithWayAssociativity(2).
			Build("L1")
		Expect(err).ToNot(HaveOccurred())

		m.RegisterSimulator(s, 3)
	})

	It("should follow the simulator through the hook", func() {
		_, err := s.Replay([]uint64{0x0000, 0x0004, 0x0000})
		Expect(err).ToNot(HaveOccurred())

		stats := m.Stats()
		Expect(stats.Name).To(Equal("L1"))
		Expect(stats.NumAccesses).To(Equal(uint64(3)))
		Expect(stats.NumHits).To(Equal(uint64(1)))
		Expect(stats.NumMisses).To(Equal(uint64(2)))
		Expect(stats.LastOutcome).To(Equal("HIT"))
		Expect(m.bar.Fraction()).To(BeNumerically("==", 1))
	})

	It("should serve the stats", func() {
		_, err := s.Access(0x0008)
		Expect(err).ToNot(HaveOccurred())

		rec := get(m, "/api/stats")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
	})

	It("should serve the geometry", func() {
		rec := get(m, "/api/geometry")

		var rsp geometryRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.NumSets).To(Equal(2))
		Expect(rsp.TagBits).To(Equal(13))
	})

	It("should serve and complete progress bars", func() {
		_, err := s.Access(0x0008)
		Expect(err).ToNot(HaveOccurred())

		var bars []progressBarView
		Expect(json.Unmarshal(get(m, "/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("L1"))
		Expect(bars[0].Finished).To(Equal(uint64(1)))
		Expect(bars[0].Total).To(Equal(uint64(3)))

		m.Complete()

		Expect(json.Unmarshal(get(m, "/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(BeEmpty())
	})

	It("should serve resource usage", func() {
		rec := get(m, "/api/resource")

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should collect a CPU profile", func() {
		m.profileDuration = 10 * time.Millisecond

		rec := get(m, "/api/profile")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Valid(rec.Body.Bytes())).To(BeTrue())
	})

	It("should ignore low port numbers", func() {
		m.WithPortNumber(80)

		Expect(m.portNumber).To(Equal(0))
	})

	It("should start and stop the server", func() {
		url, err := m.StartServer()
		Expect(err).ToNot(HaveOccurred())

		rsp, err := http.Get(url + "/api/geometry")
		Expect(err).ToNot(HaveOccurred())
		body, err := io.ReadAll(rsp.Body)
		rsp.Body.Close()
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`"num_sets":2`))

		Expect(m.StopServer(context.Background())).To(Succeed())
	})
})
