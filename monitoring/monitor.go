// Package monitoring serves the live state of a cache simulation over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/cache/addressing"
	"github.com/sarchlab/cachesim/sim/hooking"
)

// Monitor turns a simulation into a server that reports its progress. It
// only learns about the simulator through the access hook, so it never reads
// the cache while the simulator is running.
type Monitor struct {
	portNumber      int
	openBrowser     bool
	profileDuration time.Duration

	lock       sync.Mutex
	name       string
	geometry   addressing.Geometry
	stats      cache.Stats
	lastAccess cache.AccessResult
	bar        *ProgressBar

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// StatsSnapshot is the payload of the stats endpoint.
type StatsSnapshot struct {
	Name        string
	NumAccesses uint64
	NumHits     uint64
	NumMisses   uint64
	HitRate     float64
	LastAddress uint64
	LastSet     int
	LastOutcome string
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		logrus.Warnf("Port number %d is assigned to the monitoring server, "+
			"which is not allowed. Using a random port instead.", portNumber)

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithBrowser(openBrowser bool) *Monitor {
	m.openBrowser = openBrowser
	return m
}

// RegisterSimulator hooks the monitor to a simulator that is about to
// process numAccesses addresses.
func (m *Monitor) RegisterSimulator(s *cache.Simulator, numAccesses uint64) {
	m.lock.Lock()
	m.name = s.Name()
	m.geometry = s.Geometry()
	m.stats = s.Stats()
	m.lock.Unlock()

	m.bar = m.CreateProgressBar(s.Name(), numAccesses)

	s.AcceptHook(m)
}

// Func updates the live statistics after each access.
func (m *Monitor) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	result := ctx.Item.(cache.AccessResult)

	m.lock.Lock()
	m.stats.NumAccesses++
	if result.Outcome == cache.Hit {
		m.stats.NumHits++
	} else {
		m.stats.NumMisses++
	}
	m.lastAccess = result
	m.lock.Unlock()

	if m.bar != nil {
		m.bar.IncrementFinished(1)
	}
}

// Stats returns a consistent copy of the live statistics.
func (m *Monitor) Stats() StatsSnapshot {
	m.lock.Lock()
	defer m.lock.Unlock()

	return StatsSnapshot{
		Name:        m.name,
		NumAccesses: m.stats.NumAccesses,
		NumHits:     m.stats.NumHits,
		NumMisses:   m.stats.NumMisses,
		HitRate:     m.stats.HitRate(),
		LastAddress: m.lastAccess.Address,
		LastSet:     m.lastAccess.SetIndex,
		LastOutcome: m.lastAccess.Outcome.String(),
	}
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Complete removes the progress bar of the registered simulator.
func (m *Monitor) Complete() {
	if m.bar != nil {
		m.CompleteProgressBar(m.bar)
	}
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("start monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)

	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Monitoring server stopped: %v", err)
		}
	}()

	logrus.Infof("Monitoring simulation with %s", url)

	if m.openBrowser {
		err = browser.OpenURL(url + "/api/stats")
		if err != nil {
			logrus.Warnf("Cannot open browser: %v", err)
		}
	}

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/geometry", m.listGeometry)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	return r
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := m.Stats()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(1)

	err := serializer.Serialize(w)
	if err != nil {
		httpError(w, err)
	}
}

type geometryRsp struct {
	TotalBytes    int `json:"total_bytes"`
	LineBytes     int `json:"line_bytes"`
	Associativity int `json:"associativity"`
	AddressWidth  int `json:"address_width"`
	NumSets       int `json:"num_sets"`
	OffsetBits    int `json:"offset_bits"`
	SetIndexBits  int `json:"set_index_bits"`
	TagBits       int `json:"tag_bits"`
}

func (m *Monitor) listGeometry(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	g := m.geometry
	m.lock.Unlock()

	writeJSON(w, geometryRsp{
		TotalBytes:    g.TotalBytes,
		LineBytes:     g.LineBytes,
		Associativity: g.Associativity,
		AddressWidth:  g.AddressWidth,
		NumSets:       g.NumSets,
		OffsetBits:    g.OffsetBits,
		SetIndexBits:  g.SetIndexBits,
		TagBits:       g.TagBits,
	})
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	views := make([]progressBarView, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		views = append(views, b.view())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, views)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		httpError(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		httpError(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		httpError(w, err)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		httpError(w, err)
		return
	}

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		httpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	if err != nil {
		logrus.Warnf("Monitor cannot write response: %v", err)
	}
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
