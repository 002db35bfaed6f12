package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-forward/engine/logger"
)

// Stats summarizes the frames of one reporting interval.
type Stats struct {
	Frames      int
	FPS         float64
	AvgFrame    time.Duration
	MaxFrame    time.Duration
	HeapMB      float64
	AllocRateMB float64
	NumGC       uint32
	LastPause   time.Duration
	MaxPause    time.Duration
	SysMB       float64
}

// Profiler tracks frame rate, frame time and memory statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	now            func() time.Time
	frameCount     int
	frameTotal     time.Duration
	frameMax       time.Duration
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	quiet          bool
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the frame's duration.
// Logs performance statistics when the update interval has elapsed.
//
// Parameters:
//   - frameTime: how long the frame took
//
// Returns:
//   - Stats: the interval's statistics, valid when reported is true
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(frameTime time.Duration) (Stats, bool) {
	p.frameCount++
	p.frameTotal += frameTime
	p.frameMax = max(p.frameMax, frameTime)

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return Stats{}, false
	}

	runtime.ReadMemStats(&p.memStats)
	stats := Stats{
		Frames:   p.frameCount,
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		AvgFrame: p.frameTotal / time.Duration(p.frameCount),
		MaxFrame: p.frameMax,
		HeapMB:   float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:    float64(p.memStats.Sys) / 1024 / 1024,
		NumGC:    p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	stats.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses.
	if gcCount := p.memStats.NumGC; gcCount > 0 {
		stats.LastPause = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			stats.MaxPause = max(stats.MaxPause, time.Duration(p.memStats.PauseNs[i%256]))
		}
	}

	if !p.quiet {
		logger.Info("frame stats",
			"fps", stats.FPS,
			"avg", stats.AvgFrame,
			"max", stats.MaxFrame,
			"heapMB", stats.HeapMB,
			"allocMBps", stats.AllocRateMB,
			"gc", stats.NumGC,
			"lastPause", stats.LastPause,
			"maxPause", stats.MaxPause,
			"sysMB", stats.SysMB,
		)
	}

	p.frameCount = 0
	p.frameTotal = 0
	p.frameMax = 0
	p.lastTime = currentTime
	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return stats, true
}
