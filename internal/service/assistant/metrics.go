package assistant

import "time"

type Metrics struct {
	Processed       int64     `json:"processed"`
	Failed          int64     `json:"failed"`
	Fallbacks       int64     `json:"fallbacks"`
	Retries         int64     `json:"retries"`
	AvgLatencyMs    float64   `json:"avg_latency_ms"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

// Metrics returns a snapshot of the processing counters.
func (p *Processor) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

func (p *Processor) record(ok, fallback bool, start time.Time) {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	m := &p.metrics
	m.LastProcessedAt = now
	if !ok {
		m.Failed++
		return
	}

	m.Processed++
	if fallback {
		m.Fallbacks++
	}
	// running mean over successful answers
	latency := float64(now.Sub(start).Milliseconds())
	m.AvgLatencyMs += (latency - m.AvgLatencyMs) / float64(m.Processed)
}
