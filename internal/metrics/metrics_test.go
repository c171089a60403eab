package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.ReactorTickDuration == nil {
		t.Error("ReactorTickDuration not initialized")
	}
	if m.RequestQueueDepth == nil {
		t.Error("RequestQueueDepth not initialized")
	}
	if m.ResponseQueueDepth == nil {
		t.Error("ResponseQueueDepth not initialized")
	}
	if m.WorkerBusy == nil {
		t.Error("WorkerBusy not initialized")
	}
	if m.WorkerIdle == nil {
		t.Error("WorkerIdle not initialized")
	}
	if m.FramesParsedTotal == nil {
		t.Error("FramesParsedTotal not initialized")
	}
	if m.FramesRejectedTotal == nil {
		t.Error("FramesRejectedTotal not initialized")
	}
	if m.ResponsesByErrorCode == nil {
		t.Error("ResponsesByErrorCode not initialized")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return pb.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var pb dto.Metric
	if err := g.Write(&pb); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return pb.GetGauge().GetValue()
}

func TestRecordingMethodsIncrementCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.WorkerStarted()
	m.WorkerStarted()
	m.WorkerStopped()
	m.FrameParsed()
	m.FrameRejected()
	m.SetRequestQueueDepth(3)
	m.SetResponseQueueDepth(5)
	m.ObserveTick(0.001)
	m.ResponseSent("OK")
	m.ResponseSent("OK")
	m.ResponseSent("FUNCTION_NOT_FOUND")

	if got := counterValue(t, m.WorkerBusy); got != 2 {
		t.Errorf("WorkerBusy = %v, want 2", got)
	}
	if got := counterValue(t, m.WorkerIdle); got != 1 {
		t.Errorf("WorkerIdle = %v, want 1", got)
	}
	if got := counterValue(t, m.FramesParsedTotal); got != 1 {
		t.Errorf("FramesParsedTotal = %v, want 1", got)
	}
	if got := counterValue(t, m.FramesRejectedTotal); got != 1 {
		t.Errorf("FramesRejectedTotal = %v, want 1", got)
	}
	if got := gaugeValue(t, m.RequestQueueDepth); got != 3 {
		t.Errorf("RequestQueueDepth = %v, want 3", got)
	}
	if got := gaugeValue(t, m.ResponseQueueDepth); got != 5 {
		t.Errorf("ResponseQueueDepth = %v, want 5", got)
	}
	if got := counterValue(t, m.ResponsesByErrorCode.WithLabelValues("OK")); got != 2 {
		t.Errorf("ResponsesByErrorCode[OK] = %v, want 2", got)
	}
	if got := counterValue(t, m.ResponsesByErrorCode.WithLabelValues("FUNCTION_NOT_FOUND")); got != 1 {
		t.Errorf("ResponsesByErrorCode[FUNCTION_NOT_FOUND] = %v, want 1", got)
	}
}

func TestNilMetricsRecordingMethodsDoNotPanic(t *testing.T) {
	var m *Metrics

	m.WorkerStarted()
	m.WorkerStopped()
	m.FrameParsed()
	m.FrameRejected()
	m.SetRequestQueueDepth(1)
	m.SetResponseQueueDepth(1)
	m.ObserveTick(0.1)
	m.ResponseSent("OK")
}
