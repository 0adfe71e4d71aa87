// Package telemetry exposes the progress of a training run as prometheus metrics.
package telemetry

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pggan-go/pggan/internal/core"
	"github.com/pggan-go/pggan/internal/trainer"
)

// Collector implements prometheus.Collector over the latest training step.
// ObserveStep runs on the training loop while Collect runs on the HTTP
// server, so the snapshot is guarded by a mutex.
type Collector struct {
	startTime time.Time
	version   string

	// Metric descriptors
	infoDesc         *prometheus.Desc
	uptimeDesc       *prometheus.Desc
	stepsDesc        *prometheus.Desc
	imagesDesc       *prometheus.Desc
	tickDesc         *prometheus.Desc
	epochDesc        *prometheus.Desc
	resolutionDesc   *prometheus.Desc
	imageSizeDesc    *prometheus.Desc
	phaseDesc        *prometheus.Desc
	learningRateDesc *prometheus.Desc
	lossDesc         *prometheus.Desc
	completeDesc     *prometheus.Desc
	scoreDesc        *prometheus.Desc
	noiseDesc        *prometheus.Desc
	stepSecondsDesc  *prometheus.Desc

	mu    sync.RWMutex
	last  trainer.StepResult
	steps float64
}

// NewCollector creates a collector reporting version in pggan_info.
func NewCollector(version string) *Collector {
	return &Collector{
		startTime: time.Now(),
		version:   version,

		infoDesc: prometheus.NewDesc(
			"pggan_info",
			"PGGAN trainer build information",
			[]string{"version", "go_version"},
			nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"pggan_uptime_seconds",
			"Time since the trainer started",
			nil,
			nil,
		),
		stepsDesc: prometheus.NewDesc(
			"pggan_steps_total",
			"Training steps completed by this process",
			nil,
			nil,
		),
		imagesDesc: prometheus.NewDesc(
			"pggan_images_total",
			"Images consumed since the run began",
			nil,
			nil,
		),
		tickDesc: prometheus.NewDesc(
			"pggan_global_tick",
			"Current global tick",
			nil,
			nil,
		),
		epochDesc: prometheus.NewDesc(
			"pggan_epoch",
			"Current dataset epoch",
			nil,
			nil,
		),
		resolutionDesc: prometheus.NewDesc(
			"pggan_resolution",
			"Continuous resolution: level plus progress through the growth cycle",
			nil,
			nil,
		),
		imageSizeDesc: prometheus.NewDesc(
			"pggan_image_size_pixels",
			"Side length of the images currently trained on",
			nil,
			nil,
		),
		phaseDesc: prometheus.NewDesc(
			"pggan_phase",
			"Current training phase, 1 for the active phase",
			[]string{"phase"},
			nil,
		),
		learningRateDesc: prometheus.NewDesc(
			"pggan_learning_rate",
			"Current learning rate",
			nil,
			nil,
		),
		lossDesc: prometheus.NewDesc(
			"pggan_loss",
			"Loss of the last step by network",
			[]string{"network"},
			nil,
		),
		completeDesc: prometheus.NewDesc(
			"pggan_fade_in_complete_percent",
			"Fade-in progress by network",
			[]string{"network"},
			nil,
		),
		scoreDesc: prometheus.NewDesc(
			"pggan_discriminator_score",
			"Mean discriminator output of the last step by input",
			[]string{"input"},
			nil,
		),
		noiseDesc: prometheus.NewDesc(
			"pggan_noise_strength",
			"Strength of the adaptive noise added to real images",
			nil,
			nil,
		),
		stepSecondsDesc: prometheus.NewDesc(
			"pggan_step_duration_seconds",
			"Wall time of the last step",
			nil,
			nil,
		),
	}
}

// ObserveStep records the result of a step.
func (c *Collector) ObserveStep(res trainer.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = res
	c.steps++
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.uptimeDesc
	ch <- c.stepsDesc
	ch <- c.imagesDesc
	ch <- c.tickDesc
	ch <- c.epochDesc
	ch <- c.resolutionDesc
	ch <- c.imageSizeDesc
	ch <- c.phaseDesc
	ch <- c.learningRateDesc
	ch <- c.lossDesc
	ch <- c.completeDesc
	ch <- c.scoreDesc
	ch <- c.noiseDesc
	ch <- c.stepSecondsDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	last, steps := c.last, c.steps
	c.mu.RUnlock()

	ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1, c.version, runtime.Version())
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
	ch <- prometheus.MustNewConstMetric(c.stepsDesc, prometheus.CounterValue, steps)

	// Nothing below is meaningful before the first step.
	if steps == 0 {
		return
	}

	st := last.State
	ch <- prometheus.MustNewConstMetric(c.imagesDesc, prometheus.CounterValue, float64(st.KImgs))
	ch <- prometheus.MustNewConstMetric(c.tickDesc, prometheus.GaugeValue, float64(st.GlobalTick))
	ch <- prometheus.MustNewConstMetric(c.epochDesc, prometheus.GaugeValue, float64(st.Epoch))
	ch <- prometheus.MustNewConstMetric(c.resolutionDesc, prometheus.GaugeValue, st.Resolution)
	ch <- prometheus.MustNewConstMetric(c.imageSizeDesc, prometheus.GaugeValue, float64(st.ImageSize()))
	for _, p := range core.Phases() {
		v := 0.0
		if p == st.Phase {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.phaseDesc, prometheus.GaugeValue, v, p.String())
	}
	ch <- prometheus.MustNewConstMetric(c.learningRateDesc, prometheus.GaugeValue, st.LearningRate)
	ch <- prometheus.MustNewConstMetric(c.lossDesc, prometheus.GaugeValue, last.LossD, string(core.RoleDis))
	ch <- prometheus.MustNewConstMetric(c.lossDesc, prometheus.GaugeValue, last.LossG, string(core.RoleGen))
	ch <- prometheus.MustNewConstMetric(c.completeDesc, prometheus.GaugeValue, st.Complete.Dis, string(core.RoleDis))
	ch <- prometheus.MustNewConstMetric(c.completeDesc, prometheus.GaugeValue, st.Complete.Gen, string(core.RoleGen))
	ch <- prometheus.MustNewConstMetric(c.scoreDesc, prometheus.GaugeValue, last.RealScore, "real")
	ch <- prometheus.MustNewConstMetric(c.scoreDesc, prometheus.GaugeValue, last.FakeScore, "fake")
	ch <- prometheus.MustNewConstMetric(c.noiseDesc, prometheus.GaugeValue, last.NoiseStrength)
	ch <- prometheus.MustNewConstMetric(c.stepSecondsDesc, prometheus.GaugeValue, last.Duration.Seconds())
}

// NewRegistry creates a registry with the training collector and the Go
// runtime and process collectors.
func NewRegistry(collector *Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

var _ trainer.Observer = (*Collector)(nil)
