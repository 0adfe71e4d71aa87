// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Core identification tags

func String(key, value string) slog.Attr {
	return slog.String(key, value)
}

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// RunID creates a tag for training run IDs.
func RunID(id string) slog.Attr {
	return slog.String("run-id", id)
}

// Role creates a tag for the network role (gen, dis, combined).
func Role(role string) slog.Attr {
	return slog.String("role", role)
}

// Schedule tags

// Resolution creates a tag for the continuous resolution value.
func Resolution(r float64) slog.Attr {
	return slog.Float64("resolution", r)
}

// Level creates a tag for the integer resolution level.
func Level(level int) slog.Attr {
	return slog.Int("level", level)
}

// ImageSize creates a tag for the image side length in pixels.
func ImageSize(px int) slog.Attr {
	return slog.Int("image-size", px)
}

// Phase creates a tag for the scheduler phase.
func Phase(phase string) slog.Attr {
	return slog.String("phase", phase)
}

// Tick creates a tag for the global tick counter.
func Tick(tick int64) slog.Attr {
	return slog.Int64("tick", tick)
}

// Iter creates a tag for the global iteration counter.
func Iter(iter int64) slog.Attr {
	return slog.Int64("iter", iter)
}

// Epoch creates a tag for the dataset epoch.
func Epoch(epoch int64) slog.Attr {
	return slog.Int64("epoch", epoch)
}

// Stack creates a tag for the dataset cursor.
func Stack(stack int64) slog.Attr {
	return slog.Int64("stack", stack)
}

// LearningRate creates a tag for the current learning rate.
func LearningRate(lr float64) slog.Attr {
	return slog.Float64("lr", lr)
}

// Training tags

// Stages creates a tag for the number of outer training stages.
func Stages(n int) slog.Attr {
	return slog.Int("stages", n)
}

// Iterations creates a tag for an iteration count.
func Iterations(n int64) slog.Attr {
	return slog.Int64("iterations", n)
}

// LossD creates a tag for the discriminator loss.
func LossD(v float64) slog.Attr {
	return slog.Float64("loss-d", v)
}

// LossG creates a tag for the generator loss.
func LossG(v float64) slog.Attr {
	return slog.Float64("loss-g", v)
}

// CompleteGen creates a tag for the generator fade-in completion percentage.
func CompleteGen(pct float64) slog.Attr {
	return slog.Float64("complete-gen", pct)
}

// CompleteDis creates a tag for the discriminator fade-in completion percentage.
func CompleteDis(pct float64) slog.Attr {
	return slog.Float64("complete-dis", pct)
}

// ParamCount creates a tag for a network's state dict entry count.
func ParamCount(n int) slog.Attr {
	return slog.Int("param-count", n)
}

// Path and file tags

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Network and service tags

// Addr creates a tag for listen addresses.
func Addr(addr string) slog.Attr {
	return slog.String("addr", addr)
}

// Duration creates a tag for elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}
