package gpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Readback state machine. Transitions are guarded by mu; the GPU copy
// and the MapAsync callback land asynchronously.
const (
	feedbackIdle    = 0 // staging free, may schedule a copy
	feedbackCopied  = 1 // copy submitted, map not yet requested
	feedbackMapping = 2 // MapAsync in flight
	feedbackMapped  = 3 // staging readable on the CPU
)

// CameraFeedback streams the guiding line back to the CPU without ever
// stalling the frame loop. The staging buffer round-trips through a
// copy/map/read cycle that spans several frames, so the pose it reports
// always lags the simulation by at least one frame. Consumers keep the
// last pose they saw until a newer one lands.
type CameraFeedback struct {
	staging    *wgpu.Buffer
	generation uuid.UUID

	mu       sync.Mutex
	state    int
	predator mgl32.Vec3
	target   mgl32.Vec3
	hasPose  bool
	closed   bool
}

// NewCameraFeedback allocates the staging buffer for the guiding line.
// generation identifies the owning pipeline so a map callback arriving
// after a rebuild can be recognised and dropped.
func NewCameraFeedback(device *wgpu.Device, generation uuid.UUID) (*CameraFeedback, error) {
	staging, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "GuidingLineStaging",
		Size:  GuidingLineSize,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, fmt.Errorf("guiding line staging: %w", err)
	}
	return &CameraFeedback{staging: staging, generation: generation}, nil
}

// EncodeCopy schedules the guiding line transfer if the staging buffer
// is idle. Called while recording the frame's command encoder, after
// the hunt dispatch has been encoded.
func (f *CameraFeedback) EncodeCopy(encoder *wgpu.CommandEncoder, guidingLine *wgpu.Buffer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || f.state != feedbackIdle {
		return
	}
	encoder.CopyBufferToBuffer(guidingLine, 0, f.staging, 0, GuidingLineSize)
	f.state = feedbackCopied
}

// Poll advances the state machine: requests the map once the copy is
// submitted, and drains the staging buffer once the map completes.
// Call once per frame after queue submission.
func (f *CameraFeedback) Poll(generation uuid.UUID) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}

	if f.state == feedbackCopied {
		f.state = feedbackMapping
		f.staging.MapAsync(wgpu.MapModeRead, 0, GuidingLineSize, func(status wgpu.BufferMapAsyncStatus) {
			f.mu.Lock()
			defer f.mu.Unlock()
			// A callback from a previous pipeline generation fires after
			// its buffers are gone. Leave the state alone.
			if f.closed || generation != f.generation {
				return
			}
			if status == wgpu.BufferMapAsyncStatusSuccess {
				f.state = feedbackMapped
			} else {
				f.state = feedbackIdle
			}
		})
	}

	if f.state == feedbackMapped {
		data := f.staging.GetMappedRange(0, GuidingLineSize)
		if predator, target, ok := DecodeGuidingLine(data); ok {
			f.predator = predator
			f.target = target
			f.hasPose = true
		}
		f.staging.Unmap()
		f.state = feedbackIdle
	}
	f.mu.Unlock()
}

// Pose returns the most recent guiding line read back from the GPU.
// ok is false until the first readback completes.
func (f *CameraFeedback) Pose() (predator, target mgl32.Vec3, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.predator, f.target, f.hasPose
}

// Close marks the feedback dead and releases the staging buffer. Any
// in-flight map callback becomes a no-op.
func (f *CameraFeedback) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()
	f.staging.Release()
}
