package filters

import (
	_ "embed"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/soypat/absorb"
)

//go:embed point-filter-gpu.wgsl
var baseShaderWGSL string

var errGPUUninit = errors.New("gpu filter not initialized")

// PointFilterGPU applies a per-pixel GPU compute shader transformation.
// Embed this in concrete filter implementations and provide a transform function in WGSL.
type PointFilterGPU struct {
	mu     sync.Mutex
	gpu    gpuResources
	Params [4]float32 // Uniform params: [0]=width, [1]=height, [2..3]=user params
	inited bool
}

type gpuResources struct {
	device        *wgpu.Device
	queue         *wgpu.Queue
	shaderModule  *wgpu.ShaderModule
	pipeline      *wgpu.ComputePipeline
	bindLayout    *wgpu.BindGroupLayout
	uniformBuffer *wgpu.Buffer
	inputBuffer   *wgpu.Buffer
	outputBuffer  *wgpu.Buffer
	width, height int
	staging       []byte // compact copy of non-contiguous rows
}

// GPU bundles a device and its queue opened by [OpenGPU].
type GPU struct {
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
}

// OpenGPU requests a low power adapter and device from the system WebGPU implementation.
func OpenGPU() (*GPU, error) {
	instance := wgpu.CreateInstance(nil)
	if instance == nil {
		return nil, errors.New("webgpu not available")
	}
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceLowPower,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("gpu adapter: %w", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("gpu device: %w", err)
	}
	return &GPU{Device: device, Queue: device.GetQueue(), instance: instance, adapter: adapter}, nil
}

// Release frees the device, adapter and instance.
func (g *GPU) Release() {
	g.Queue.Release()
	g.Device.Release()
	g.adapter.Release()
	g.instance.Release()
}

// Init initializes GPU resources with the given transform WGSL code.
// transformCode should define: fn transform(c: vec4<f32>) -> vec4<f32>
func (f *PointFilterGPU) Init(device *wgpu.Device, queue *wgpu.Queue, transformCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fullShader := strings.Replace(baseShaderWGSL, "// TRANSFORM_PLACEHOLDER", transformCode, 1)

	f.gpu.device = device
	f.gpu.queue = queue

	var err error
	f.gpu.shaderModule, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fullShader},
	})
	if err != nil {
		return fmt.Errorf("shader module: %w", err)
	}

	f.gpu.pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     f.gpu.shaderModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("compute pipeline: %w", err)
	}

	f.gpu.bindLayout = f.gpu.pipeline.GetBindGroupLayout(0)

	f.gpu.uniformBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  16, // 4 x float32
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("uniform buffer: %w", err)
	}

	f.inited = true
	return nil
}

// Process applies the GPU filter to img and returns a newly allocated result.
func (f *PointFilterGPU) Process(img *image.RGBA) (*image.RGBA, error) {
	out := image.NewRGBA(image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy()))
	if err := f.ProcessInto(out, img); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessInPlace applies the filter to the buffer, overwriting its pixels.
func (f *PointFilterGPU) ProcessInPlace(pb *absorb.PixelBuffer) error {
	img := pb.RGBA()
	return f.ProcessInto(img, img)
}

// ProcessInto applies the GPU filter to src writing the result to dst.
// dst and src must have equal dimensions and may be the same image.
func (f *PointFilterGPU) ProcessInto(dst, src *image.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.inited {
		return errGPUUninit
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if w <= 0 || h <= 0 {
		return errors.New("empty image")
	} else if dst.Rect.Dx() != w || dst.Rect.Dy() != h {
		return errors.New("gpu filter dst and src size mismatch")
	}
	if err := f.ensureBuffers(w, h); err != nil {
		return err
	}

	f.gpu.queue.WriteBuffer(f.gpu.inputBuffer, 0, f.compact(src))

	f.Params[0], f.Params[1] = float32(w), float32(h)
	f.gpu.queue.WriteBuffer(f.gpu.uniformBuffer, 0, wgpu.ToBytes(f.Params[:]))

	if err := f.dispatch(w, h); err != nil {
		return err
	}
	return f.readback(dst)
}

// compact returns the pixel rows of img without stride padding.
func (f *PointFilterGPU) compact(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	rowBytes := w * 4
	if img.Stride == rowBytes {
		return img.Pix[:rowBytes*h]
	}
	for y := 0; y < h; y++ {
		copy(f.gpu.staging[y*rowBytes:(y+1)*rowBytes], img.Pix[y*img.Stride:])
	}
	return f.gpu.staging
}

func (f *PointFilterGPU) ensureBuffers(w, h int) error {
	if w == f.gpu.width && h == f.gpu.height {
		return nil
	}

	f.releaseImageBuffers()

	size := uint64(w * h * 4)
	var err error

	f.gpu.inputBuffer, err = f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("input buffer: %w", err)
	}

	f.gpu.outputBuffer, err = f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("output buffer: %w", err)
	}

	f.gpu.staging = make([]byte, size)
	f.gpu.width, f.gpu.height = w, h
	return nil
}

func (f *PointFilterGPU) dispatch(w, h int) error {
	bindGroup, err := f.gpu.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: f.gpu.bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: f.gpu.uniformBuffer, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: f.gpu.inputBuffer, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: f.gpu.outputBuffer, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	defer bindGroup.Release()

	encoder, err := f.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(f.gpu.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((w+7)/8), uint32((h+7)/8), 1)
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish: %w", err)
	}

	f.gpu.queue.Submit(cmd)
	return nil
}

func (f *PointFilterGPU) readback(dst *image.RGBA) error {
	size := uint64(f.gpu.width * f.gpu.height * 4)

	staging, err := f.gpu.device.CreateBuffer(&wgpu.BufferDescriptor{
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("staging buffer: %w", err)
	}
	defer staging.Release()

	encoder, err := f.gpu.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("readback encoder: %w", err)
	}
	encoder.CopyBufferToBuffer(f.gpu.outputBuffer, 0, staging, 0, size)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return fmt.Errorf("readback finish: %w", err)
	}

	f.gpu.queue.Submit(cmd)
	f.gpu.device.Poll(true, nil)

	done := make(chan error, 1)
	staging.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("map failed: %v", status)
			return
		}
		done <- nil
	})

	f.gpu.device.Poll(true, nil)
	if err := <-done; err != nil {
		return err
	}

	mapped := staging.GetMappedRange(0, uint(size))
	rowBytes := f.gpu.width * 4
	for y := 0; y < f.gpu.height; y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], mapped[y*rowBytes:])
	}
	staging.Unmap()
	return nil
}

func (f *PointFilterGPU) releaseImageBuffers() {
	if f.gpu.inputBuffer != nil {
		f.gpu.inputBuffer.Release()
		f.gpu.inputBuffer = nil
	}
	if f.gpu.outputBuffer != nil {
		f.gpu.outputBuffer.Release()
		f.gpu.outputBuffer = nil
	}
	f.gpu.width, f.gpu.height = 0, 0
}

// Cleanup releases all GPU resources.
func (f *PointFilterGPU) Cleanup() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.releaseImageBuffers()
	if f.gpu.uniformBuffer != nil {
		f.gpu.uniformBuffer.Release()
	}
	if f.gpu.bindLayout != nil {
		f.gpu.bindLayout.Release()
	}
	if f.gpu.pipeline != nil {
		f.gpu.pipeline.Release()
	}
	if f.gpu.shaderModule != nil {
		f.gpu.shaderModule.Release()
	}
	f.inited = false
}

// SetParam sets a user parameter (index 0 or 1, mapped to Params[2] and Params[3]).
func (f *PointFilterGPU) SetParam(index int, value float32) {
	if index >= 0 && index < 2 {
		f.mu.Lock()
		f.Params[2+index] = value
		f.mu.Unlock()
	}
}

// PointFilterGPU does not implement [absorb.Filter]
// since it works on image.RGBA instead of absorb.Image.
var _ interface{ Controls() []absorb.Control } = (*PointFilterGPU)(nil)

// Controls returns nil - concrete implementations should override.
func (f *PointFilterGPU) Controls() []absorb.Control { return nil }
