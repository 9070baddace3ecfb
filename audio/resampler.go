// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingFormatInfo      = errors.New("resample: missing format info")
	ErrBufferAllocationFailed = errors.New("resample: buffer allocation failed")
)

// ResampleError wraps ErrMissingFormatInfo or ErrBufferAllocationFailed
type ResampleError struct {
	Err    error
	Detail string
}

func (e *ResampleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ResampleError) Unwrap() error {
	return e.Err
}

type ResamplerOption func(r *Resampler)

// WithInFlightBuffers sets number of rotating output buffers.
// Buffer returned by Resample stays untouched for k-1 following calls.
func WithInFlightBuffers(k int) ResamplerOption {
	return func(r *Resampler) {
		r.inFlight = k
	}
}

// WithMaxSamples limits buffer growth. Burst needing more fails with
// ErrBufferAllocationFailed. Zero means no limit.
func WithMaxSamples(n int) ResamplerOption {
	return func(r *Resampler) {
		r.maxSamples = n
	}
}

// Resampler converts bursts of mono int16 samples to target rate with linear
// interpolation. Buffers only grow and are reused across calls.
// Use one per channel. It is not safe for concurrent use.
type Resampler struct {
	inFlight   int
	maxSamples int

	calls uint64

	// intermediate holds source samples as floats, sized to largest burst
	intermediate []float32
	// interpolation holds fractional source positions for last output length
	interpolation []float64
	rampSource    int
	rampOutput    int

	outputs [][]int16
}

func NewResampler(opts ...ResamplerOption) (*Resampler, error) {
	r := &Resampler{
		inFlight: 1,
	}
	for _, o := range opts {
		o(r)
	}
	if r.inFlight < 1 {
		return nil, fmt.Errorf("resampler: in flight buffers must be > 0, got %d", r.inFlight)
	}
	if r.maxSamples < 0 {
		return nil, fmt.Errorf("resampler: max samples must be >= 0, got %d", r.maxSamples)
	}
	r.outputs = make([][]int16, r.inFlight)
	return r, nil
}

func (r *Resampler) InFlightBuffers() int {
	return r.inFlight
}

// OutputCount is number of samples produced for n source samples
func OutputCount(n int, sourceRate uint32, targetRate uint32) uint64 {
	if sourceRate == 0 {
		return 0
	}
	return uint64(n) * uint64(targetRate) / uint64(sourceRate)
}

// Resample converts samples from sourceRate to targetRate.
// Big endian samples are swapped in place first.
//
// Returned slice is owned by resampler. It must be consumed before Resample is
// called InFlightBuffers more times, after that it is overwritten.
func (r *Resampler) Resample(samples []int16, sourceRate uint32, order ByteOrder, targetRate uint32) ([]int16, error) {
	defer func() {
		r.calls++
	}()

	if sourceRate == 0 || targetRate == 0 {
		return nil, &ResampleError{Err: ErrMissingFormatInfo, Detail: fmt.Sprintf("source=%d target=%d", sourceRate, targetRate)}
	}

	if order == BigEndian {
		SwapInt16(samples)
	}

	sourceCount := len(samples)
	count := OutputCount(sourceCount, sourceRate, targetRate)
	idx := int(r.calls % uint64(r.inFlight))
	if count == 0 {
		return r.outputs[idx][:0], nil
	}
	if count > math.MaxInt32 {
		return nil, &ResampleError{Err: ErrBufferAllocationFailed, Detail: fmt.Sprintf("output count %d", count)}
	}
	outputCount := int(count)

	if err := r.grow(idx, sourceCount, outputCount); err != nil {
		return nil, err
	}

	intermediate := r.intermediate[:sourceCount]
	for i, s := range samples {
		intermediate[i] = float32(s)
	}

	output := r.outputs[idx][:outputCount]
	if outputCount == sourceCount {
		for i, v := range intermediate {
			output[i] = int16(v)
		}
		return output, nil
	}

	ramp := r.ramp(sourceCount, outputCount)
	last := sourceCount - 1
	for i, pos := range ramp {
		j := int(pos)
		var v float32
		if j >= last {
			v = intermediate[last]
		} else {
			frac := float32(pos - float64(j))
			v = intermediate[j] + frac*(intermediate[j+1]-intermediate[j])
		}
		// Conversion truncates toward zero
		output[i] = int16(v)
	}
	return output, nil
}

// grow reallocates buffers only when burst does not fit
func (r *Resampler) grow(idx int, sourceCount int, outputCount int) error {
	need := max(sourceCount, outputCount)
	if r.maxSamples > 0 && need > r.maxSamples {
		return &ResampleError{Err: ErrBufferAllocationFailed, Detail: fmt.Sprintf("need %d samples, limit %d", need, r.maxSamples)}
	}

	if cap(r.intermediate) < need {
		r.intermediate = make([]float32, need)
	}
	if cap(r.interpolation) < outputCount {
		r.interpolation = make([]float64, outputCount)
		r.rampOutput = 0
	}
	// Only current buffer is grown, others may still be held by caller
	if cap(r.outputs[idx]) < outputCount {
		r.outputs[idx] = make([]int16, outputCount)
	}
	return nil
}

// ramp returns positions evenly spaced by sourceCount/outputCount starting at 0.
// It is rebuilt only when burst shape changes.
func (r *Resampler) ramp(sourceCount int, outputCount int) []float64 {
	ramp := r.interpolation[:outputCount]
	if r.rampSource == sourceCount && r.rampOutput == outputCount {
		return ramp
	}

	step := float64(sourceCount) / float64(outputCount)
	for i := range ramp {
		ramp[i] = float64(i) * step
	}
	r.rampSource = sourceCount
	r.rampOutput = outputCount
	return ramp
}
