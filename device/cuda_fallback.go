//go:build !cuda
// +build !cuda

package device

// CUDADriver is the name the CUDA driver registers under when compiled in.
// In this build it is absent and Open reports CodeNotCompiled.
const CUDADriver = "cuda"
