// Package kernel hosts the embedded compute module in a WebAssembly
// sandbox.
//
// The guest module exports kernel_alloc/kernel_free/kernel_invoke for memory
// and entry-point plumbing, and imports enginelink.execute to reach the
// remote engine mid-computation. Payloads cross the boundary in the same
// serialized binary document format the wire protocol uses, so the kernel
// needs no second codec.
package kernel
