package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/c360/enginelink/errors"
)

// Executor is the remote side the kernel calls out to. The engineclient
// Client satisfies it.
type Executor interface {
	ExecuteSerialized(ctx context.Context, command []byte) ([]byte, error)
}

// Guest exports the kernel module must provide.
const (
	exportAlloc  = "kernel_alloc"
	exportFree   = "kernel_free"
	exportInvoke = "kernel_invoke"
)

// hostModule is the import namespace the guest sees.
const hostModule = "enginelink"

// Kernel hosts the embedded compute module in a wasm sandbox. The guest
// performs local geometry work and reaches the remote engine through the
// host-provided execute import; both directions speak the serialized binary
// document format.
type Kernel struct {
	runtime  wazero.Runtime
	module   api.Module
	alloc    api.Function
	free     api.Function
	invoke   api.Function
	executor Executor
	logger   *slog.Logger

	// Wasm linear memory is single-threaded; calls are serialized.
	mu     sync.Mutex
	closed bool
}

// Options configures kernel construction.
type Options struct {
	// MemoryLimitPages caps guest memory in 64KiB pages. Zero keeps the
	// runtime default.
	MemoryLimitPages uint32
	Logger           *slog.Logger
}

// Load reads the wasm module at path and instantiates it against executor.
func Load(ctx context.Context, path string, executor Executor, opts Options) (*Kernel, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Kernel", "Load", "read module")
	}
	return New(ctx, wasm, executor, opts)
}

// New instantiates the kernel from raw wasm bytes.
func New(ctx context.Context, wasm []byte, executor Executor, opts Options) (*Kernel, error) {
	if executor == nil {
		return nil, fmt.Errorf("kernel executor cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runtimeConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if opts.MemoryLimitPages > 0 {
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	k := &Kernel{
		runtime:  runtime,
		executor: executor,
		logger:   logger,
	}

	_, err := runtime.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().WithFunc(k.hostExecute).Export("execute").
		NewFunctionBuilder().WithFunc(k.hostLog).Export("log").
		Instantiate(ctx)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(err, "Kernel", "New", "instantiate host module")
	}

	compiled, err := runtime.CompileModule(ctx, wasm)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(err, "Kernel", "New", "compile module")
	}

	module, err := runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("kernel"))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, errors.Wrap(err, "Kernel", "New", "instantiate module")
	}

	for _, export := range []string{exportAlloc, exportFree, exportInvoke} {
		if module.ExportedFunction(export) == nil {
			_ = runtime.Close(ctx)
			return nil, fmt.Errorf("kernel module does not export %s", export)
		}
	}
	k.module = module
	k.alloc = module.ExportedFunction(exportAlloc)
	k.free = module.ExportedFunction(exportFree)
	k.invoke = module.ExportedFunction(exportInvoke)

	logger.Info("kernel module instantiated", "exports", len(module.ExportedFunctionDefinitions()))
	return k, nil
}

// Invoke hands one serialized command to the guest and returns its serialized
// result. The guest may issue any number of remote engine calls through the
// execute import while servicing the command.
func (k *Kernel) Invoke(ctx context.Context, command []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, errors.Wrap(errors.ErrClientClosed, "Kernel", "Invoke", "check state")
	}

	ptr, err := k.writeGuest(ctx, command)
	if err != nil {
		return nil, err
	}
	defer k.freeGuest(ctx, ptr, uint32(len(command)))

	results, err := k.invoke.Call(ctx, uint64(ptr), uint64(len(command)))
	if err != nil {
		return nil, errors.Wrap(err, "Kernel", "Invoke", "call guest")
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("kernel invoke returned %d results, want 1", len(results))
	}

	respPtr, respLen := unpackSpan(results[0])
	if respLen == 0 {
		return nil, nil
	}
	data, ok := k.module.Memory().Read(respPtr, respLen)
	if !ok {
		return nil, fmt.Errorf("kernel response span [%d,%d) outside guest memory", respPtr, respPtr+respLen)
	}
	out := make([]byte, respLen)
	copy(out, data)
	k.freeGuest(ctx, respPtr, respLen)
	return out, nil
}

// Close tears the sandbox down. Idempotent.
func (k *Kernel) Close(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.runtime.Close(ctx)
}

// hostExecute is the guest's bridge to the remote engine: it reads the
// serialized command out of guest memory, runs it through the executor, and
// writes the serialized response back, returning its packed span. A zero
// span signals failure; the guest surfaces that to its own caller.
func (k *Kernel) hostExecute(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	command, ok := mod.Memory().Read(ptr, length)
	if !ok {
		k.logger.Error("guest passed invalid command span", "ptr", ptr, "len", length)
		return 0
	}

	resp, err := k.executor.ExecuteSerialized(ctx, command)
	if err != nil {
		k.logger.Warn("remote execute failed inside kernel call", "error", err)
		return 0
	}

	respPtr, err := k.writeGuestMod(ctx, mod, resp)
	if err != nil {
		k.logger.Error("writing response into guest memory failed", "error", err)
		return 0
	}
	return packSpan(respPtr, uint32(len(resp)))
}

// hostLog lets the guest emit a UTF-8 message through the host logger.
func (k *Kernel) hostLog(_ context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return
	}
	k.logger.Info("kernel: " + string(msg))
}

func (k *Kernel) writeGuest(ctx context.Context, data []byte) (uint32, error) {
	return k.writeGuestMod(ctx, k.module, data)
}

func (k *Kernel) writeGuestMod(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	results, err := k.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, errors.Wrap(err, "Kernel", "Invoke", "allocate guest memory")
	}
	ptr := uint32(results[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("guest allocation [%d,%d) outside memory", ptr, ptr+uint32(len(data)))
	}
	return ptr, nil
}

func (k *Kernel) freeGuest(ctx context.Context, ptr, length uint32) {
	if _, err := k.free.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		k.logger.Debug("guest free failed", "ptr", ptr, "error", err)
	}
}

// packSpan packs a guest memory span into one u64 return value: pointer in
// the high half, length in the low half.
func packSpan(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpackSpan(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
