// Package session owns loaded on-device models and the conversational
// context bound to each of them. It is split by concern:
//
//   - types.go: ModelID, SamplingConfig and the ModelSession wrapper.
//   - adapter_iface.go: Backend, Handle and Conversation collaborator contracts.
//   - registry.go: Registry, the load-or-fetch cache (one session per model id).
//   - config.go: RegistryConfig and package defaults.
//   - errors.go: error types and Is* helpers.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//
// Build tags and runtimes:
//
//   - In-process llama: go-llama.cpp backend, enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go (linker rpath hints).
//   - Default builds compile adapter_llama_stub.go, which refuses to load
//     models with a dependency-unavailable error so binaries stay CGO-free.
//
// The Registry is created once by the daemon and closed at exit; consumers
// receive it by reference and never reach for package-level state.
package session
