// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRequestPasswordReset, RunFinalizePasswordReset,
// RunRegister, RunAuthenticate, ...) accepts a typed dependency struct of
// function fields and returns results without side effects beyond those
// dependencies. Missing optional dependencies are replaced with no-ops by the
// normalize helpers; missing required ones yield the EngineNotReady error.
//
// # Architecture boundaries
//
// Flows coordinate the vault, credential store, limiters, delivery queue,
// audit and metrics. They do NOT own any of these resources; ownership stays
// with the Engine. Flows must not import the root package, hold state between
// calls, or perform I/O except through their dependencies.
package flows
