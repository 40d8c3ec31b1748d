// Package manager owns the diffusion pipeline and coordinates its lifecycle,
// request validation, admission and generation. It is structured into small
// files by concern:
//
//   - manager.go: core Manager type, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: lifecycle state and snapshot types.
//   - errors.go: error types and helpers (IsTooBusy, IsValidation, ...).
//   - load.go: one-shot pipeline load at startup.
//   - validate.go: request defaults and struct-tag validation.
//   - seed.go: seed policy.
//   - admission.go: bounded queue in front of the single device slot.
//   - generate.go: the generation entry point.
//   - status.go: Root/Health/Snapshot reporting.
//   - sanity.go: read-only device and model probe for the CLI.
//   - close.go: idempotent shutdown.
//   - events.go, eventpub_*.go: lifecycle events.
//
// External packages should use public methods only (NewWithConfig, Load,
// Ready, Root, Health, Generate, Close).
package manager
