package model

// EngineType identifies the copy engine used when a rename crosses devices.
type EngineType string

const (
	EngineAuto        EngineType = "auto"
	EngineReflinkCopy EngineType = "reflink-copy"
	EngineCopy        EngineType = "copy"
)

// MoveMethod records how an item was relocated.
type MoveMethod string

const (
	MethodRename MoveMethod = "rename"
	MethodCopy   MoveMethod = "copy"
)

// MoveState is a step of the mover state machine.
//
// A plain rename goes renaming -> done. A cross-device move goes
// renaming -> copying -> verifying -> deleting-source -> done.
// Any step may end in failed.
type MoveState string

const (
	StateRenaming       MoveState = "renaming"
	StateCopying        MoveState = "copying"
	StateVerifying      MoveState = "verifying"
	StateDeletingSource MoveState = "deleting-source"
	StateDone           MoveState = "done"
	StateFailed         MoveState = "failed"
)

// PartialCopyPolicy decides what happens to an incomplete cross-device copy.
type PartialCopyPolicy string

const (
	PartialCopyCleanup PartialCopyPolicy = "cleanup"
	PartialCopyKeep    PartialCopyPolicy = "keep"
)

// RestoreConflictPolicy decides what happens when the original location is occupied.
type RestoreConflictPolicy string

const (
	RestoreConflictFail   RestoreConflictPolicy = "fail"
	RestoreConflictRename RestoreConflictPolicy = "rename"
)

// RecordBackend selects the Record Store implementation.
type RecordBackend string

const (
	RecordBackendJSONL  RecordBackend = "jsonl"
	RecordBackendSQLite RecordBackend = "sqlite"
)

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string
