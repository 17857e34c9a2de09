// Package backup provides data integrity and disaster recovery for the
// memory store's storage backends.
//
// The package is organized around component handlers: each backend (vector
// store, graph store) implements ComponentHandler, and the orchestrators
// operate purely through that interface. The backup Orchestrator exports
// every component into a per-backup directory sealed by a manifest with
// per-component and whole-tree checksums. The RestoreOrchestrator verifies
// those checksums before a single write reaches any backend. The
// DisasterRecoveryDrill proves backups restorable by running the full
// backup-restore-compare cycle, and the RetentionManager prunes stored
// backups by policy.
//
// Completed backups can be replicated offsite through the OffsiteReplicator,
// which packs the backup tree into a compressed, optionally encrypted
// archive and stores it through a pluggable BlobClient (local disk, S3,
// Google Cloud Storage, or Azure Blob Storage).
package backup
