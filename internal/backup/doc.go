// Package backup implements the backup cycle engine for MySQL physical
// backups taken with Percona XtraBackup.
//
// The engine treats the filesystem as its only database. A backup chain
// lives under one root directory as a full backup folder ("base") plus
// numbered incremental folders ("inc_0", "inc_1", ...). Each invocation
// inspects that directory, decides on exactly one action, and performs it:
//
//  1. No base folder: wipe the root and take a full backup.
//  2. Healthy chain: take one incremental on top of the newest folder.
//  3. A seal trigger fired (chain length, archive hour, or chain age):
//     pack the whole chain into a compressed archive, rotate old archives
//     out, wipe the root, and start a fresh full backup.
//
// Core components:
//
//   - Engine: runs one cycle end to end and reports a CycleResult
//   - Inspector: reads the chain state from the backup root
//   - Archiver: seals a chain into a tar archive, with optional
//     compression and encryption, then applies retention
//   - RetentionManager: prunes old archives by their embedded timestamp
//   - CycleLock: keeps concurrent invocations off the same data directory
//   - OffsiteReplicator: copies sealed archives to local, S3, Azure, or
//     GCS targets
//
// The engine keeps no state between invocations, so it is safe to run
// from cron or a systemd timer. A failed cycle removes its partial backup
// folder and leaves the chain exactly as it found it.
package backup
