// Package storage provides the file and upload stores used by the gateway.
//
//   - FileStore / DirStore: name-only lookup of served files, rooted in one
//     directory with os.Root so no name can escape it
//   - UploadSink: destination of unidirectional upload streams, with an
//     in-memory ring (MemorySink) and a Badger-backed store (BadgerSink)
//     that can encrypt payloads at rest
package storage
