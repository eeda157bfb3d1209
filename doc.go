/*
Package commitlog provides an in-process commit-log retention engine for a
multi-version storage engine.

Every committed write transaction produces an opaque binary commit log. The
engine keeps those logs, keyed by the version number the commit produced, so
that readers lagging behind the writer can replay exactly the changes they
missed. Once no reader needs a version any more its log is released.

# Components

A Registry holds the contiguous window of retained versions of one database.
A Directory maps database paths to registries so that every session opened on
the same path shares one Registry. A Collector accumulates the bytes of one
write transaction and hands them to the Registry on commit; readers use the
same type to fetch version ranges and to advance the watermark.

# Usage

	c := commitlog.NewCollector("/data/db", nil)

	c.BeginWriteTransaction()
	c.Append(instructions)
	version = c.CommitWriteTransaction(version)

	// On a catching-up reader:
	out := make([][]byte, newest-seen)
	reader.GetCommitEntries(seen, newest, out)
	reader.SetOldestVersionNeeded(globalOldestNeeded)

# Concurrency

Registry and Directory are safe for concurrent use. A Collector's write side
(BeginWriteTransaction through CommitWriteTransaction) must be driven by one
goroutine; its read-side methods may be called from any goroutine.

Views returned by GetCommitEntries alias registry memory. They must not be
modified and are valid only until a watermark advance or reset releases the
versions they cover.

# Contract violations

Adding a version out of order or fetching a version outside the retained
window is a bug in the caller. Such calls are logged at FATAL and panic with
an error wrapping ErrProtocolViolation.
*/
package commitlog
