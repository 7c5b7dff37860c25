// Package fs provides the filesystem seam used by the spill backend.
//
// The package defines two interfaces:
//
//   - [File]: an open scratch file with positional read/write
//   - [FileSystem]: the handful of operations the spill backend performs
//     (open, remove, mkdir, stat)
//
// # Implementations
//
//   - [LocalFS]: production implementation on top of the os package
//   - [FaultyFS]: test utility that injects write, read and close failures
//
// # Usage
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
//
// Tests inject [FaultyFS] to exercise storage-error paths:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 0})
//	tp, _ := slabtape.New[float64](slabtape.WithFileSystem(ffs), ...)
//
// Operations take no context.Context. Local scratch I/O is not interruptible
// at the syscall level.
package fs
