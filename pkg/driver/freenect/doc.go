// Package freenect binds libfreenect through cgo and registers it as the
// "freenect" driver.
//
// The binding is only compiled with the freenect build tag, so binaries that
// blank-import this package still build on machines without libfreenect:
//
//	go build -tags freenect ./cmd/kinectd
//
// Frame buffers handed to the device must come from Driver.Alloc. They live in
// C memory because libfreenect writes into them from its USB transfer code.
package freenect
