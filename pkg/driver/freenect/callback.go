//go:build freenect

package freenect

/*
#include <stdint.h>
#include <libfreenect.h>
*/
import "C"

import (
	"sync"
	"unsafe"
)

// handles maps libfreenect device pointers back to their Go wrappers so the
// C callback can find its Device.
var (
	handlesMu sync.RWMutex
	handles   = make(map[*C.freenect_device]*Device)
)

func registerHandle(dev *C.freenect_device, d *Device) {
	handlesMu.Lock()
	handles[dev] = d
	handlesMu.Unlock()
}

func unregisterHandle(dev *C.freenect_device) {
	handlesMu.Lock()
	delete(handles, dev)
	handlesMu.Unlock()
}

func lookupHandle(dev *C.freenect_device) *Device {
	handlesMu.RLock()
	defer handlesMu.RUnlock()
	return handles[dev]
}

//export goVideoCallback
func goVideoCallback(dev *C.freenect_device, video unsafe.Pointer, timestamp C.uint32_t) {
	d := lookupHandle(dev)
	if d == nil || video == nil {
		return
	}
	d.deliver(video, uint32(timestamp))
}
