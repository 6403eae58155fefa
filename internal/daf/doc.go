// Package daf implements delayed auditory feedback: a capture device feeds a
// fixed-length delay line whose output is written to a playback device.
//
// The Controller owns at most one running session. Start acquires both
// devices and launches a worker goroutine; Stop signals the worker, waits for
// it with a bounded timeout and only then releases the devices.
package daf
