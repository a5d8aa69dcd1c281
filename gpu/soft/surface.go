// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package soft

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"cogentcore.org/pyro/gpu"
)

// Surface is an offscreen presentation surface with a chain of
// presentable images. The last presented image is kept in Front.
// Its window size may be changed with [Surface.SetWindowSize], after
// which Acquire reports [gpu.ErrOutOfDate] until it is recreated,
// like a real window surface.
type Surface struct {
	dev    *Device
	format gpu.Format

	mu        sync.Mutex
	size      image.Point
	window    image.Point
	images    []*Image
	next      int
	outOfDate int
	front     *image.RGBA
	presented int
}

// NewSurface returns a surface with n presentable images of the given size.
func NewSurface(dev *Device, size image.Point, n int) *Surface {
	sf := &Surface{dev: dev, format: gpu.FormatRGBA8Unorm, window: size}
	sf.makeImages(size, n)
	return sf
}

func (sf *Surface) makeImages(size image.Point, n int) {
	sf.size = size
	sf.images = nil
	if size.X <= 0 || size.Y <= 0 {
		return
	}
	for i := range n {
		sf.images = append(sf.images, newImage(fmt.Sprintf("surface.%d", i), sf.format, size))
	}
}

func (sf *Surface) Size() image.Point {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.size
}

func (sf *Surface) Format() gpu.Format {
	return sf.format
}

// SetWindowSize changes the size of the window the surface is for.
func (sf *Surface) SetWindowSize(size image.Point) {
	sf.mu.Lock()
	sf.window = size
	sf.mu.Unlock()
}

// InjectOutOfDate makes the next n acquires report [gpu.ErrOutOfDate].
func (sf *Surface) InjectOutOfDate(n int) {
	sf.mu.Lock()
	sf.outOfDate += n
	sf.mu.Unlock()
}

// Front returns a copy of the last presented image, or nil.
func (sf *Surface) Front() *image.RGBA {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.front == nil {
		return nil
	}
	img := *sf.front
	img.Pix = append([]byte(nil), sf.front.Pix...)
	return &img
}

// Presented returns the number of images presented.
func (sf *Surface) Presented() int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.presented
}

func (sf *Surface) Acquire(signal gpu.Semaphore, timeout time.Duration) (int, gpu.DeviceImage, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.outOfDate > 0 {
		sf.outOfDate--
		return -1, nil, gpu.ErrOutOfDate
	}
	if sf.window != sf.size || len(sf.images) == 0 {
		return -1, nil, gpu.ErrOutOfDate
	}
	idx := sf.next
	sf.next = (sf.next + 1) % len(sf.images)
	signal.(*Semaphore).signal()
	return idx, sf.images[idx], nil
}

func (sf *Surface) Present(index int, wait gpu.Semaphore) error {
	sm := wait.(*Semaphore)
	sf.mu.Lock()
	if index < 0 || index >= len(sf.images) {
		sf.mu.Unlock()
		return fmt.Errorf("soft.Surface.Present: invalid image index %d", index)
	}
	im := sf.images[index]
	sf.mu.Unlock()
	sf.dev.queue.push(&submission{present: func() {
		if !sm.consume() {
			sf.dev.validate("present waits on unsignaled semaphore")
		}
		if im.layout != gpu.LayoutPresent {
			sf.dev.validate("present: image %q is in %s", im.Name, im.layout)
		}
		front := im.RGBA()
		sf.mu.Lock()
		sf.front = front
		sf.presented++
		sf.mu.Unlock()
		sf.dev.count(func(st *Stats) { st.Presents++ })
	}})
	return nil
}

// Recreate rebuilds the presentable images at the given size,
// which should be the window size.
func (sf *Surface) Recreate(size image.Point) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	n := max(len(sf.images), 3)
	sf.makeImages(size, n)
	sf.next = 0
	slog.Info("soft.Surface: recreated", "size", size)
	return nil
}

func (sf *Surface) Release() {
	sf.mu.Lock()
	sf.images = nil
	sf.mu.Unlock()
}
