// Command fdserialscope renders the TX and RX line levels of a loopback
// sim.Link as two scrolling traces in an SDL2 window, the host-side stand-in
// for watching the bit-banged UART on a real oscilloscope.
package main

import (
	"flag"
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/halfbit/fdserial/sim"
	"github.com/halfbit/fdserial/uart"
)

const (
	windowWidth  = 800
	windowHeight = 300
	traceHeight  = 120 // pixel rows allotted to each trace
	ticksPerCol  = 4   // counter ticks advanced per rendered pixel column
)

type scope struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	pixels   []byte
	col      int
}

func newScope() (*scope, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, err
	}
	window, err := sdl.CreateWindow("fdserialscope",
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		windowWidth, windowHeight,
		sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, err
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		return nil, err
	}
	texture, err := renderer.CreateTexture(
		uint32(sdl.PIXELFORMAT_ABGR8888),
		sdl.TEXTUREACCESS_STREAMING,
		windowWidth, windowHeight)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return nil, err
	}
	return &scope{
		window:   window,
		renderer: renderer,
		texture:  texture,
		pixels:   make([]byte, windowWidth*windowHeight*4),
	}, nil
}

func (s *scope) cleanup() {
	if s.texture != nil {
		s.texture.Destroy()
	}
	if s.renderer != nil {
		s.renderer.Destroy()
	}
	if s.window != nil {
		s.window.Destroy()
	}
	sdl.Quit()
}

// plot draws one pixel column: a trace line for txHigh in the top half, one
// for rxHigh in the bottom half, scrolled one column to the left of s.col.
func (s *scope) plot(txHigh, rxHigh bool) {
	if s.col >= windowWidth {
		// scroll the whole buffer one column left
		rowBytes := windowWidth * 4
		copy(s.pixels, s.pixels[4:])
		for y := 0; y < windowHeight; y++ {
			base := y*rowBytes + (windowWidth-1)*4
			s.pixels[base+0], s.pixels[base+1], s.pixels[base+2], s.pixels[base+3] = 0, 0, 0, 0xFF
		}
		s.col = windowWidth - 1
	}

	rowBytes := windowWidth * 4
	txY := traceRow(txHigh, 0, traceHeight)
	rxY := traceRow(rxHigh, traceHeight+20, traceHeight)
	set := func(y int, r, g, b byte) {
		off := y*rowBytes + s.col*4
		s.pixels[off+0], s.pixels[off+1], s.pixels[off+2], s.pixels[off+3] = r, g, b, 0xFF
	}
	for y := 0; y < traceHeight; y++ {
		set(y, 0, 0, 0)
	}
	for y := traceHeight + 20; y < traceHeight*2+20; y++ {
		set(y, 0, 0, 0)
	}
	set(txY, 0, 255, 0)
	set(rxY, 255, 255, 0)

	s.col++
}

// traceRow maps a boolean line level to a pixel row within a trace band:
// high draws near the top of the band, low near the bottom.
func traceRow(high bool, bandTop, bandHeight int) int {
	if high {
		return bandTop + bandHeight/4
	}
	return bandTop + bandHeight*3/4
}

func (s *scope) present() error {
	if err := s.texture.Update(nil, unsafe.Pointer(&s.pixels[0]), windowWidth*4); err != nil {
		return err
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return err
	}
	s.renderer.Present()
	return nil
}

func main() {
	rate := flag.Int("rate", 9600, "serial rate in bits/sec")
	cpuFreq := flag.Int("cpufreq", 8_000_000, "simulated CPU clock frequency in Hz")
	flag.Parse()

	cfg := uart.Config{CPUFreq: *cpuFreq, Rate: *rate}
	a, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Println("error: tx device:", err)
		return
	}
	b, err := uart.New(cfg, nil)
	if err != nil {
		fmt.Println("error: rx device:", err)
		return
	}
	link := sim.NewLink(a, b)

	sc, err := newScope()
	if err != nil {
		fmt.Println("error: sdl init:", err)
		return
	}
	defer sc.cleanup()

	go func() {
		payload := []byte("fdserialscope demo traffic 0123456789")
		for {
			for _, c := range payload {
				a.Send(c)
			}
		}
	}()
	go func() {
		for {
			b.Recv()
		}
	}()

running:
	for {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch event.(type) {
			case *sdl.QuitEvent:
				break running
			}
		}

		for i := 0; i < ticksPerCol; i++ {
			link.Step()
		}
		sc.plot(a.TXLevel(), b.TXLevel())
		if err := sc.present(); err != nil {
			fmt.Println("error: present:", err)
			return
		}
	}
}
