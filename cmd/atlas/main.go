// Command atlas runs a compiled Atlas program against a live window,
// driving internal/eval.Context.Run once per frame and refilling its
// Input from GLFW each frame before calling it (spec.md §4.6's
// INPUT/KEYS/GAMEPAD/WINDOWSIZE/TIMEDELTA steps read whatever this
// loop last wrote).
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/soypat/atlas/internal/compiler"
	"github.com/soypat/atlas/internal/eval"
	"github.com/soypat/atlas/v4.6-core/glgl"
)

func init() {
	runtime.LockOSThread()
}

// osLoader wires compiler.FileLoader to the filesystem, the way every
// example in the teacher's repo reads shader source from disk.
type osLoader struct{}

func (osLoader) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// atlasKeys is the fixed key table KEYS reports, one float per entry
// (1 held, 0 released); index order is part of the program/host
// contract, same as spec.md §4.6 leaves GAMEPAD's axis/button layout
// up to the host.
var atlasKeys = []glfw.Key{
	glfw.KeyA, glfw.KeyB, glfw.KeyC, glfw.KeyD, glfw.KeyE, glfw.KeyF,
	glfw.KeyG, glfw.KeyH, glfw.KeyI, glfw.KeyJ, glfw.KeyK, glfw.KeyL,
	glfw.KeyM, glfw.KeyN, glfw.KeyO, glfw.KeyP, glfw.KeyQ, glfw.KeyR,
	glfw.KeyS, glfw.KeyT, glfw.KeyU, glfw.KeyV, glfw.KeyW, glfw.KeyX,
	glfw.KeyY, glfw.KeyZ,
	glfw.Key0, glfw.Key1, glfw.Key2, glfw.Key3, glfw.Key4,
	glfw.Key5, glfw.Key6, glfw.Key7, glfw.Key8, glfw.Key9,
	glfw.KeySpace, glfw.KeyEscape, glfw.KeyEnter, glfw.KeyTab,
	glfw.KeyLeftShift, glfw.KeyLeftControl, glfw.KeyLeftAlt,
	glfw.KeyUp, glfw.KeyDown, glfw.KeyLeft, glfw.KeyRight,
}

func main() {
	width := flag.Int("width", 800, "window width")
	height := flag.Int("height", 600, "window height")
	vsync := flag.Bool("vsync", true, "enable vsync (glfw.SwapInterval(1))")
	debug := flag.Bool("debug", false, "enable GL debug output logging")
	kettledir := flag.String("kettledir", ".", "working directory KETTLE/UNKETTLE paths are resolved relative to")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: atlas [flags] <source.atlas>")
		os.Exit(2)
	}
	sourcePath := flag.Arg(0)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *kettledir != "." {
		if err := os.Chdir(*kettledir); err != nil {
			log.Fatalln("atlas: chdir:", err)
		}
	}

	loader := osLoader{}
	src, err := loader.ReadFile(sourcePath)
	if err != nil {
		log.Fatalln("atlas: read source:", err)
	}
	prog, err := compiler.Compile(loader, sourcePath, string(src))
	if err != nil {
		log.Fatalln("atlas: compile:", err)
	}

	window, terminate, err := glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:         "Atlas",
		Width:         *width,
		Height:        *height,
		Version:       [2]int{4, 6},
		OpenGLProfile: glgl.ProfileCore,
		ForwardCompat: true,
	})
	if err != nil {
		log.Fatalln("atlas: init window:", err)
	}
	defer terminate()

	if *debug {
		glgl.EnableDebugOutput(logger)
	}
	if *vsync {
		glfw.SwapInterval(1)
	}

	ctx := eval.New(loader, logger, prog, 6)
	ctx.Input.Keys = make([]float32, len(atlasKeys))

	var lastFrame time.Time
	for !window.ShouldClose() {
		now := time.Now()
		if !lastFrame.IsZero() {
			ctx.Input.TimeDelta = float32(now.Sub(lastFrame).Seconds())
		}
		lastFrame = now

		gatherInput(window, ctx)

		cont, err := ctx.Run()
		if err != nil {
			logger.Error("atlas: run", "err", err)
			break
		}
		if !cont {
			break
		}

		window.SwapBuffers()
		glfw.PollEvents()
		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}
	}
}

// gatherInput refills ctx.Input for the upcoming frame: mouse
// position/delta/buttons, the fixed key table, every present
// joystick's axes+buttons, and the current framebuffer size.
func gatherInput(window *glgl.Window, ctx *eval.Context) {
	x, y := window.GetCursorPos()
	prevX, prevY := ctx.Input.MouseX, ctx.Input.MouseY
	ctx.Input.MouseX, ctx.Input.MouseY = float32(x), float32(y)
	ctx.Input.MouseDX += float32(x) - prevX
	ctx.Input.MouseDY += float32(y) - prevY

	var buttons float32
	for i := glfw.MouseButton1; i <= glfw.MouseButton8; i++ {
		if window.GetMouseButton(i) == glfw.Press {
			buttons += float32(1 << uint(i))
		}
	}
	ctx.Input.MouseButtons = buttons

	for i, k := range atlasKeys {
		if window.GetKey(k) == glfw.Press {
			ctx.Input.Keys[i] = 1
		} else {
			ctx.Input.Keys[i] = 0
		}
	}

	ctx.Input.Gamepads = ctx.Input.Gamepads[:0]
	for j := glfw.Joystick1; j <= glfw.JoystickLast; j++ {
		if !j.Present() {
			continue
		}
		var g eval.Gamepad
		axes := j.GetAxes()
		for i := 0; i < len(axes) && i < 6; i++ {
			g[i] = axes[i]
		}
		btns := j.GetButtons()
		for i := 0; i < len(btns) && i < 15; i++ {
			if btns[i] == glfw.Press {
				g[6+i] = 1
			}
		}
		ctx.Input.Gamepads = append(ctx.Input.Gamepads, g)
	}

	w, h := window.GetSize()
	ctx.Input.WindowW, ctx.Input.WindowH = float32(w), float32(h)
}
