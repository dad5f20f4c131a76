package waveform

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/lisuiheng/voxtape/audio"
)

// Mode 渲染模式
type Mode int

const (
	ModeEmpty Mode = iota
	ModeLive
	ModeStatic
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeStatic:
		return "static"
	default:
		return "empty"
	}
}

// Style 画布和柱形外观
type Style struct {
	Width      int
	Height     int
	Bars       int // 实时模式柱数
	StaticBars int // 静态模式柱数, 0表示与Bars相同
	BarGap     int
	Color      color.NRGBA
	Background color.NRGBA
}

// DefaultStyle 800x80画布, 60根柱, emerald颜色
func DefaultStyle() Style {
	return Style{
		Width:      800,
		Height:     80,
		Bars:       60,
		StaticBars: 100,
		BarGap:     2,
		Color:      color.NRGBA{R: 0x10, G: 0xb9, B: 0x81, A: 0xff},
	}
}

// ParseColor 解析 "#rrggbb" 颜色, 空字符串表示透明
func ParseColor(hex string) (color.NRGBA, error) {
	if hex == "" || hex == "transparent" {
		return color.NRGBA{}, nil
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Frame 一次绘制的输入。Live和Profile在同一帧中只会使用其中一个。
type Frame struct {
	Live          audio.FrequencySource
	IsRecording   bool
	IsPlayingLive bool
	Profile       Profile
	Position      time.Duration
	Duration      time.Duration
}

// SelectMode 决定帧的渲染模式
func SelectMode(f Frame) Mode {
	switch {
	case f.Live != nil && (f.IsRecording || f.IsPlayingLive):
		return ModeLive
	case len(f.Profile) > 0:
		return ModeStatic
	default:
		return ModeEmpty
	}
}

// ProgressWidth 播放进度遮罩的宽度
func ProgressWidth(position, duration time.Duration, width int) int {
	if duration <= 0 {
		return 0
	}
	ratio := float64(position) / float64(duration)
	ratio = math.Max(0, math.Min(1, ratio))
	return int(math.Round(ratio * float64(width)))
}

// Renderer 拥有画布的全部写入, 实时模式下自行调度下一帧
type Renderer struct {
	style  Style
	sched  FrameScheduler
	logger *slog.Logger

	mu      sync.Mutex
	canvas  *image.RGBA
	frame   Frame
	mode    Mode
	pending FrameID
	token   uint64
	bins    []byte
}

// NewRenderer 创建渲染器
func NewRenderer(style Style, sched FrameScheduler, logger *slog.Logger) *Renderer {
	if style.Bars < 1 {
		style.Bars = DefaultStyle().Bars
	}
	if style.StaticBars < 1 {
		style.StaticBars = style.Bars
	}
	return &Renderer{
		style:  style,
		sched:  sched,
		logger: logger,
		canvas: image.NewRGBA(image.Rect(0, 0, style.Width, style.Height)),
	}
}

// Render 在每次状态变化时调用, 每次都重新选择模式
func (r *Renderer) Render(f Frame) Mode {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frame = f
	mode := SelectMode(f)
	if mode != ModeLive {
		r.cancelLocked()
	}
	if mode != r.mode {
		r.logger.Debug("Waveform mode changed", "from", r.mode, "to", mode)
	}
	r.mode = mode

	switch mode {
	case ModeLive:
		r.drawLive()
		if r.pending == 0 {
			r.requestLocked()
		}
	case ModeStatic:
		r.drawStatic()
	default:
		r.clear()
	}
	return mode
}

func (r *Renderer) requestLocked() {
	r.token++
	token := r.token
	r.pending = r.sched.Request(func() { r.onFrame(token) })
}

func (r *Renderer) cancelLocked() {
	if r.pending == 0 {
		return
	}
	r.sched.Cancel(r.pending)
	r.pending = 0
	r.token++
}

func (r *Renderer) onFrame(token uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 已取消或被新请求替代
	if token != r.token || r.pending == 0 {
		return
	}
	r.pending = 0
	if SelectMode(r.frame) != ModeLive {
		return
	}
	r.drawLive()
	r.requestLocked()
}

func (r *Renderer) clear() {
	draw.Draw(r.canvas, r.canvas.Bounds(), image.NewUniform(r.style.Background), image.Point{}, draw.Src)
}

// barSpan 返回bars根柱中第i根的水平范围
func (r *Renderer) barSpan(i, bars int) (int, int) {
	slot := float64(r.style.Width) / float64(bars)
	x0 := int(float64(i) * slot)
	x1 := int(float64(i)*slot + slot - float64(r.style.BarGap))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	return x0, x1
}

func (r *Renderer) drawLive() {
	r.bins = r.frame.Live.FrequencyData(r.bins)
	r.clear()
	if len(r.bins) == 0 {
		return
	}

	h := float64(r.style.Height)
	c := r.style.Color
	for i := 0; i < r.style.Bars; i++ {
		value := float64(r.bins[sourceIndex(i, r.style.Bars, len(r.bins))]) / 255
		barHeight := value * h
		y0 := int(math.Round(h - barHeight))
		if y0 >= r.style.Height {
			continue
		}
		x0, x1 := r.barSpan(i, r.style.Bars)

		// 从顶部的原色渐变到底部的半透明色
		for y := y0; y < r.style.Height; y++ {
			t := float64(y-y0) / math.Max(1, float64(r.style.Height-y0-1))
			alpha := 255 - t*(255-0x80)
			row := color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha * float64(c.A) / 255)}
			draw.Draw(r.canvas, image.Rect(x0, y, x1, y+1), image.NewUniform(row), image.Point{}, draw.Over)
		}
	}
}

func (r *Renderer) drawStatic() {
	r.clear()

	h := float64(r.style.Height)
	fill := image.NewUniform(r.style.Color)
	profile := r.frame.Profile.Resample(r.style.StaticBars)
	for i, v := range profile {
		barHeight := math.Min(math.Abs(v)*h, h)
		y0 := int(math.Round((h - barHeight) / 2))
		y1 := int(math.Round((h + barHeight) / 2))
		if y1 <= y0 {
			continue
		}
		x0, x1 := r.barSpan(i, r.style.StaticBars)
		draw.Draw(r.canvas, image.Rect(x0, y0, x1, y1), fill, image.Point{}, draw.Over)
	}

	if r.frame.Duration > 0 {
		w := ProgressWidth(r.frame.Position, r.frame.Duration, r.style.Width)
		c := r.style.Color
		overlay := color.NRGBA{R: c.R, G: c.G, B: c.B, A: 51}
		draw.Draw(r.canvas, image.Rect(0, 0, w, r.style.Height), image.NewUniform(overlay), image.Point{}, draw.Over)
	}
}

// Mode 返回最近一次渲染的模式
func (r *Renderer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// FramePending 是否有尚未执行的帧请求
func (r *Renderer) FramePending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != 0
}

// Snapshot 返回画布的拷贝
func (r *Renderer) Snapshot() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := image.NewRGBA(r.canvas.Bounds())
	copy(out.Pix, r.canvas.Pix)
	return out
}

// Close 取消所有未执行的帧请求
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelLocked()
}
